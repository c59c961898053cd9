package main

import (
	"fmt"

	"github.com/jonathan/found/internal/server"
	"github.com/jonathan/found/internal/server/ratelimit"
	"github.com/spf13/cobra"
)

var (
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  `Start an HTTP server that exposes the agents, the browser runner, the job feeds and the live update stream.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (defaults to PORT or 4000)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	port := a.cfg.Port
	if servePort > 0 {
		port = servePort
	}
	jwtCfg, err := a.cfg.JWT()
	if err != nil {
		return fmt.Errorf("invalid JWT config: %w", err)
	}

	srv, err := server.New(server.Config{
		Port:      port,
		Agent:     a.agent,
		Browser:   a.browser,
		Feeds:     a.feeds,
		Events:    a.bus,
		RateLimit: ratelimit.LoadConfig(),
		JWT:       jwtCfg,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	return srv.Start()
}
