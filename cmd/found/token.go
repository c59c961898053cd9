package main

import (
	"fmt"

	"github.com/jonathan/found/internal/config"
	"github.com/jonathan/found/internal/server"
	"github.com/spf13/cobra"
)

var tokenSubject string

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token for the REST API",
	Long:  `Signs a token with JWT_SECRET. Mutating API routes require it when a secret is configured.`,
	RunE:  runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "operator", "Token subject")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	jwtCfg, err := cfg.JWT()
	if err != nil {
		return fmt.Errorf("invalid JWT config: %w", err)
	}
	if jwtCfg == nil {
		return fmt.Errorf("JWT_SECRET is not set")
	}

	token, err := server.NewJWTService(jwtCfg).GenerateToken(tokenSubject)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
	return err
}
