package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"

	"github.com/jonathan/found/internal/config"
	"github.com/jonathan/found/internal/connectors"
	"github.com/jonathan/found/internal/db"
	"github.com/jonathan/found/internal/events"
	"github.com/jonathan/found/internal/fetch"
	"github.com/jonathan/found/internal/linkedin"
	"github.com/jonathan/found/internal/observability"
	"github.com/jonathan/found/internal/pipeline"
	"github.com/jonathan/found/internal/store"
)

// app holds the wired services shared by every command.
type app struct {
	cfg     *config.Config
	store   *store.Memory
	bus     *events.Bus
	agent   *pipeline.Agent
	browser *linkedin.Runner
	feeds   *connectors.Service
	closers []func()
}

// openApp loads configuration, opens the persister and wires the services.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	a := &app{cfg: cfg}
	persister, err := a.openPersister(ctx)
	if err != nil {
		return nil, err
	}

	var seed store.State
	if cfg.SeedPath != "" {
		seed, err = store.LoadSeed(cfg.SeedPath)
		if err != nil {
			a.Close()
			return nil, err
		}
	}

	clock := store.SystemClock{}
	a.store, err = store.Open(ctx, persister, seed, clock)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.bus = events.NewBus(cfg.BusBuffer, cfg.BusMaxSubscribers)
	a.agent = pipeline.NewAgent(a.store, a.bus, clock)

	settings := linkedin.DefaultSettings()
	settings.Email = cfg.LinkedInEmail
	settings.Password = cfg.LinkedInPassword
	settings.StorageStatePath = cfg.StorageStatePath
	settings.AllowAutoSubmit = cfg.AutoSubmitEnabled()
	a.browser = linkedin.NewRunner(a.store, a.bus, clock, settings, linkedin.ChromeFactory(fetch.BrowserOptions{
		Headless:      cfg.HeadlessEnabled(),
		ExecPath:      cfg.ChromePath,
		UserAgent:     fetch.DefaultUserAgent,
		ActionTimeout: fetch.DefaultActionTimeout,
		Verbose:       verbose,
	}))

	a.feeds = connectors.New(connectors.Config{
		GreenhouseBoards: cfg.GreenhouseBoards,
		LeverSites:       cfg.LeverSites,
		Timeout:          cfg.FeedTimeout(),
	}, a.store)

	return a, nil
}

func (a *app) openPersister(ctx context.Context) (store.Persister, error) {
	if a.cfg.DatabaseURL != "" {
		pg, err := db.Connect(ctx, a.cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pg.Close)
		log.Printf("[store] Using PostgreSQL persistence")
		return pg, nil
	}

	lite, err := db.OpenSQLite(ctx, a.cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() {
		if err := lite.Close(); err != nil {
			log.Printf("[store] Failed to close SQLite: %v", err)
		}
	})
	log.Printf("[store] Using SQLite persistence at %s", a.cfg.DatabasePath)
	return lite, nil
}

// Close releases the persister.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printer returns the verbose summary printer, or nil when verbose output
// is off.
func printer(w io.Writer) *observability.Printer {
	if !verbose {
		return nil
	}
	return observability.NewPrinter(w)
}
