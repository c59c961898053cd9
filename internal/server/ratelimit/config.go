package ratelimit

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Rule limits one method on one path. A path ending in "/" also matches
// everything below it.
// Burst is the bucket capacity and defaults to Limit.
type Rule struct {
	Method    string
	Path      string
	Limit     int
	Window    time.Duration
	Burst     int
	Unlimited bool
}

// Config holds rate limiting configuration.
type Config struct {
	Enabled         bool
	DefaultLimit    int
	DefaultWindow   time.Duration
	CleanupInterval time.Duration
	IdleTTL         time.Duration
	Whitelist       map[string]bool
	Blacklist       map[string]bool
	Rules           []Rule
}

// DefaultConfig is used when no configuration is given.
func DefaultConfig() *Config {
	return &Config{
		Enabled:         true,
		DefaultLimit:    1000,
		DefaultWindow:   time.Minute,
		CleanupInterval: 5 * time.Minute,
		IdleTTL:         time.Hour,
		Whitelist:       map[string]bool{},
		Blacklist:       map[string]bool{},
		Rules:           DefaultRules(),
	}
}

// LoadConfig loads rate limiting configuration from RATE_LIMIT_*
// environment variables.
func LoadConfig() *Config {
	if !envBool("RATE_LIMIT_ENABLED", true) {
		return &Config{Enabled: false}
	}

	cfg := DefaultConfig()
	cfg.DefaultLimit = envInt("RATE_LIMIT_DEFAULT_LIMIT", cfg.DefaultLimit)
	cfg.DefaultWindow = envDuration("RATE_LIMIT_DEFAULT_WINDOW", cfg.DefaultWindow)
	cfg.CleanupInterval = envDuration("RATE_LIMIT_CLEANUP_INTERVAL", cfg.CleanupInterval)
	cfg.Whitelist = parseIPList(os.Getenv("RATE_LIMIT_WHITELIST"))
	cfg.Blacklist = parseIPList(os.Getenv("RATE_LIMIT_BLACKLIST"))
	return cfg
}

// DefaultRules returns the per-route limits of the API.
func DefaultRules() []Rule {
	return []Rule{
		{Method: "GET", Path: "/api/health", Unlimited: true},
		{Method: "GET", Path: "/api/v1/automation/stream", Unlimited: true},

		// Each browser run launches Chrome against LinkedIn
		{Method: "POST", Path: "/api/v1/agents/linkedin/browser-runs", Limit: 10, Window: time.Hour, Burst: 2},

		// Feed fan-out hits every configured board
		{Method: "GET", Path: "/api/v1/integrations/jobs", Limit: 60, Window: time.Hour, Burst: 10},
		{Method: "POST", Path: "/api/v1/integrations/jobs/import", Limit: 20, Window: time.Hour, Burst: 5},

		{Method: "POST", Path: "/api/v1/agents/linkedin/runs", Limit: 60, Window: time.Minute, Burst: 10},
		{Method: "PUT", Path: "/api/v1/agents/linkedin/config", Limit: 100, Window: time.Minute, Burst: 10},
		{Method: "PATCH", Path: "/api/v1/agents/linkedin/config", Limit: 100, Window: time.Minute, Burst: 10},
	}
}

func envInt(key string, fallback int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return fallback
}

// parseIPList parses a comma-separated list of IP addresses into a set.
func parseIPList(list string) map[string]bool {
	result := make(map[string]bool)
	for _, ip := range strings.Split(list, ",") {
		if ip = strings.TrimSpace(ip); ip != "" {
			result[ip] = true
		}
	}
	return result
}
