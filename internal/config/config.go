// Package config provides configuration loading and validation for the
// server and the CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultPort               = 4000
	DefaultDatabasePath       = "data/found.db"
	DefaultStorageStatePath   = "data/linkedin-storage-state.json"
	DefaultGreenhouseBoards   = "stripe,figma,datadog,airbnb,notion,asana,coinbase,vercel,linear"
	DefaultLeverSites         = "netflix,shopify,segment,tripactions,postman,atlassian,udemy"
	DefaultFeedTimeoutSeconds = 9
	DefaultBusBuffer          = 50
	DefaultBusMaxSubscribers  = 50
	DefaultJWTExpirationHours = 24
)

// Config is the process configuration. Values come from the environment
// and optionally from a JSON file whose values take precedence.
type Config struct {
	// Server and storage
	Port         int    `json:"port,omitempty"`
	DatabaseURL  string `json:"database_url,omitempty"`  // PostgreSQL URL; SQLite is used when empty
	DatabasePath string `json:"database_path,omitempty"` // SQLite file
	SeedPath     string `json:"seed_path,omitempty"`     // YAML seed for a fresh store

	// Browser automation
	LinkedInEmail    string `json:"linkedin_email,omitempty"`
	LinkedInPassword string `json:"linkedin_password,omitempty"`
	StorageStatePath string `json:"storage_state_path,omitempty"`
	Headless         *bool  `json:"headless,omitempty"`
	ChromePath       string `json:"chrome_path,omitempty"`
	AllowAutoSubmit  *bool  `json:"allow_auto_submit,omitempty"`

	// Feeds. A non-nil empty list disables that connector.
	GreenhouseBoards   []string `json:"greenhouse_boards,omitempty"`
	LeverSites         []string `json:"lever_sites,omitempty"`
	FeedTimeoutSeconds int      `json:"feed_timeout_seconds,omitempty"`

	BusBuffer         int `json:"bus_buffer,omitempty"`
	BusMaxSubscribers int `json:"bus_max_subscribers,omitempty"` // past this, new subscribers are logged

	// API auth is enabled when a secret is set
	JWTSecret          string `json:"jwt_secret,omitempty"`
	JWTExpirationHours int    `json:"jwt_expiration_hours,omitempty"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		Port:               DefaultPort,
		DatabasePath:       DefaultDatabasePath,
		StorageStatePath:   DefaultStorageStatePath,
		GreenhouseBoards:   SplitList(DefaultGreenhouseBoards),
		LeverSites:         SplitList(DefaultLeverSites),
		FeedTimeoutSeconds: DefaultFeedTimeoutSeconds,
		BusBuffer:          DefaultBusBuffer,
		BusMaxSubscribers:  DefaultBusMaxSubscribers,
		JWTExpirationHours: DefaultJWTExpirationHours,
	}
}

// Load reads the environment, overlays the JSON file at path when one is
// given, fills defaults and validates the result.
func Load(path string) (*Config, error) {
	cfg, err := FromEnv()
	if err != nil {
		return nil, err
	}
	if path != "" {
		file, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		merged := file.MergeWithDefaults(*cfg)
		cfg = &merged
	}
	merged := cfg.MergeWithDefaults(Defaults())
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return &merged, nil
}

// FromEnv builds a configuration from environment variables. Unset
// variables leave their field zero.
func FromEnv() (*Config, error) {
	cfg := &Config{
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		DatabasePath:     os.Getenv("DATABASE_PATH"),
		SeedPath:         os.Getenv("SEED_PATH"),
		LinkedInEmail:    os.Getenv("LINKEDIN_EMAIL"),
		LinkedInPassword: os.Getenv("LINKEDIN_PASSWORD"),
		StorageStatePath: os.Getenv("LINKEDIN_STORAGE_STATE_PATH"),
		ChromePath:       os.Getenv("CHROMIUM_EXECUTABLE_PATH"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
	}

	if v := os.Getenv("LINKEDIN_BROWSER_HEADLESS"); v != "" {
		headless := v != "false"
		cfg.Headless = &headless
	}
	if v := os.Getenv("LINKEDIN_ALLOW_AUTO_SUBMIT"); v != "" {
		allow := v == "true"
		cfg.AllowAutoSubmit = &allow
	}
	if v, ok := os.LookupEnv("GREENHOUSE_BOARDS"); ok {
		cfg.GreenhouseBoards = nonNil(SplitList(v))
	}
	if v, ok := os.LookupEnv("LEVER_SITES"); ok {
		cfg.LeverSites = nonNil(SplitList(v))
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"PORT", &cfg.Port},
		{"FEED_TIMEOUT_SECONDS", &cfg.FeedTimeoutSeconds},
		{"EVENT_BUS_BUFFER", &cfg.BusBuffer},
		{"EVENT_BUS_MAX_SUBSCRIBERS", &cfg.BusMaxSubscribers},
		{"JWT_EXPIRATION_HOURS", &cfg.JWTExpirationHours},
	}
	for _, item := range ints {
		v := os.Getenv(item.key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %v", item.key, err)
		}
		*item.dst = n
	}
	return cfg, nil
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("config error: 'port' must be between 1 and 65535, got %d", c.Port)
	}
	if c.FeedTimeoutSeconds < 0 {
		return fmt.Errorf("config error: 'feed_timeout_seconds' must be non-negative")
	}
	if c.BusBuffer < 0 {
		return fmt.Errorf("config error: 'bus_buffer' must be non-negative")
	}
	if c.BusMaxSubscribers < 0 {
		return fmt.Errorf("config error: 'bus_max_subscribers' must be non-negative")
	}
	if c.JWTExpirationHours < 0 {
		return fmt.Errorf("config error: 'jwt_expiration_hours' must be non-negative")
	}
	if c.DatabaseURL != "" &&
		!strings.HasPrefix(c.DatabaseURL, "postgres://") &&
		!strings.HasPrefix(c.DatabaseURL, "postgresql://") {
		return fmt.Errorf("config error: 'database_url' must be a postgres:// URL")
	}

	if c.SeedPath != "" {
		if _, err := os.Stat(c.SeedPath); os.IsNotExist(err) {
			return fmt.Errorf("config error: seed file not found: %s", c.SeedPath)
		}
	}

	return nil
}

// MergeWithDefaults returns a new Config with unset fields filled from defaults.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.DatabasePath == "" {
		result.DatabasePath = defaults.DatabasePath
	}
	if result.SeedPath == "" {
		result.SeedPath = defaults.SeedPath
	}
	if result.LinkedInEmail == "" {
		result.LinkedInEmail = defaults.LinkedInEmail
	}
	if result.LinkedInPassword == "" {
		result.LinkedInPassword = defaults.LinkedInPassword
	}
	if result.StorageStatePath == "" {
		result.StorageStatePath = defaults.StorageStatePath
	}
	if result.ChromePath == "" {
		result.ChromePath = defaults.ChromePath
	}
	if result.JWTSecret == "" {
		result.JWTSecret = defaults.JWTSecret
	}

	// Int fields: use default if zero
	if result.Port == 0 {
		result.Port = defaults.Port
	}
	if result.FeedTimeoutSeconds == 0 {
		result.FeedTimeoutSeconds = defaults.FeedTimeoutSeconds
	}
	if result.BusBuffer == 0 {
		result.BusBuffer = defaults.BusBuffer
	}
	if result.BusMaxSubscribers == 0 {
		result.BusMaxSubscribers = defaults.BusMaxSubscribers
	}
	if result.JWTExpirationHours == 0 {
		result.JWTExpirationHours = defaults.JWTExpirationHours
	}

	// Pointer and list fields: nil means unset
	if result.Headless == nil {
		result.Headless = defaults.Headless
	}
	if result.AllowAutoSubmit == nil {
		result.AllowAutoSubmit = defaults.AllowAutoSubmit
	}
	if result.GreenhouseBoards == nil {
		result.GreenhouseBoards = defaults.GreenhouseBoards
	}
	if result.LeverSites == nil {
		result.LeverSites = defaults.LeverSites
	}

	return result
}

// HeadlessEnabled reports whether the browser runs headless. Default true.
func (c *Config) HeadlessEnabled() bool {
	return c.Headless == nil || *c.Headless
}

// AutoSubmitEnabled reports whether browser runs may submit applications.
// Default false.
func (c *Config) AutoSubmitEnabled() bool {
	return c.AllowAutoSubmit != nil && *c.AllowAutoSubmit
}

// FeedTimeout returns the per-feed request timeout.
func (c *Config) FeedTimeout() time.Duration {
	return time.Duration(c.FeedTimeoutSeconds) * time.Second
}

// JWT returns the API auth settings, or nil when auth is disabled.
func (c *Config) JWT() (*JWTConfig, error) {
	if c.JWTSecret == "" {
		return nil, nil
	}
	return NewJWTConfig(c.JWTSecret, c.JWTExpirationHours)
}

// SplitList splits a comma-separated value, dropping blanks.
func SplitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}
