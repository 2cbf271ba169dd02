// Package config handles YAML configuration loading with environment variable expansion.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"go.yaml.in/yaml/v3"

	gateway "github.com/skyward-io/skygate/internal"
)

// Config is the top-level gateway configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Admin     AdminConfig     `yaml:"admin"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Cache     CacheConfig     `yaml:"cache"`
	Freshness FreshnessConfig `yaml:"freshness"`
	Retry     RetryConfig     `yaml:"retry"`
	Providers []ProviderEntry `yaml:"providers"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"` // file path or ":memory:"
}

// AdminConfig holds the operator readout settings.
type AdminConfig struct {
	Key string `yaml:"key"` // shared key for /admin endpoints; empty disables them
}

// TelemetryConfig holds observability settings.
type TelemetryConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// MetricsConfig controls Prometheus metrics.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// TracingConfig controls OpenTelemetry tracing.
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Endpoint   string  `yaml:"endpoint"`    // OTLP gRPC endpoint
	SampleRate float64 `yaml:"sample_rate"` // 0.0 to 1.0
}

// CacheConfig holds settings for the in-process hot layer in front of the
// persistent cache store.
type CacheConfig struct {
	HotMaxSize int `yaml:"hot_max_size"`

	// SweepEnabled turns on physical deletion of rows past their
	// serve-stale window. Off by default: entries normally age out
	// logically via TTL and stay on disk.
	SweepEnabled bool `yaml:"sweep_enabled"`
}

// FreshnessConfig carries per-category TTL and serve-stale windows.
// Zero values fall back to the category defaults.
type FreshnessConfig struct {
	Weather WindowConfig `yaml:"weather"`
	Flight  WindowConfig `yaml:"flight"`
	Geo     WindowConfig `yaml:"geo"`
}

// WindowConfig is one category's freshness tuning.
type WindowConfig struct {
	TTL      time.Duration `yaml:"ttl"`
	MaxStale time.Duration `yaml:"max_stale"`
}

// TTL returns the freshness window for the category.
func (f FreshnessConfig) TTL(c gateway.Category) time.Duration {
	if w := f.window(c); w.TTL > 0 {
		return w.TTL
	}
	return c.DefaultTTL()
}

// MaxStale returns the serve-stale window for the category.
func (f FreshnessConfig) MaxStale(c gateway.Category) time.Duration {
	if w := f.window(c); w.MaxStale > 0 {
		return w.MaxStale
	}
	return c.DefaultMaxStale()
}

func (f FreshnessConfig) window(c gateway.Category) WindowConfig {
	switch c {
	case gateway.CategoryFlight:
		return f.Flight
	case gateway.CategoryGeo:
		return f.Geo
	default:
		return f.Weather
	}
}

// RetryConfig holds outbound call retry settings.
type RetryConfig struct {
	MaxRetries  int           `yaml:"max_retries"`
	Timeout     time.Duration `yaml:"timeout"`
	BackoffBase time.Duration `yaml:"backoff_base"`
	BackoffCap  time.Duration `yaml:"backoff_cap"`
}

// ProviderEntry is a provider definition in the config file. Name selects
// one of the built-in descriptors; everything else tunes it.
type ProviderEntry struct {
	Name         string     `yaml:"name"`
	BaseURL      string     `yaml:"base_url"`
	APIKey       string     `yaml:"api_key"`
	Email        string     `yaml:"email"` // contact email (nominatim usage policy)
	BudgetPerDay int64      `yaml:"budget_per_day"`
	RatePerSec   float64    `yaml:"rate_per_sec"`
	Burst        float64    `yaml:"burst"`
	Enabled      *bool      `yaml:"enabled"`
	Basic        *BasicAuth `yaml:"basic_auth"`
	OAuth        *OAuthCred `yaml:"oauth"`
}

// BasicAuth holds HTTP basic auth credentials.
type BasicAuth struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// OAuthCred holds OAuth2 client-credentials settings for providers that
// issue bearer tokens (the flight position feed).
type OAuthCred struct {
	TokenURL     string `yaml:"token_url"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

// IsEnabled reports whether the provider is enabled (defaults to true when nil).
func (p ProviderEntry) IsEnabled() bool {
	return p.Enabled == nil || *p.Enabled
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnv replaces ${VAR} patterns with environment variable values.
func expandEnv(data []byte) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		varName := string(match[2 : len(match)-1])
		if val, ok := os.LookupEnv(varName); ok {
			return []byte(val)
		}
		return match
	})
}

// Default returns the built-in configuration: all five providers enabled
// with their documented budgets and pacing, API keys taken from the
// conventional environment variables.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			DSN: "skygate.db",
		},
		Cache: CacheConfig{
			HotMaxSize: 10_000,
		},
		Retry: RetryConfig{
			MaxRetries:  3,
			Timeout:     10 * time.Second,
			BackoffBase: time.Second,
			BackoffCap:  16 * time.Second,
		},
		Providers: []ProviderEntry{
			// OpenWeatherMap free tier: 1000/day; cap at 900 to stay under.
			{Name: "openweathermap", APIKey: os.Getenv("OPENWEATHERMAP_API_KEY"),
				BudgetPerDay: 900, RatePerSec: 2, Burst: 2},
			// AviationWeather documents per-minute limits, no daily quota;
			// soft daily cap plus conservative pacing.
			{Name: "aviationweather", APIKey: os.Getenv("AVIATIONWEATHER_API_KEY"),
				BudgetPerDay: 2000, RatePerSec: 0.8, Burst: 1},
			// AviationStack free: 1 call per 61s.
			{Name: "aviationstack", APIKey: os.Getenv("AVIATIONSTACK_API_KEY"),
				BudgetPerDay: 1000, RatePerSec: 1.0 / 61.0, Burst: 1},
			// OpenSky anonymous: 400 credits/day; stay below.
			{Name: "opensky", BudgetPerDay: 380, RatePerSec: 0.2, Burst: 1},
			// Nominatim has no daily quota; soft pacing only.
			{Name: "nominatim", Email: os.Getenv("NOMINATIM_EMAIL"),
				RatePerSec: 0.5, Burst: 1},
		},
	}
}

// Load reads and parses a YAML config file, expanding environment
// variables, on top of the built-in defaults. A missing file is not an
// error: the defaults already describe a working gateway.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	data = expandEnv(data)

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Provider returns the entry for the named provider, merging file overrides
// over defaults: a providers block in the file replaces the whole list, so
// lookups always go through this accessor.
func (c *Config) Provider(name string) (ProviderEntry, bool) {
	for _, p := range c.Providers {
		if p.Name == name {
			return p, true
		}
	}
	return ProviderEntry{}, false
}

// Budgets returns the configured daily budget per enabled provider.
// A zero budget means unlimited.
func (c *Config) Budgets() map[string]int64 {
	out := make(map[string]int64, len(c.Providers))
	for _, p := range c.Providers {
		if p.IsEnabled() {
			out[p.Name] = p.BudgetPerDay
		}
	}
	return out
}
