// Package common provides shared utilities for dividendos
package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for dividendos
type Config struct {
	Environment string          `toml:"environment"`
	Server      ServerConfig    `toml:"server"`
	CORS        CORSConfig      `toml:"cors"`
	Storage     StorageConfig   `toml:"storage"`
	Scraper     ScraperConfig   `toml:"scraper"`
	Cache       CacheConfig     `toml:"cache"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
	Logging     LoggingConfig   `toml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// CORSConfig lists the browser origins allowed to call the API
type CORSConfig struct {
	Origins []string `toml:"origins"`
}

// StorageConfig holds the directory for the cache and job status files.
type StorageConfig struct {
	DataDir string `toml:"data_dir"`
}

// ScraperConfig holds settings for the listing and detail page fetches.
type ScraperConfig struct {
	BaseURL        string `toml:"base_url"`
	ListingPath    string `toml:"listing_path"`
	Timeout        string `toml:"timeout"`
	Delay          string `toml:"delay"`
	RateLimit      int    `toml:"rate_limit"`
	Strategy       string `toml:"strategy"` // "pattern" or "markup"
	SampleFallback bool   `toml:"sample_fallback"`
}

// GetTimeout parses and returns the per-request timeout
func (c *ScraperConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetDelay parses and returns the pause taken after each detail page.
// An explicit "0s" disables the pause.
func (c *ScraperConfig) GetDelay() time.Duration {
	d, err := time.ParseDuration(c.Delay)
	if err != nil || d < 0 {
		return time.Second
	}
	return d
}

// CacheConfig holds the staleness policy for the dividend cache.
type CacheConfig struct {
	TTL string `toml:"ttl"` // empty: cached data never goes stale
}

// GetTTL returns the cache TTL. Zero means cached data never goes stale.
func (c *CacheConfig) GetTTL() time.Duration {
	if strings.TrimSpace(c.TTL) == "" {
		return 0
	}
	d, err := time.ParseDuration(c.TTL)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// SchedulerConfig controls periodic background refreshes
type SchedulerConfig struct {
	Enabled     bool   `toml:"enabled"`
	Schedule    string `toml:"schedule"` // standard 5-field cron expression
	WarmOnStart bool   `toml:"warm_on_start"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "console" or "json"
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 3001,
		},
		CORS: CORSConfig{
			Origins: []string{"http://localhost:3000"},
		},
		Storage: StorageConfig{
			DataDir: "data",
		},
		Scraper: ScraperConfig{
			BaseURL:     "https://www.eleconomista.es",
			ListingPath: "/mercados-cotizaciones/ecodividendo/calendario.php",
			Timeout:     "30s",
			Delay:       "1s",
			RateLimit:   1,
			Strategy:    "pattern",
		},
		Scheduler: SchedulerConfig{
			Schedule:    "0 7 * * 1-5",
			WarmOnStart: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides.
// A .env file in the working directory is loaded first when present.
func LoadConfig(paths ...string) (*Config, error) {
	_ = godotenv.Load()

	config := NewDefaultConfig()

	// Later files override earlier ones
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("DIVIDENDOS_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("DIVIDENDOS_HOST"); host != "" {
		config.Server.Host = host
	}

	// PORT is honoured for container platforms; DIVIDENDOS_PORT wins when both are set
	for _, key := range []string{"PORT", "DIVIDENDOS_PORT"} {
		if port := os.Getenv(key); port != "" {
			if p, err := strconv.Atoi(port); err == nil {
				config.Server.Port = p
			}
		}
	}

	if origin := os.Getenv("CORS_ORIGIN"); origin != "" {
		var origins []string
		for _, o := range strings.Split(origin, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		config.CORS.Origins = origins
	}

	if dir := os.Getenv("DIVIDENDOS_DATA_DIR"); dir != "" {
		config.Storage.DataDir = dir
	}

	if s := os.Getenv("DIVIDENDOS_SCRAPER_STRATEGY"); s != "" {
		config.Scraper.Strategy = strings.ToLower(s)
	}

	if d := os.Getenv("DIVIDENDOS_SCRAPER_DELAY"); d != "" {
		config.Scraper.Delay = d
	}

	if v := os.Getenv("DIVIDENDOS_SAMPLE_FALLBACK"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			config.Scraper.SampleFallback = b
		}
	}

	if ttl, ok := os.LookupEnv("DIVIDENDOS_CACHE_TTL"); ok {
		config.Cache.TTL = ttl
	}

	if s := os.Getenv("DIVIDENDOS_SCHEDULE"); s != "" {
		config.Scheduler.Schedule = s
		config.Scheduler.Enabled = true
	}

	if level := os.Getenv("DIVIDENDOS_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
}

// Validate rejects values the services cannot run with
func (c *Config) Validate() error {
	switch c.Scraper.Strategy {
	case "pattern", "markup":
	default:
		return fmt.Errorf("invalid scraper strategy %q (want \"pattern\" or \"markup\")", c.Scraper.Strategy)
	}
	if strings.TrimSpace(c.Cache.TTL) != "" {
		if _, err := time.ParseDuration(c.Cache.TTL); err != nil {
			return fmt.Errorf("invalid cache ttl %q: %w", c.Cache.TTL, err)
		}
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.IsProduction() && c.Scraper.SampleFallback {
		return fmt.Errorf("scraper.sample_fallback cannot be enabled in production")
	}
	return nil
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
