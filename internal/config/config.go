// Package config loads harvest settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds everything one harvest process needs. Load from env;
// call LoadEnvFile(".env") first to pick up a local .env file.
type Config struct {
	// Inputs
	SourcesPath string // JSON source definitions

	// Outputs
	OutputDir   string // per-group JSON + M3U files land here
	CatalogPath string // combined catalog snapshot; "" = skip

	// Stream cache
	CachePath string        // SQLite file; "" = no caching
	CacheTTL  time.Duration // how long a cached stream stays fresh

	// Pacing
	Concurrency        int           // resolution workers
	MaxPages           int           // fallback page cap per listing walk; 0 = unlimited
	PageTimeout        time.Duration // per-request bound
	PerHostDelay       time.Duration // minimum spacing between requests to one host
	PerHostConcurrency int

	// Resolution
	RetryMax       int // extra attempts after a transient failure; 0 = no retries
	RetryBackoff   time.Duration
	EmitUnresolved bool // keep unresolvable items in outputs with their page URL

	// Run
	RunTimeout  time.Duration // 0 = no overall deadline
	MetricsAddr string        // e.g. ":9105"; "" = metrics listener off
}

// Load reads config from HARVEST_* environment variables.
func Load() *Config {
	c := &Config{
		SourcesPath:        getEnv("HARVEST_SOURCES", "./sources.json"),
		OutputDir:          getEnv("HARVEST_OUTPUT_DIR", "./out"),
		CatalogPath:        getEnv("HARVEST_CATALOG", "./out/catalog.json"),
		CachePath:          os.Getenv("HARVEST_CACHE"),
		CacheTTL:           getEnvDuration("HARVEST_CACHE_TTL", 24*time.Hour),
		Concurrency:        getEnvInt("HARVEST_CONCURRENCY", 4),
		MaxPages:           getEnvInt("HARVEST_MAX_PAGES", 0),
		PageTimeout:        getEnvDuration("HARVEST_PAGE_TIMEOUT", 20*time.Second),
		PerHostDelay:       getEnvDuration("HARVEST_PER_HOST_DELAY", 500*time.Millisecond),
		PerHostConcurrency: getEnvInt("HARVEST_PER_HOST_CONCURRENCY", 2),
		RetryMax:           getEnvInt("HARVEST_RETRY_MAX", 1),
		RetryBackoff:       getEnvDuration("HARVEST_RETRY_BACKOFF", 2*time.Second),
		EmitUnresolved:     getEnvBool("HARVEST_EMIT_UNRESOLVED", false),
		RunTimeout:         getEnvDuration("HARVEST_RUN_TIMEOUT", 0),
		MetricsAddr:        os.Getenv("HARVEST_METRICS_ADDR"),
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	if c.PerHostConcurrency <= 0 {
		c.PerHostConcurrency = 2
	}
	return c
}

// Validate catches settings that would make a run pointless.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.SourcesPath) == "" {
		return fmt.Errorf("HARVEST_SOURCES must not be empty")
	}
	if strings.TrimSpace(c.OutputDir) == "" {
		return fmt.Errorf("HARVEST_OUTPUT_DIR must not be empty")
	}
	if c.RetryMax < 0 {
		return fmt.Errorf("HARVEST_RETRY_MAX must be >= 0")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "1" || strings.EqualFold(v, "true") || strings.EqualFold(v, "yes")
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
