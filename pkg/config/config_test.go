package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Crawl.EnrichWorkers != 4 {
		t.Errorf("Expected default enrich workers to be 4, got %d", config.Crawl.EnrichWorkers)
	}

	if config.Crawl.EnrichBatchSize != 100 {
		t.Errorf("Expected default enrich batch size to be 100, got %d", config.Crawl.EnrichBatchSize)
	}

	if config.Store.Path != "followers.db" {
		t.Errorf("Expected default store path to be followers.db, got %s", config.Store.Path)
	}

	if config.Retry.MaxAttempts != 3 {
		t.Errorf("Expected default max attempts to be 3, got %d", config.Retry.MaxAttempts)
	}

	if err := config.Validate(); err != nil {
		t.Errorf("Expected default config to validate, got %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	os.Setenv("FOLLOWCRAWL_BEARER_TOKEN", "test-bearer-token")
	os.Setenv("FOLLOWCRAWL_STORE_PATH", "/tmp/test-followers.db")
	os.Setenv("FOLLOWCRAWL_ENRICH_WORKERS", "8")
	os.Setenv("FOLLOWCRAWL_LOG_LEVEL", "debug")

	defer func() {
		os.Unsetenv("FOLLOWCRAWL_BEARER_TOKEN")
		os.Unsetenv("FOLLOWCRAWL_STORE_PATH")
		os.Unsetenv("FOLLOWCRAWL_ENRICH_WORKERS")
		os.Unsetenv("FOLLOWCRAWL_LOG_LEVEL")
	}()

	config := DefaultConfig()
	if err := config.LoadFromEnv(); err != nil {
		t.Fatalf("Failed to load from environment: %v", err)
	}

	if config.Twitter.BearerToken != "test-bearer-token" {
		t.Errorf("Expected bearer token to be test-bearer-token, got %s", config.Twitter.BearerToken)
	}

	if config.Store.Path != "/tmp/test-followers.db" {
		t.Errorf("Expected store path to be /tmp/test-followers.db, got %s", config.Store.Path)
	}

	if config.Crawl.EnrichWorkers != 8 {
		t.Errorf("Expected enrich workers to be 8, got %d", config.Crawl.EnrichWorkers)
	}

	if config.Logging.Level != "debug" {
		t.Errorf("Expected log level to be debug, got %s", config.Logging.Level)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
twitter:
  base_url: https://api.example.com/1.1
  request_timeout: 10s
crawl:
  enrich_workers: 2
  enrich_batch_size: 50
store:
  path: /tmp/custom.db
logging:
  level: warn
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	config := DefaultConfig()
	if err := config.LoadFromFile(path); err != nil {
		t.Fatalf("Failed to load config file: %v", err)
	}

	if config.Twitter.BaseURL != "https://api.example.com/1.1" {
		t.Errorf("Expected base URL from file, got %s", config.Twitter.BaseURL)
	}
	if config.Twitter.RequestTimeout != 10*time.Second {
		t.Errorf("Expected request timeout 10s, got %v", config.Twitter.RequestTimeout)
	}
	if config.Crawl.EnrichWorkers != 2 {
		t.Errorf("Expected enrich workers 2, got %d", config.Crawl.EnrichWorkers)
	}
	if config.Store.Path != "/tmp/custom.db" {
		t.Errorf("Expected store path /tmp/custom.db, got %s", config.Store.Path)
	}
	if config.Logging.Level != "warn" {
		t.Errorf("Expected log level warn, got %s", config.Logging.Level)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantError bool
	}{
		{
			name:      "valid default",
			mutate:    func(c *Config) {},
			wantError: false,
		},
		{
			name:      "zero workers",
			mutate:    func(c *Config) { c.Crawl.EnrichWorkers = 0 },
			wantError: true,
		},
		{
			name:      "too many workers",
			mutate:    func(c *Config) { c.Crawl.EnrichWorkers = 32 },
			wantError: true,
		},
		{
			name:      "empty store path",
			mutate:    func(c *Config) { c.Store.Path = "" },
			wantError: true,
		},
		{
			name:      "max delay below base delay",
			mutate:    func(c *Config) { c.Retry.MaxDelay = c.Retry.BaseDelay / 2 },
			wantError: true,
		},
		{
			name:      "jitter factor out of range",
			mutate:    func(c *Config) { c.Retry.JitterFactor = 1.5 },
			wantError: true,
		},
		{
			name:      "invalid log level",
			mutate:    func(c *Config) { c.Logging.Level = "verbose" },
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)

			err := config.Validate()
			if tt.wantError && err == nil {
				t.Error("Expected validation error, got nil")
			}
			if !tt.wantError && err != nil {
				t.Errorf("Expected no validation error, got %v", err)
			}
		})
	}
}

func TestMergeCommandLineFlags(t *testing.T) {
	config := DefaultConfig()

	config.MergeCommandLineFlags(map[string]interface{}{
		"store":       "/tmp/flag.db",
		"workers":     6,
		"batch-size":  25,
		"max-retries": 5,
		"log-level":   "error",
	})

	if config.Store.Path != "/tmp/flag.db" {
		t.Errorf("Expected store path from flag, got %s", config.Store.Path)
	}
	if config.Crawl.EnrichWorkers != 6 {
		t.Errorf("Expected workers 6, got %d", config.Crawl.EnrichWorkers)
	}
	if config.Crawl.EnrichBatchSize != 25 {
		t.Errorf("Expected batch size 25, got %d", config.Crawl.EnrichBatchSize)
	}
	if config.Retry.MaxAttempts != 5 {
		t.Errorf("Expected max attempts 5, got %d", config.Retry.MaxAttempts)
	}
	if config.Logging.Level != "error" {
		t.Errorf("Expected log level error, got %s", config.Logging.Level)
	}
}
