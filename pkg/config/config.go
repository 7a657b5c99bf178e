package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the follower crawler.
type Config struct {
	// Twitter API settings
	Twitter TwitterConfig `yaml:"twitter" json:"twitter"`

	// Crawl behaviour
	Crawl CrawlConfig `yaml:"crawl" json:"crawl"`

	// Retry/backoff policy for transient failures
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Store location
	Store StoreConfig `yaml:"store" json:"store"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// TwitterConfig holds API connection settings.
type TwitterConfig struct {
	BaseURL        string        `yaml:"base_url" json:"base_url"`
	BearerToken    string        `yaml:"bearer_token" json:"bearer_token"`
	UserAgent      string        `yaml:"user_agent" json:"user_agent"`
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
}

// CrawlConfig holds crawl behaviour settings.
type CrawlConfig struct {
	// EnrichWorkers is the size of the profile-fetch worker pool.
	EnrichWorkers int `yaml:"enrich_workers" json:"enrich_workers"`
	// EnrichBatchSize is how many pending followers are pulled from the
	// store per enrichment round.
	EnrichBatchSize int `yaml:"enrich_batch_size" json:"enrich_batch_size"`
	// QuotaPadding is added to every rate-limit wait so the process wakes
	// after, not on, the reported reset instant.
	QuotaPadding time.Duration `yaml:"quota_padding" json:"quota_padding"`
}

// RetryConfig holds the backoff policy for transient errors.
type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts" json:"max_attempts"`
	BaseDelay    time.Duration `yaml:"base_delay" json:"base_delay"`
	MaxDelay     time.Duration `yaml:"max_delay" json:"max_delay"`
	Multiplier   float64       `yaml:"multiplier" json:"multiplier"`
	JitterFactor float64       `yaml:"jitter_factor" json:"jitter_factor"`
}

// StoreConfig holds store location settings.
type StoreConfig struct {
	Path string `yaml:"path" json:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Twitter: TwitterConfig{
			BaseURL:        "https://api.twitter.com/1.1",
			UserAgent:      "followcrawl/1.0",
			RequestTimeout: 30 * time.Second,
		},
		Crawl: CrawlConfig{
			EnrichWorkers:   4,
			EnrichBatchSize: 100,
			QuotaPadding:    2 * time.Second,
		},
		Retry: RetryConfig{
			MaxAttempts:  3,
			BaseDelay:    1 * time.Second,
			MaxDelay:     60 * time.Second,
			Multiplier:   2.0,
			JitterFactor: 0.1,
		},
		Store: StoreConfig{
			Path: "followers.db",
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// LoadFromEnv loads configuration from environment variables.
func (c *Config) LoadFromEnv() error {
	if token := os.Getenv("FOLLOWCRAWL_BEARER_TOKEN"); token != "" {
		c.Twitter.BearerToken = token
	}
	if baseURL := os.Getenv("FOLLOWCRAWL_API_BASE_URL"); baseURL != "" {
		c.Twitter.BaseURL = baseURL
	}
	if storePath := os.Getenv("FOLLOWCRAWL_STORE_PATH"); storePath != "" {
		c.Store.Path = storePath
	}
	if workers := os.Getenv("FOLLOWCRAWL_ENRICH_WORKERS"); workers != "" {
		if val, err := strconv.Atoi(workers); err == nil && val > 0 {
			c.Crawl.EnrichWorkers = val
		}
	}
	if logLevel := os.Getenv("FOLLOWCRAWL_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFile := os.Getenv("FOLLOWCRAWL_LOG_FILE"); logFile != "" {
		c.Logging.File = logFile
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file.
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations.
func (c *Config) findConfigFile() string {
	locations := []string{
		".followcrawl.yaml",
		".followcrawl.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "followcrawl", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".followcrawl.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var errs []error

	if c.Twitter.BaseURL == "" {
		errs = append(errs, errors.New("API base URL is required"))
	}
	if c.Twitter.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}

	if c.Crawl.EnrichWorkers <= 0 {
		errs = append(errs, errors.New("enrich workers must be positive"))
	}
	if c.Crawl.EnrichWorkers > 16 {
		errs = append(errs, errors.New("enrich workers should not exceed 16"))
	}
	if c.Crawl.EnrichBatchSize <= 0 {
		errs = append(errs, errors.New("enrich batch size must be positive"))
	}

	if c.Retry.MaxAttempts <= 0 {
		errs = append(errs, errors.New("retry max attempts must be positive"))
	}
	if c.Retry.BaseDelay <= 0 {
		errs = append(errs, errors.New("retry base delay must be positive"))
	}
	if c.Retry.MaxDelay < c.Retry.BaseDelay {
		errs = append(errs, errors.New("retry max delay must be at least base delay"))
	}
	if c.Retry.JitterFactor < 0 || c.Retry.JitterFactor > 1 {
		errs = append(errs, errors.New("retry jitter factor must be between 0 and 1"))
	}

	if c.Store.Path == "" {
		errs = append(errs, errors.New("store path is required"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if storePath, ok := flags["store"].(string); ok && storePath != "" {
		c.Store.Path = storePath
	}
	if workers, ok := flags["workers"].(int); ok && workers > 0 {
		c.Crawl.EnrichWorkers = workers
	}
	if batchSize, ok := flags["batch-size"].(int); ok && batchSize > 0 {
		c.Crawl.EnrichBatchSize = batchSize
	}
	if maxAttempts, ok := flags["max-retries"].(int); ok && maxAttempts > 0 {
		c.Retry.MaxAttempts = maxAttempts
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence.
// Precedence order: flags > environment variables > .env file > config file > defaults.
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".followcrawl.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
