package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"followcrawl/pkg/auth"
	"followcrawl/pkg/config"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage followcrawl configuration.

Configuration is loaded from (highest priority first):
  - Command line flags
  - Environment variables (FOLLOWCRAWL_*)
  - .env file
  - Configuration file
  - Default values`,
}

// configInitCmd represents the config init command
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file is written as '.followcrawl.yaml' in the current directory unless
a different path is given with --config.`,
	Run: runConfigInit,
}

// configShowCmd represents the config show command
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the configuration after merging all sources. The bearer token is
masked.`,
	Run: runConfigShow,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}

const exampleConfig = `# followcrawl configuration file
#
# Every option can also be set through FOLLOWCRAWL_* environment variables,
# e.g. FOLLOWCRAWL_BEARER_TOKEN, FOLLOWCRAWL_STORE_PATH.

# API connection
twitter:
  # API base URL. Change only when pointing at a proxy or a mock.
  base_url: "https://api.twitter.com/1.1"

  # Bearer token. Prefer 'followcrawl auth login' over putting the token
  # in a file.
  bearer_token: ""

  # Per-request timeout.
  request_timeout: 30s

# Crawl behaviour
crawl:
  # Concurrent profile-lookup workers (1-16).
  enrich_workers: 4

  # Pending followers pulled from the store per enrichment round.
  enrich_batch_size: 100

  # Added to every rate-limit wait so the process wakes after, not on,
  # the reported reset instant.
  quota_padding: 2s

# Retry policy for transient failures
retry:
  max_attempts: 3
  base_delay: 1s
  max_delay: 60s
  multiplier: 2.0
  jitter_factor: 0.1

# Store location
store:
  path: "followers.db"

# Logging
logging:
  # Log level: debug, info, warn, error
  level: "info"

  # Log file path. Empty logs to stderr.
  file: ""
`

func runConfigInit(cmd *cobra.Command, args []string) {
	configPath := configFile
	if configPath == "" {
		configPath = ".followcrawl.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		fmt.Fprintln(os.Stderr, "configuration file already exists:", configPath)
		os.Exit(1)
	}

	if err := os.WriteFile(configPath, []byte(exampleConfig), 0644); err != nil {
		fmt.Fprintln(os.Stderr, "failed to create configuration file:", err)
		os.Exit(1)
	}

	fmt.Println("Configuration file created:", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Store a bearer token with 'followcrawl auth login'")
	fmt.Println("2. Start a crawl with 'followcrawl crawl <screen_name>'")
}

func runConfigShow(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(configFile, globalFlags())
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load configuration:", err)
		os.Exit(1)
	}

	display := *cfg
	if display.Twitter.BearerToken != "" {
		display.Twitter.BearerToken = auth.MaskToken(display.Twitter.BearerToken)
	}

	data, err := yaml.Marshal(&display)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to format configuration:", err)
		os.Exit(1)
	}
	fmt.Print(string(data))

	fmt.Println("\nConfiguration sources (in order of priority):")
	fmt.Println("1. Command line flags")
	fmt.Println("2. Environment variables (FOLLOWCRAWL_*)")
	if configFile != "" {
		fmt.Printf("3. Configuration file: %s\n", configFile)
	} else {
		fmt.Println("3. Configuration file: (searched in standard locations)")
	}
	fmt.Println("4. Default values")
}
