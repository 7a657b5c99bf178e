package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

var (
	// Version information, set at build time.
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	storePath  string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "followcrawl",
	Short: "Resumable follower-set crawler for Twitter accounts",
	Long: `followcrawl incrementally discovers and persists the full follower set
of a single Twitter account into a SQLite store.

Features:
  - Cursor-based pagination that survives interruption at any point
  - Rate-limit aware: waits out quota windows instead of burning calls
  - Crash-safe checkpointing: a restart never loses or skips a page
  - Concurrent profile enrichment with per-worker quota reservation
  - Secure credential storage using the system keychain

Start a crawl with 'followcrawl crawl <screen_name>' and re-run the same
command to resume after any interruption.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is .followcrawl.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&storePath, "store", "", "path to the SQLite store (default: followers.db)")

	rootCmd.SetVersionTemplate(`followcrawl {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// globalFlags builds the flag override map passed to config.Load.
func globalFlags() map[string]interface{} {
	flags := make(map[string]interface{})
	if storePath != "" {
		flags["store"] = storePath
	}
	if logLevel != "info" {
		flags["log-level"] = logLevel
	}
	return flags
}
