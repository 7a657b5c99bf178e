package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"followcrawl/pkg/auth"
	"followcrawl/pkg/config"
	"followcrawl/pkg/crawler"
	"followcrawl/pkg/logger"
	"followcrawl/pkg/quota"
	"followcrawl/pkg/store"
	"followcrawl/pkg/twitter"
)

var (
	// Crawl command flags
	accountLabel string
	workers      int
	batchSize    int
	maxRetries   int
)

// crawlCmd represents the crawl command
var crawlCmd = &cobra.Command{
	Use:   "crawl <screen_name>",
	Short: "Crawl the follower set of a Twitter account",
	Long: `Crawl the full follower set of a Twitter account into a SQLite store.

The crawl runs in two phases: first the follower-ID list is paginated and
every identifier stored, then each stored follower is enriched with a
profile snapshot. Progress is checkpointed after every page, so the command
can be interrupted at any point and re-run to resume.

Credentials are read from (in order):
  - A stored token ('followcrawl auth login' to store one)
  - The FOLLOWCRAWL_BEARER_TOKEN environment variable
  - The configuration file

Exit codes: 0 when the crawl completes, 1 on a fatal error, 2 when
interrupted (re-run the same command to resume).`,
	Example: `  # Crawl with default settings
  followcrawl crawl jack

  # Custom store location and worker count
  followcrawl crawl jack --store ./jack.db --workers 8

  # Resume after an interruption (same command, same store)
  followcrawl crawl jack`,
	Args: cobra.ExactArgs(1),
	Run:  runCrawl,
}

func init() {
	rootCmd.AddCommand(crawlCmd)

	crawlCmd.Flags().StringVarP(&accountLabel, "account", "a", "", "use a specific stored credential")
	crawlCmd.Flags().IntVar(&workers, "workers", 4, "number of concurrent profile-lookup workers")
	crawlCmd.Flags().IntVar(&batchSize, "batch-size", 100, "followers fetched from the store per enrichment batch")
	crawlCmd.Flags().IntVar(&maxRetries, "max-retries", 3, "maximum retry attempts for transient failures")
}

func runCrawl(cmd *cobra.Command, args []string) {
	screenName := strings.TrimSpace(args[0])

	flags := globalFlags()
	if workers != 4 {
		flags["workers"] = workers
	}
	if batchSize != 100 {
		flags["batch-size"] = batchSize
	}
	if maxRetries != 3 {
		flags["max-retries"] = maxRetries
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load configuration:", err)
		os.Exit(1)
	}

	logger.Initialize(&cfg.Logging)
	log := logger.GetLogger()
	log.WithField("version", version).Info("followcrawl starting")

	if err := resolveBearerToken(cfg); err != nil {
		log.WithError(err).Error("no credentials available")
		fmt.Fprintln(os.Stderr, "No API credentials found.")
		fmt.Fprintln(os.Stderr, "\nStore a bearer token securely with:")
		fmt.Fprintln(os.Stderr, "  followcrawl auth login")
		fmt.Fprintln(os.Stderr, "\nOr set it in the environment:")
		fmt.Fprintln(os.Stderr, "  export FOLLOWCRAWL_BEARER_TOKEN=your_token")
		os.Exit(1)
	}

	st, err := store.Open(cfg.Store.Path, screenName, log)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrLocked):
			fmt.Fprintln(os.Stderr, "another crawl is already running against this store:", err)
		case errors.Is(err, store.ErrAccountMismatch):
			fmt.Fprintln(os.Stderr, err)
			fmt.Fprintln(os.Stderr, "use a different --store path for each crawled account")
		default:
			fmt.Fprintln(os.Stderr, "failed to open store:", err)
		}
		os.Exit(1)
	}
	defer st.Close()

	client := twitter.NewClient(&cfg.Twitter, screenName, log)
	coord := crawler.New(cfg, client, st, quota.NewTracker(), log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	state, err := coord.Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.WithField("state", string(state)).Warn("crawl interrupted, progress saved")
			st.Close()
			os.Exit(2)
		}
		log.WithError(err).WithFields(map[string]interface{}{
			"state":       string(state),
			"screen_name": screenName,
		}).Error("crawl aborted")
		st.Close()
		os.Exit(1)
	}

	log.WithField("screen_name", screenName).Info("crawl completed")
}

// resolveBearerToken fills cfg.Twitter.BearerToken from the credential chain
// when the config itself carries no token. The token value never goes
// anywhere but the request header.
func resolveBearerToken(cfg *config.Config) error {
	if cfg.Twitter.BearerToken != "" {
		return nil
	}

	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("initializing credential manager: %w", err)
	}

	var account *auth.Account
	if accountLabel != "" {
		account, err = manager.Retrieve(accountLabel)
	} else {
		account, err = manager.RetrieveDefault()
	}
	if err != nil {
		return err
	}

	cfg.Twitter.BearerToken = account.BearerToken
	logger.WithField("credential", account.Label).Info("using stored credentials")
	return nil
}
