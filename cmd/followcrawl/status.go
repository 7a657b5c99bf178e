package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"followcrawl/pkg/config"
	"followcrawl/pkg/logger"
	"followcrawl/pkg/store"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show crawl progress for a store",
	Long: `Show the crawl progress recorded in a store: the tracked account, the
listing cursor, and follower counts per status.

Safe to run while a crawl is in progress; the store's WAL mode lets
readers proceed alongside the crawl's writes.`,
	Example: `  # Progress of the default store
  followcrawl status

  # Progress of a specific store
  followcrawl status --store ./jack.db`,
	Args: cobra.NoArgs,
	Run:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(configFile, globalFlags())
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load configuration:", err)
		os.Exit(1)
	}

	if _, err := os.Stat(cfg.Store.Path); err != nil {
		fmt.Fprintf(os.Stderr, "no store at %s\n", cfg.Store.Path)
		os.Exit(1)
	}

	st, err := store.OpenExisting(cfg.Store.Path, logger.NewNopLogger())
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to open store:", err)
		os.Exit(1)
	}
	defer st.Close()

	ctx := context.Background()

	account, err := st.Account()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to read account:", err)
		os.Exit(1)
	}
	cp, err := st.LoadCheckpoint(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to read checkpoint:", err)
		os.Exit(1)
	}
	counts, err := st.CountByStatus(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to read counts:", err)
		os.Exit(1)
	}

	phase := "listing"
	switch {
	case cp.ListingDone && counts.Discovered == 0:
		phase = "done"
	case cp.ListingDone:
		phase = "enriching"
	case cp.Cursor == "":
		phase = "not started"
	}

	fmt.Printf("Store:      %s\n", cfg.Store.Path)
	fmt.Printf("Account:    %s\n", account)
	fmt.Printf("Phase:      %s\n", phase)
	if !cp.ListingDone && cp.Cursor != "" {
		fmt.Printf("Cursor:     %s\n", cp.Cursor)
	}
	fmt.Printf("Followers:  %d known\n", counts.Total())
	fmt.Printf("  fetched:  %d\n", counts.ProfileFetched)
	fmt.Printf("  failed:   %d\n", counts.ProfileFailed)
	fmt.Printf("  pending:  %d\n", counts.Discovered)
}
