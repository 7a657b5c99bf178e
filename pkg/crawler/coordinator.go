// Package crawler drives the crawl state machine: paginate the follower
// list, enrich discovered followers with profile snapshots, and persist
// enough progress that a restart resumes exactly where the last run stopped.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"followcrawl/internal/enricher"
	"followcrawl/pkg/api"
	"followcrawl/pkg/config"
	"followcrawl/pkg/logger"
	"followcrawl/pkg/quota"
	"followcrawl/pkg/retry"
	"followcrawl/pkg/store"
)

// State is the coordinator's position in the crawl.
type State string

const (
	// StateListing means follower-list pages are still being paginated.
	StateListing State = "listing"
	// StateEnriching means the listing is complete and profile lookups are
	// in progress.
	StateEnriching State = "enriching"
	// StateDone means every follower has a terminal status.
	StateDone State = "done"
	// StateAborted means a fatal error stopped the crawl.
	StateAborted State = "aborted"
)

// sleepFunc suspends until the duration passes or the context is cancelled.
// Swapped out in tests to run synthetic quota schedules.
type sleepFunc func(ctx context.Context, d time.Duration) error

// Coordinator owns the crawl loop. It is not safe for concurrent use; one
// coordinator drives one store, enforced by the store's process lock.
type Coordinator struct {
	cfg     *config.Config
	fetcher api.Fetcher
	store   *store.Store
	quota   *quota.Tracker
	logger  logger.Logger
	sleep   sleepFunc
	state   State
}

// New creates a coordinator. The quota tracker is injected rather than owned
// so tests can seed synthetic budgets.
func New(cfg *config.Config, fetcher api.Fetcher, st *store.Store, tracker *quota.Tracker, log logger.Logger) *Coordinator {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Coordinator{
		cfg:     cfg,
		fetcher: fetcher,
		store:   st,
		quota:   tracker,
		logger:  log,
		sleep:   retry.Wait,
	}
}

// State returns the coordinator's current state.
func (c *Coordinator) State() State {
	return c.state
}

// Run executes the crawl until it reaches a terminal state or the context is
// cancelled. The returned state is always meaningful: on cancellation it is
// the state the next invocation will resume in.
func (c *Coordinator) Run(ctx context.Context) (State, error) {
	state, cp, err := c.computeState(ctx)
	if err != nil {
		c.state = StateAborted
		return c.state, err
	}
	c.state = state
	c.logResume(ctx, cp)

	if c.state == StateListing {
		if err := c.runListing(ctx, cp.Cursor); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return c.state, err
			}
			c.state = StateAborted
			return c.state, err
		}
		c.state = StateEnriching
	}

	if c.state == StateEnriching {
		if err := c.runEnriching(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return c.state, err
			}
			c.state = StateAborted
			return c.state, err
		}
		c.state = StateDone
	}

	c.logger.InfoWithFields("crawl finished", map[string]interface{}{
		"state": string(c.state),
	})
	return c.state, nil
}

// computeState derives the starting state purely from persisted data.
func (c *Coordinator) computeState(ctx context.Context) (State, store.Checkpoint, error) {
	cp, err := c.store.LoadCheckpoint(ctx)
	if err != nil {
		return StateAborted, cp, err
	}
	if !cp.ListingDone {
		return StateListing, cp, nil
	}

	counts, err := c.store.CountByStatus(ctx)
	if err != nil {
		return StateAborted, cp, err
	}
	if counts.Discovered > 0 {
		return StateEnriching, cp, nil
	}
	return StateDone, cp, nil
}

func (c *Coordinator) logResume(ctx context.Context, cp store.Checkpoint) {
	counts, err := c.store.CountByStatus(ctx)
	if err != nil {
		return
	}
	c.logger.InfoWithFields("starting crawl", map[string]interface{}{
		"state":           string(c.state),
		"cursor":          cp.Cursor,
		"known_followers": counts.Total(),
		"pending":         counts.Discovered,
	})
}

// runListing paginates the follower list from the given cursor. Each page is
// upserted and then checkpointed, in that order, so a crash between the two
// re-fetches the page instead of skipping it.
func (c *Coordinator) runListing(ctx context.Context, cursor string) error {
	for {
		if ok, wait := c.quota.Reserve(api.CategoryFollowerList); !ok {
			wait += c.cfg.Crawl.QuotaPadding
			logger.LogRateLimit(string(api.CategoryFollowerList), wait)
			if err := c.sleep(ctx, wait); err != nil {
				return err
			}
			continue
		}

		page, err := c.fetchPage(ctx, cursor)
		if err != nil {
			if q, limited := api.IsRateLimited(err); limited {
				if q != nil {
					c.quota.Observe(api.CategoryFollowerList, q.Remaining, q.ResetAt)
				}
				continue
			}
			return fmt.Errorf("listing page at cursor %q: %w", cursor, err)
		}

		c.quota.Observe(api.CategoryFollowerList, page.Quota.Remaining, page.Quota.ResetAt)

		newCount, err := c.store.UpsertFollowers(ctx, page.IDs)
		if err != nil {
			return fmt.Errorf("storing follower page: %w", err)
		}
		if err := c.store.SaveCheckpoint(ctx, store.Checkpoint{
			Cursor:      page.NextCursor,
			ListingDone: page.Done,
		}); err != nil {
			return fmt.Errorf("saving checkpoint: %w", err)
		}

		c.logger.DebugWithFields("follower page stored", map[string]interface{}{
			"page_size":   len(page.IDs),
			"new":         newCount,
			"next_cursor": page.NextCursor,
		})

		if page.Done {
			c.logger.Info("follower listing complete")
			return nil
		}
		cursor = page.NextCursor
	}
}

// fetchPage fetches one listing page with bounded backoff on transient
// failures. Rate-limit errors pass through untouched so the caller can feed
// the observed quota back into the tracker.
func (c *Coordinator) fetchPage(ctx context.Context, cursor string) (*api.FollowerPage, error) {
	return retry.DoWithResult(func() (*api.FollowerPage, error) {
		return c.fetcher.FetchFollowerPage(ctx, cursor)
	}, &retry.Config{
		MaxAttempts: c.cfg.Retry.MaxAttempts,
		Backoff:     retry.FromConfig(&c.cfg.Retry),
		RetryIf:     api.IsRetryable,
		Context:     ctx,
		Logger:      c.logger,
	})
}

// runEnriching drains the pending set batch by batch through the worker
// pool. Storage status is the only checkpoint here: a follower leaves the
// pending set the moment its terminal status commits.
func (c *Coordinator) runEnriching(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		ids, err := c.store.NextNeedingProfile(ctx, c.cfg.Crawl.EnrichBatchSize)
		if err != nil {
			return fmt.Errorf("loading pending followers: %w", err)
		}
		if len(ids) == 0 {
			return nil
		}

		if err := c.enrichBatch(ctx, ids); err != nil {
			return err
		}

		counts, err := c.store.CountByStatus(ctx)
		if err != nil {
			return fmt.Errorf("counting followers: %w", err)
		}
		logger.LogCrawlProgress(string(StateEnriching), counts.Total()-counts.Discovered, counts.Total())
	}
}

func (c *Coordinator) enrichBatch(ctx context.Context, ids []string) error {
	pool := enricher.NewPool(ctx, &c.cfg.Crawl, &c.cfg.Retry, c.fetcher, c.store, c.quota, c.logger)
	pool.Start()

	go func() {
		for _, id := range ids {
			if err := pool.Submit(enricher.Job{ID: id}); err != nil {
				break
			}
		}
		pool.Stop()
	}()

	var batchErr error
	for result := range pool.Results() {
		if result.Err != nil && batchErr == nil {
			batchErr = fmt.Errorf("enriching follower %s: %w", result.Job.ID, result.Err)
		}
	}
	if batchErr != nil {
		return batchErr
	}
	return ctx.Err()
}
