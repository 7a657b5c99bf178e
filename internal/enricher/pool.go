// Package enricher runs the profile-lookup phase: a bounded worker pool that
// turns discovered follower IDs into stored profile snapshots. Listing is
// sequential because cursors chain; enrichment parallelizes freely because
// every lookup is independent.
package enricher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"followcrawl/pkg/api"
	"followcrawl/pkg/config"
	"followcrawl/pkg/logger"
	"followcrawl/pkg/quota"
	"followcrawl/pkg/retry"
)

// ProfileFetcher is the slice of the API client the pool needs.
type ProfileFetcher interface {
	FetchProfile(ctx context.Context, id string) (*api.Profile, error)
}

// ProfileRecorder is the slice of the store the pool needs. Both record
// methods move the follower to a terminal status.
type ProfileRecorder interface {
	RecordProfile(ctx context.Context, id string, profile *api.Profile) error
	RecordProfileFailure(ctx context.Context, id string) error
}

// Job is a single follower ID awaiting profile lookup.
type Job struct {
	ID string
}

// Result reports the outcome of one lookup. Err is nil for both successful
// fetches and gone accounts; gone accounts set Failed instead, since a
// deleted profile is a terminal answer rather than a failure of the crawl.
type Result struct {
	Job      Job
	Failed   bool
	Err      error
	Duration time.Duration
}

// Pool manages concurrent profile-lookup workers.
type Pool struct {
	numWorkers  int
	jobQueue    chan Job
	resultQueue chan Result
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	fetcher     ProfileFetcher
	recorder    ProfileRecorder
	quota       *quota.Tracker
	retryCfg    *config.RetryConfig
	padding     time.Duration
	logger      logger.Logger
}

// NewPool creates a profile-lookup worker pool. The parent context bounds all
// workers; cancelling it drains the pool.
func NewPool(
	parent context.Context,
	cfg *config.CrawlConfig,
	retryCfg *config.RetryConfig,
	fetcher ProfileFetcher,
	recorder ProfileRecorder,
	tracker *quota.Tracker,
	log logger.Logger,
) *Pool {
	ctx, cancel := context.WithCancel(parent)

	if log == nil {
		log = logger.GetLogger()
	}

	return &Pool{
		numWorkers:  cfg.EnrichWorkers,
		jobQueue:    make(chan Job, cfg.EnrichWorkers*2),
		resultQueue: make(chan Result, cfg.EnrichWorkers),
		ctx:         ctx,
		cancel:      cancel,
		fetcher:     fetcher,
		recorder:    recorder,
		quota:       tracker,
		retryCfg:    retryCfg,
		padding:     cfg.QuotaPadding,
		logger:      log,
	}
}

// Start launches all workers.
func (p *Pool) Start() {
	p.logger.InfoWithFields("starting enrichment workers", map[string]interface{}{
		"num_workers": p.numWorkers,
	})

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop closes the job queue, waits for in-flight lookups to finish, and
// closes the result queue.
func (p *Pool) Stop() {
	close(p.jobQueue)
	p.wg.Wait()
	close(p.resultQueue)
	p.cancel()
}

// Submit queues a follower for lookup. It blocks when the queue is full and
// fails once the pool is shutting down.
func (p *Pool) Submit(job Job) error {
	select {
	case p.jobQueue <- job:
		return nil
	case <-p.ctx.Done():
		return fmt.Errorf("enrichment pool is shutting down")
	}
}

// Results returns the channel of completed lookups.
func (p *Pool) Results() <-chan Result {
	return p.resultQueue
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for job := range p.jobQueue {
		select {
		case <-p.ctx.Done():
			return
		default:
		}

		result := p.processJob(job, id)

		select {
		case p.resultQueue <- result:
		case <-p.ctx.Done():
			return
		}
	}
}

func (p *Pool) processJob(job Job, workerID int) Result {
	start := time.Now()
	result := Result{Job: job}

	for {
		if ok, wait := p.quota.Reserve(api.CategoryProfile); !ok {
			wait += p.padding
			logger.LogRateLimit(string(api.CategoryProfile), wait)
			if err := retry.Wait(p.ctx, wait); err != nil {
				result.Err = err
				result.Duration = time.Since(start)
				return result
			}
			continue
		}

		profile, err := p.fetchWithRetry(job.ID)
		if err == nil {
			p.quota.Observe(api.CategoryProfile, profile.Quota.Remaining, profile.Quota.ResetAt)
			if err := p.recorder.RecordProfile(p.ctx, job.ID, profile); err != nil {
				result.Err = fmt.Errorf("recording profile: %w", err)
			}
			result.Duration = time.Since(start)
			return result
		}

		if q, limited := api.IsRateLimited(err); limited {
			// Another worker may have spent the budget we reserved. Feed the
			// reported quota back and go around for a fresh reservation.
			if q != nil {
				p.quota.Observe(api.CategoryProfile, q.Remaining, q.ResetAt)
			}
			continue
		}

		switch api.KindOf(err) {
		case api.KindNotFound:
			p.logger.DebugWithFields("account gone, marking profile failed", map[string]interface{}{
				"worker_id":   workerID,
				"follower_id": job.ID,
			})
			result.Failed = true
			if err := p.recorder.RecordProfileFailure(p.ctx, job.ID); err != nil {
				result.Err = fmt.Errorf("recording profile failure: %w", err)
			}
		case api.KindTransient:
			// Retries exhausted. The failure stays contained to this follower
			// so the rest of the batch proceeds.
			p.logger.WarnWithFields("profile lookup failed after retries", map[string]interface{}{
				"worker_id":   workerID,
				"follower_id": job.ID,
				"error":       err.Error(),
			})
			result.Failed = true
			if err := p.recorder.RecordProfileFailure(p.ctx, job.ID); err != nil {
				result.Err = fmt.Errorf("recording profile failure: %w", err)
			}
		default:
			result.Err = err
		}

		result.Duration = time.Since(start)
		return result
	}
}

func (p *Pool) fetchWithRetry(id string) (*api.Profile, error) {
	return retry.DoWithResult(func() (*api.Profile, error) {
		return p.fetcher.FetchProfile(p.ctx, id)
	}, &retry.Config{
		MaxAttempts: p.retryCfg.MaxAttempts,
		Backoff:     retry.FromConfig(p.retryCfg),
		RetryIf:     api.IsRetryable,
		Context:     p.ctx,
		Logger:      p.logger,
	})
}
