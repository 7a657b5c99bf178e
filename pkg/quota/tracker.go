// Package quota tracks per-endpoint-category rate-limit budgets and decides
// when the crawler must pause. State is purely in memory: on process start
// the tracker assumes every budget is exhausted with an already-passed reset,
// so the first call in each category goes out as a probe and the response's
// quota headers seed the real numbers.
package quota

import (
	"sync"
	"time"

	"followcrawl/pkg/api"
)

// Tracker maintains the remaining-call budget and reset time for each
// endpoint category.
type Tracker struct {
	mu      sync.Mutex
	budgets map[api.EndpointCategory]*budget
}

type budget struct {
	remaining int
	resetAt   time.Time
}

// NewTracker creates a pessimistic tracker: no category has any recorded
// budget, so every first Reserve is treated as a probe.
func NewTracker() *Tracker {
	return &Tracker{
		budgets: make(map[api.EndpointCategory]*budget),
	}
}

// Reserve claims one call from the category's budget. It returns ok=true and
// decrements the budget when calls remain, ok=true without decrementing when
// the reset time has passed (the call doubles as a probe that refreshes the
// budget via Observe), and ok=false with the duration until reset otherwise.
func (t *Tracker) Reserve(category api.EndpointCategory) (ok bool, wait time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	b := t.budgets[category]
	if b == nil {
		b = &budget{}
		t.budgets[category] = b
	}

	if b.remaining > 0 {
		b.remaining--
		return true, 0
	}

	now := time.Now()
	if !now.Before(b.resetAt) {
		// Budget exhausted but the window has rolled over; let one probe
		// through and rely on Observe to reseed.
		return true, 0
	}

	return false, b.resetAt.Sub(now)
}

// Observe updates the category's budget from a live API response. The API's
// report always overwrites local bookkeeping, since other processes or
// tokens may be spending from the same limit.
func (t *Tracker) Observe(category api.EndpointCategory, remaining int, resetAt time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if remaining < 0 {
		remaining = 0
	}

	t.budgets[category] = &budget{
		remaining: remaining,
		resetAt:   resetAt,
	}
}

// Remaining returns the currently tracked remaining-call count for a
// category. Zero for categories never observed.
func (t *Tracker) Remaining(category api.EndpointCategory) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if b := t.budgets[category]; b != nil {
		return b.remaining
	}
	return 0
}
