// Package api defines the boundary between the crawl engine and the
// social-network API client: the page/profile result types, the quota
// observations every response carries, and the error taxonomy the
// coordinator dispatches on.
package api

import (
	"context"
	"time"
)

// EndpointCategory identifies a group of API endpoints that share one
// rate-limit budget.
type EndpointCategory string

const (
	// CategoryFollowerList covers the paginated follower-ID listing endpoint.
	CategoryFollowerList EndpointCategory = "follower_list"
	// CategoryProfile covers the per-user profile lookup endpoint.
	CategoryProfile EndpointCategory = "profile_lookup"
)

// Quota is a rate-limit observation reported by the API alongside a response.
// The API's own report is authoritative over any local bookkeeping, since
// other processes or tokens may share the same limit.
type Quota struct {
	Remaining int
	ResetAt   time.Time
}

// FollowerPage is one page of follower identifiers.
type FollowerPage struct {
	IDs        []string
	NextCursor string
	Done       bool
	Quota      Quota
}

// Profile is a point-in-time snapshot of a follower's public profile.
type Profile struct {
	ID             string
	ScreenName     string
	DisplayName    string
	Bio            string
	Location       string
	URL            string
	FollowersCount int
	FriendsCount   int
	StatusesCount  int
	Verified       bool
	Protected      bool
	CreatedAt      string
	Quota          Quota
}

// Fetcher is the capability the crawl coordinator drives. Implementations
// wrap the real API client; failures are reported as *Error values so the
// coordinator can tell a rate limit from a dead account from a revoked token.
type Fetcher interface {
	// FetchFollowerPage returns the page of follower IDs at cursor.
	// An empty cursor requests the first page.
	FetchFollowerPage(ctx context.Context, cursor string) (*FollowerPage, error)

	// FetchProfile returns the current profile of a single follower.
	FetchProfile(ctx context.Context, id string) (*Profile, error)
}
