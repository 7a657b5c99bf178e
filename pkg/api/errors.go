package api

import (
	"errors"
	"fmt"
)

// Kind classifies API failures by how the crawl recovers from them.
type Kind string

const (
	// KindRateLimited means the endpoint's quota is exhausted; recovered by
	// waiting until the reported reset time.
	KindRateLimited Kind = "rate_limited"
	// KindTransient covers network timeouts and 5xx responses; recovered by
	// bounded retry with backoff.
	KindTransient Kind = "transient"
	// KindNotFound means the account is gone (deleted or suspended);
	// terminal for that follower, never retried.
	KindNotFound Kind = "not_found"
	// KindFatal covers auth failures and malformed requests; aborts the
	// whole crawl.
	KindFatal Kind = "fatal"
)

// Error is a classified API failure. Quota is set when the failing response
// still carried rate-limit headers, so the tracker can be updated even on a
// 429.
type Error struct {
	Kind    Kind
	Message string
	Code    int // HTTP status, 0 for network-level failures
	Quota   *Quota
}

func (e *Error) Error() string {
	return fmt.Sprintf("api %s error (code %d): %s", e.Kind, e.Code, e.Message)
}

// KindOf returns the Kind of err, or KindFatal if err is not an *Error.
// Unclassified errors abort the crawl rather than being silently retried.
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindFatal
}

// IsRetryable reports whether err should be retried with backoff.
func IsRetryable(err error) bool {
	return KindOf(err) == KindTransient
}

// IsRateLimited reports whether err is a quota exhaustion, and if so returns
// the quota observed on the failing response.
func IsRateLimited(err error) (*Quota, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Kind == KindRateLimited {
		return apiErr.Quota, true
	}
	return nil, false
}

// IsNotFound reports whether err marks a deleted or suspended account.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}
