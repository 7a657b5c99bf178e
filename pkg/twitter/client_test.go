package twitter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"followcrawl/pkg/api"
	"followcrawl/pkg/config"
	"followcrawl/pkg/logger"
)

func newTestClient(serverURL string) *Client {
	cfg := &config.TwitterConfig{
		BaseURL:        serverURL,
		BearerToken:    "test-token",
		UserAgent:      "followcrawl-test",
		RequestTimeout: 5 * time.Second,
	}
	return NewClient(cfg, "target_account", logger.NewNopLogger())
}

func withQuotaHeaders(w http.ResponseWriter, remaining int, resetAt time.Time) {
	w.Header().Set("x-rate-limit-remaining", fmt.Sprintf("%d", remaining))
	w.Header().Set("x-rate-limit-reset", fmt.Sprintf("%d", resetAt.Unix()))
}

func TestFetchFollowerPage(t *testing.T) {
	resetAt := time.Now().Add(15 * time.Minute).Truncate(time.Second)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/followers/ids.json" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("cursor"); got != "-1" {
			t.Errorf("Expected first-page cursor -1, got %s", got)
		}
		if got := r.URL.Query().Get("screen_name"); got != "target_account" {
			t.Errorf("Expected screen_name target_account, got %s", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Expected bearer auth header, got %s", got)
		}

		withQuotaHeaders(w, 14, resetAt)
		fmt.Fprint(w, `{"ids": ["101", "102"], "next_cursor_str": "1590752905", "previous_cursor_str": "0"}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	page, err := client.FetchFollowerPage(context.Background(), "")
	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}

	if len(page.IDs) != 2 || page.IDs[0] != "101" || page.IDs[1] != "102" {
		t.Errorf("Unexpected IDs: %v", page.IDs)
	}
	if page.NextCursor != "1590752905" {
		t.Errorf("Expected next cursor 1590752905, got %s", page.NextCursor)
	}
	if page.Done {
		t.Error("Expected Done to be false with a non-terminal cursor")
	}
	if page.Quota.Remaining != 14 {
		t.Errorf("Expected quota remaining 14, got %d", page.Quota.Remaining)
	}
	if !page.Quota.ResetAt.Equal(resetAt) {
		t.Errorf("Expected reset at %v, got %v", resetAt, page.Quota.ResetAt)
	}
}

func TestFetchFollowerPageLastPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		withQuotaHeaders(w, 13, time.Now().Add(15*time.Minute))
		fmt.Fprint(w, `{"ids": ["103"], "next_cursor_str": "0", "previous_cursor_str": "1590752905"}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	page, err := client.FetchFollowerPage(context.Background(), "1590752905")
	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if !page.Done {
		t.Error("Expected Done to be true on the last page")
	}
}

func TestRateLimitedCarriesQuota(t *testing.T) {
	resetAt := time.Now().Add(10 * time.Minute).Truncate(time.Second)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		withQuotaHeaders(w, 0, resetAt)
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"errors": [{"code": 88, "message": "Rate limit exceeded"}]}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	_, err := client.FetchFollowerPage(context.Background(), "")
	if err == nil {
		t.Fatal("Expected rate limit error")
	}

	quota, ok := api.IsRateLimited(err)
	if !ok {
		t.Fatalf("Expected rate limited error, got %v", err)
	}
	if quota == nil {
		t.Fatal("Expected quota observation on rate limit error")
	}
	if quota.Remaining != 0 {
		t.Errorf("Expected remaining 0, got %d", quota.Remaining)
	}
	if !quota.ResetAt.Equal(resetAt) {
		t.Errorf("Expected reset at %v, got %v", resetAt, quota.ResetAt)
	}
}

func TestDeletedAccountIsNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"errors": [{"code": 50, "message": "User not found."}]}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	_, err := client.FetchProfile(context.Background(), "999")
	if !api.IsNotFound(err) {
		t.Errorf("Expected not-found error, got %v", err)
	}
}

func TestSuspendedAccountIsNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"errors": [{"code": 63, "message": "User has been suspended."}]}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	_, err := client.FetchProfile(context.Background(), "999")
	if !api.IsNotFound(err) {
		t.Errorf("Expected suspended account to map to not-found, got %v", err)
	}
}

func TestAuthFailureIsFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"errors": [{"code": 89, "message": "Invalid or expired token."}]}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	_, err := client.FetchFollowerPage(context.Background(), "")
	if api.KindOf(err) != api.KindFatal {
		t.Errorf("Expected fatal error for auth failure, got %v", err)
	}
}

func TestServerErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	_, err := client.FetchFollowerPage(context.Background(), "")
	if !api.IsRetryable(err) {
		t.Errorf("Expected transient error for 503, got %v", err)
	}
}

func TestFetchProfile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/show.json" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("user_id"); got != "101" {
			t.Errorf("Expected user_id 101, got %s", got)
		}

		withQuotaHeaders(w, 899, time.Now().Add(15*time.Minute))
		fmt.Fprint(w, `{
			"id_str": "101",
			"screen_name": "somefan",
			"name": "Some Fan",
			"description": "bio text",
			"location": "Earth",
			"followers_count": 42,
			"friends_count": 99,
			"statuses_count": 1234,
			"verified": true,
			"protected": false,
			"created_at": "Mon Nov 29 21:18:15 +0000 2010"
		}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	profile, err := client.FetchProfile(context.Background(), "101")
	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}

	if profile.ID != "101" {
		t.Errorf("Expected ID 101, got %s", profile.ID)
	}
	if profile.ScreenName != "somefan" {
		t.Errorf("Expected screen name somefan, got %s", profile.ScreenName)
	}
	if profile.DisplayName != "Some Fan" {
		t.Errorf("Expected display name Some Fan, got %s", profile.DisplayName)
	}
	if profile.FollowersCount != 42 {
		t.Errorf("Expected followers count 42, got %d", profile.FollowersCount)
	}
	if !profile.Verified {
		t.Error("Expected verified profile")
	}
	if profile.Quota.Remaining != 899 {
		t.Errorf("Expected quota remaining 899, got %d", profile.Quota.Remaining)
	}
}

func TestNetworkErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // Closed immediately so requests fail at the dial.

	client := newTestClient(server.URL)

	_, err := client.FetchFollowerPage(context.Background(), "")
	if !api.IsRetryable(err) {
		t.Errorf("Expected transient error for network failure, got %v", err)
	}

	var apiErr *api.Error
	if !errors.As(err, &apiErr) || apiErr.Code != 0 {
		t.Errorf("Expected code 0 for network failure, got %v", err)
	}
}
