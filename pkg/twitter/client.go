// Package twitter adapts the Twitter REST API to the api.Fetcher boundary:
// it translates HTTP status codes into the crawl error taxonomy and
// x-rate-limit headers into quota observations, including on 429 responses.
package twitter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"followcrawl/pkg/api"
	"followcrawl/pkg/config"
	"followcrawl/pkg/logger"
)

// Client implements api.Fetcher against the Twitter REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	screenName string
	bearer     string
	userAgent  string
	logger     logger.Logger
}

// NewClient creates a fetcher for the followers of screenName. The bearer
// token is held only in memory and never logged.
func NewClient(cfg *config.TwitterConfig, screenName string, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		baseURL:    cfg.BaseURL,
		screenName: screenName,
		bearer:     cfg.BearerToken,
		userAgent:  cfg.UserAgent,
		logger:     log,
	}
}

// FetchFollowerPage returns the page of follower IDs at cursor. An empty
// cursor requests the first page.
func (c *Client) FetchFollowerPage(ctx context.Context, cursor string) (*api.FollowerPage, error) {
	if cursor == "" {
		cursor = firstPageCursor
	}

	url := FollowerIDsURL(c.baseURL, c.screenName, cursor)

	c.logger.DebugWithFields("fetching follower page", map[string]interface{}{
		"screen_name": c.screenName,
		"cursor":      cursor,
	})

	var page followerIDsResponse
	quota, err := c.getJSON(ctx, url, &page)
	if err != nil {
		return nil, err
	}

	result := &api.FollowerPage{
		IDs:        page.IDs,
		NextCursor: page.NextCursorStr,
		Done:       page.NextCursorStr == lastPageCursor || page.NextCursorStr == "",
	}
	if quota != nil {
		result.Quota = *quota
	}

	c.logger.DebugWithFields("follower page fetched", map[string]interface{}{
		"screen_name": c.screenName,
		"id_count":    len(result.IDs),
		"done":        result.Done,
	})

	return result, nil
}

// FetchProfile returns the current profile of a single follower.
func (c *Client) FetchProfile(ctx context.Context, id string) (*api.Profile, error) {
	url := UserShowURL(c.baseURL, id)

	var user userResponse
	quota, err := c.getJSON(ctx, url, &user)
	if err != nil {
		return nil, err
	}

	profile := &api.Profile{
		ID:             user.IDStr,
		ScreenName:     user.ScreenName,
		DisplayName:    user.Name,
		Bio:            user.Description,
		Location:       user.Location,
		URL:            user.URL,
		FollowersCount: user.FollowersCount,
		FriendsCount:   user.FriendsCount,
		StatusesCount:  user.StatusesCount,
		Verified:       user.Verified,
		Protected:      user.Protected,
		CreatedAt:      user.CreatedAt,
	}
	if profile.ID == "" {
		profile.ID = id
	}
	if quota != nil {
		profile.Quota = *quota
	}

	return profile, nil
}

// getJSON performs a GET request, maps the response status to the error
// taxonomy, and decodes the body into target. The returned quota is parsed
// from rate-limit headers whenever the response carried them, success or not.
func (c *Client) getJSON(ctx context.Context, url string, target interface{}) (*api.Quota, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &api.Error{
			Kind:    api.KindFatal,
			Message: fmt.Sprintf("failed to create request: %v", err),
		}
	}

	req.Header.Set("Authorization", "Bearer "+c.bearer)
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.WarnWithFields("HTTP request failed", map[string]interface{}{
			"url":      req.URL.Path,
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, &api.Error{
			Kind:    api.KindTransient,
			Message: fmt.Sprintf("network error: %v", err),
			Code:    0,
		}
	}
	defer resp.Body.Close()

	quota := parseQuota(resp)

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"url":      req.URL.Path,
		"status":   resp.StatusCode,
		"duration": duration,
	})

	if err := checkResponseStatus(resp, quota); err != nil {
		return quota, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return quota, &api.Error{
			Kind:    api.KindTransient,
			Message: fmt.Sprintf("failed to read response body: %v", err),
			Code:    resp.StatusCode,
			Quota:   quota,
		}
	}

	if err := json.Unmarshal(body, target); err != nil {
		return quota, &api.Error{
			Kind:    api.KindFatal,
			Message: fmt.Sprintf("failed to parse response: %v", err),
			Code:    resp.StatusCode,
			Quota:   quota,
		}
	}

	return quota, nil
}

// parseQuota reads the x-rate-limit headers. Nil when the response carried
// none (some error pages are served without them).
func parseQuota(resp *http.Response) *api.Quota {
	remainingStr := resp.Header.Get("x-rate-limit-remaining")
	resetStr := resp.Header.Get("x-rate-limit-reset")
	if remainingStr == "" || resetStr == "" {
		return nil
	}

	remaining, err := strconv.Atoi(remainingStr)
	if err != nil {
		return nil
	}
	resetUnix, err := strconv.ParseInt(resetStr, 10, 64)
	if err != nil {
		return nil
	}

	return &api.Quota{
		Remaining: remaining,
		ResetAt:   time.Unix(resetUnix, 0),
	}
}

// checkResponseStatus maps HTTP status codes to the error taxonomy.
func checkResponseStatus(resp *http.Response, quota *api.Quota) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return &api.Error{
			Kind:    api.KindRateLimited,
			Message: "rate limit exceeded",
			Code:    resp.StatusCode,
			Quota:   quota,
		}
	case resp.StatusCode == http.StatusNotFound:
		return &api.Error{
			Kind:    api.KindNotFound,
			Message: "account not found",
			Code:    resp.StatusCode,
			Quota:   quota,
		}
	case resp.StatusCode == http.StatusForbidden:
		// Suspended accounts are reported as 403 on profile lookups.
		if apiErrorCode(resp) == 63 {
			return &api.Error{
				Kind:    api.KindNotFound,
				Message: "account suspended",
				Code:    resp.StatusCode,
				Quota:   quota,
			}
		}
		return &api.Error{
			Kind:    api.KindFatal,
			Message: "request forbidden",
			Code:    resp.StatusCode,
			Quota:   quota,
		}
	case resp.StatusCode == http.StatusUnauthorized:
		return &api.Error{
			Kind:    api.KindFatal,
			Message: "authentication failed",
			Code:    resp.StatusCode,
			Quota:   quota,
		}
	case resp.StatusCode >= 500:
		return &api.Error{
			Kind:    api.KindTransient,
			Message: fmt.Sprintf("server error: status %d", resp.StatusCode),
			Code:    resp.StatusCode,
			Quota:   quota,
		}
	default:
		return &api.Error{
			Kind:    api.KindFatal,
			Message: fmt.Sprintf("unexpected status code: %d", resp.StatusCode),
			Code:    resp.StatusCode,
			Quota:   quota,
		}
	}
}

// apiErrorCode extracts the first API error code from an error body, or 0.
func apiErrorCode(resp *http.Response) int {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0
	}

	var parsed errorResponse
	if err := json.Unmarshal(body, &parsed); err != nil || len(parsed.Errors) == 0 {
		return 0
	}
	return parsed.Errors[0].Code
}
