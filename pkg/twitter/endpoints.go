package twitter

import (
	"fmt"
	"net/url"
)

const (
	// followersPageSize is the maximum IDs per follower-list page.
	followersPageSize = 5000

	// firstPageCursor is the cursor value requesting the first page.
	firstPageCursor = "-1"
	// lastPageCursor is the cursor value the API returns on the final page.
	lastPageCursor = "0"
)

// FollowerIDsURL builds the URL for one page of follower IDs.
func FollowerIDsURL(baseURL, screenName, cursor string) string {
	q := url.Values{}
	q.Set("screen_name", screenName)
	q.Set("cursor", cursor)
	q.Set("stringify_ids", "true")
	q.Set("count", fmt.Sprintf("%d", followersPageSize))
	return fmt.Sprintf("%s/followers/ids.json?%s", baseURL, q.Encode())
}

// UserShowURL builds the URL for a single user profile lookup.
func UserShowURL(baseURL, userID string) string {
	q := url.Values{}
	q.Set("user_id", userID)
	return fmt.Sprintf("%s/users/show.json?%s", baseURL, q.Encode())
}
