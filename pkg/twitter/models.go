package twitter

// followerIDsResponse is the wire format of followers/ids.json.
type followerIDsResponse struct {
	IDs               []string `json:"ids"`
	NextCursorStr     string   `json:"next_cursor_str"`
	PreviousCursorStr string   `json:"previous_cursor_str"`
}

// userResponse is the wire format of users/show.json, trimmed to the fields
// the store persists.
type userResponse struct {
	IDStr          string `json:"id_str"`
	ScreenName     string `json:"screen_name"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	Location       string `json:"location"`
	URL            string `json:"url"`
	FollowersCount int    `json:"followers_count"`
	FriendsCount   int    `json:"friends_count"`
	StatusesCount  int    `json:"statuses_count"`
	Verified       bool   `json:"verified"`
	Protected      bool   `json:"protected"`
	CreatedAt      string `json:"created_at"`
}

// errorResponse is the wire format of API error bodies.
type errorResponse struct {
	Errors []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}
