package authed

import "encoding/json"

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email,omitempty"`
}

type profile struct {
	ScreenName           string `json:"screen_name"`
	Name                 string `json:"name"`
	ProfileImageURLHTTPS string `json:"profile_image_url_https"`
}

// Posts stay raw so one malformed post does not sink the whole page.
type timelineResponse struct {
	Posts []json.RawMessage `json:"posts"`
}

type post struct {
	ID        string   `json:"id"`
	Text      string   `json:"text"`
	CreatedAt string   `json:"created_at"`
	URL       string   `json:"url"`
	IsRepost  bool     `json:"is_repost"`
	Author    *profile `json:"author"`
	Media     []struct {
		URL string `json:"url"`
	} `json:"media"`
}
