package syndication

// nextData is the subset of the embedded __NEXT_DATA__ document we read.
type nextData struct {
	Props struct {
		PageProps struct {
			Timeline struct {
				Entries []entry `json:"entries"`
			} `json:"timeline"`
		} `json:"pageProps"`
	} `json:"props"`
}

type entry struct {
	Type      string  `json:"type"`
	EntryID   string  `json:"entry_id"`
	SortIndex string  `json:"sort_index"`
	Content   content `json:"content"`
}

type content struct {
	Tweet *tweet `json:"tweet"`
}

type tweet struct {
	IDStr            string    `json:"id_str"`
	FullText         string    `json:"full_text"`
	Text             string    `json:"text"`
	CreatedAt        string    `json:"created_at"`
	Permalink        string    `json:"permalink"`
	User             user      `json:"user"`
	Entities         entities  `json:"entities"`
	ExtendedEntities *entities `json:"extended_entities"`
	RetweetedStatus  *struct {
		IDStr string `json:"id_str"`
	} `json:"retweeted_status"`
}

type user struct {
	ScreenName           string `json:"screen_name"`
	Name                 string `json:"name"`
	ProfileImageURLHTTPS string `json:"profile_image_url_https"`
}

type entities struct {
	Media []media `json:"media"`
}

type media struct {
	MediaURLHTTPS string `json:"media_url_https"`
}
