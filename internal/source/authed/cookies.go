package authed

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// storedCookie is the serialized session material. A cookie jar only
// exposes name and value, which is all the origin needs back.
type storedCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func encodeCookies(cookies []*http.Cookie) ([]byte, error) {
	stored := make([]storedCookie, 0, len(cookies))
	for _, c := range cookies {
		stored = append(stored, storedCookie{Name: c.Name, Value: c.Value})
	}
	return json.Marshal(stored)
}

func decodeCookies(material []byte) ([]*http.Cookie, error) {
	var stored []storedCookie
	if err := json.Unmarshal(material, &stored); err != nil {
		return nil, fmt.Errorf("decode session cookies: %w", err)
	}
	if len(stored) == 0 {
		return nil, fmt.Errorf("session holds no cookies")
	}

	cookies := make([]*http.Cookie, 0, len(stored))
	for _, c := range stored {
		cookies = append(cookies, &http.Cookie{Name: c.Name, Value: c.Value, Path: "/"})
	}
	return cookies, nil
}
