package domain

import "time"

// SessionState is opaque authentication material for one logical identity.
// Only the fetcher that produced Material knows how to read it.
type SessionState struct {
	Identity string    `json:"identity"`
	Material []byte    `json:"material"`
	SavedAt  time.Time `json:"saved_at"`
}
