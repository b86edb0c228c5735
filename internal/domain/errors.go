package domain

import "errors"

var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrLoginFailed       = errors.New("login failed")
	ErrSessionRejected   = errors.New("session rejected by origin")
	ErrRateLimited       = errors.New("rate limited by origin")
	ErrSourceSkipped     = errors.New("source skipped")
	ErrUnknownSourceKind = errors.New("unknown source kind")
)
