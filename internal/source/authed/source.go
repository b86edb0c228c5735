// Package authed fetches timelines from the social origin using a logged-in
// session. Session acquisition is a small state machine (see Prepare) that
// runs once per process and is reused for every handle.
package authed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"content_ingester/internal/domain"
	"content_ingester/internal/httpclient"
)

type Config struct {
	BaseURL      string
	Username     string
	Password     string
	Email        string
	Identity     string
	UserAgent    string
	Timeout      time.Duration
	MaxItems     int
	LoginPath    string
	ProbePath    string
	ProfilePath  string
	TimelinePath string
}

type Source struct {
	cfg      Config
	base     *url.URL
	client   *resty.Client
	jar      *cookiejar.Jar
	sessions SessionStore
	logger   *slog.Logger

	mu       sync.Mutex
	state    State
	profiles map[string]profile
}

func New(cfg Config, sessions SessionStore, logger *slog.Logger) (*Source, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("invalid social base url %q", cfg.BaseURL)
	}
	if sessions == nil {
		return nil, errors.New("session store is required")
	}

	client := resty.New().
		SetBaseURL(base.String()).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")
	if cfg.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.UserAgent)
	}

	s := &Source{
		cfg:      cfg,
		base:     base,
		client:   client,
		sessions: sessions,
		logger:   logger.With("fetcher", "authed"),
		state:    StateNoSession,
		profiles: make(map[string]profile),
	}
	s.resetJar()
	return s, nil
}

// Fetch returns up to MaxItems of the handle's own recent posts, newest
// first. Reposts are left out. Prepare must have succeeded first.
func (s *Source) Fetch(ctx context.Context, src domain.Source) ([]domain.RawItem, error) {
	handle := strings.TrimPrefix(strings.TrimSpace(src.Address), "@")
	if handle == "" {
		return nil, fmt.Errorf("source %q has no handle", src.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateReady {
		return nil, fmt.Errorf("authenticated fetch for %s: session is %s", handle, s.state)
	}

	author := s.profile(ctx, handle)

	resp, err := s.client.R().
		SetContext(ctx).
		SetPathParam("handle", handle).
		SetQueryParam("count", strconv.Itoa(s.cfg.MaxItems)).
		Get(s.cfg.TimelinePath)
	if err != nil {
		return nil, fmt.Errorf("fetch timeline %s: %w", handle, err)
	}

	switch status := resp.StatusCode(); status {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		s.discard()
		return nil, fmt.Errorf("timeline %s status %d: %w", handle, status, domain.ErrSessionRejected)
	case http.StatusTooManyRequests:
		return nil, fmt.Errorf("timeline %s: %w", handle, domain.ErrRateLimited)
	default:
		return nil, fmt.Errorf("timeline %s returned status %d body: %s", handle, status, httpclient.Snippet(resp.Body()))
	}

	var page timelineResponse
	if err := json.Unmarshal(resp.Body(), &page); err != nil {
		return nil, fmt.Errorf("decode timeline %s: %w", handle, err)
	}

	items := make([]domain.RawItem, 0, len(page.Posts))
	for i, raw := range page.Posts {
		var p post
		if err := json.Unmarshal(raw, &p); err != nil || p.ID == "" {
			s.logger.Warn("skipping unreadable post", "handle", handle, "index", i, "error", err)
			continue
		}
		if p.IsRepost {
			continue
		}

		items = append(items, s.toItem(p, author))
		if s.cfg.MaxItems > 0 && len(items) >= s.cfg.MaxItems {
			break
		}
	}

	s.logger.Debug("fetched timeline", "handle", handle, "posts", len(page.Posts), "kept", len(items))
	return items, nil
}

func (s *Source) toItem(p post, author profile) domain.AuthenticatedItem {
	item := domain.AuthenticatedItem{
		ID:              p.ID,
		Text:            p.Text,
		URL:             p.URL,
		CreatedAt:       parseCreatedAt(p.CreatedAt),
		AuthorHandle:    author.ScreenName,
		AuthorName:      author.Name,
		AuthorAvatarURL: author.ProfileImageURLHTTPS,
		IsRepost:        p.IsRepost,
	}
	if p.Author != nil {
		if item.AuthorName == "" {
			item.AuthorName = p.Author.Name
		}
		if item.AuthorAvatarURL == "" {
			item.AuthorAvatarURL = p.Author.ProfileImageURLHTTPS
		}
	}
	if item.URL == "" {
		item.URL = fmt.Sprintf("%s://%s/%s/status/%s", s.base.Scheme, s.base.Host, author.ScreenName, p.ID)
	}
	for _, m := range p.Media {
		item.MediaURLs = append(item.MediaURLs, m.URL)
	}
	return item
}

// profile resolves author metadata once per run. Lookup failures fall back
// to the bare handle.
func (s *Source) profile(ctx context.Context, handle string) profile {
	key := strings.ToLower(handle)
	if p, ok := s.profiles[key]; ok {
		return p
	}

	fallback := profile{ScreenName: handle}

	resp, err := s.client.R().
		SetContext(ctx).
		SetPathParam("handle", handle).
		Get(s.cfg.ProfilePath)
	if err != nil {
		s.logger.Warn("profile lookup failed", "handle", handle, "error", err)
		return fallback
	}
	if resp.StatusCode() != http.StatusOK {
		s.logger.Warn("profile lookup failed", "handle", handle, "status", resp.StatusCode())
		return fallback
	}

	var p profile
	if err := json.Unmarshal(resp.Body(), &p); err != nil {
		s.logger.Warn("profile lookup returned unreadable body", "handle", handle, "error", err)
		return fallback
	}

	if p.ScreenName == "" {
		p.ScreenName = handle
	}
	s.profiles[key] = p
	return p
}

func parseCreatedAt(raw string) time.Time {
	for _, layout := range []string{time.RFC3339, time.RubyDate} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}
