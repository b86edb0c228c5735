package authed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"time"

	"golang.org/x/net/publicsuffix"

	"content_ingester/internal/domain"
	"content_ingester/internal/httpclient"
)

// SessionStore persists opaque session material between runs.
type SessionStore interface {
	Load(ctx context.Context, identity string) (*domain.SessionState, error)
	Save(ctx context.Context, identity string, state *domain.SessionState) error
}

// State is a step of session acquisition.
type State int

const (
	StateNoSession State = iota
	StateValidating
	StateFreshLogin
	StateReady
	StateFatal
)

func (s State) String() string {
	switch s {
	case StateNoSession:
		return "no_session"
	case StateValidating:
		return "validating"
	case StateFreshLogin:
		return "fresh_login"
	case StateReady:
		return "ready"
	case StateFatal:
		return "fatal"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Prepare drives session acquisition until the session is Ready or Fatal.
// A Ready session is kept for the life of the process; a Fatal outcome is
// returned as an ErrLoginFailed error and the next call starts over.
// Prepare also starts a new run: the per-run profile cache is cleared.
func (s *Source) Prepare(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.profiles = make(map[string]profile)

	if s.state != StateReady {
		s.state = StateNoSession
	}

	var loginErr error
	for s.state != StateReady {
		prev := s.state
		switch s.state {
		case StateNoSession:
			s.state = s.restore(ctx)
		case StateValidating:
			s.state = s.validate(ctx)
		case StateFreshLogin:
			s.state, loginErr = s.freshLogin(ctx)
		case StateFatal:
			s.state = StateNoSession
			return fmt.Errorf("%w: %v", domain.ErrLoginFailed, loginErr)
		}
		s.logger.Debug("session transition", "from", prev.String(), "to", s.state.String())
	}

	return nil
}

// State reports the current acquisition state.
func (s *Source) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Source) restore(ctx context.Context) State {
	stored, err := s.sessions.Load(ctx, s.cfg.Identity)
	if errors.Is(err, domain.ErrSessionNotFound) {
		s.logger.Info("no stored session, logging in")
		return StateFreshLogin
	}
	if err != nil {
		s.logger.Warn("failed to load stored session, logging in", "error", err)
		return StateFreshLogin
	}

	cookies, err := decodeCookies(stored.Material)
	if err != nil {
		s.logger.Warn("stored session unreadable, logging in", "error", err)
		return StateFreshLogin
	}

	s.resetJar()
	s.jar.SetCookies(s.base, cookies)
	return StateValidating
}

func (s *Source) validate(ctx context.Context) State {
	resp, err := s.client.R().
		SetContext(ctx).
		Get(s.cfg.ProbePath)
	if err != nil {
		s.logger.Warn("liveness probe failed", "error", err)
		s.resetJar()
		return StateFreshLogin
	}
	if resp.StatusCode() != http.StatusOK {
		s.logger.Info("stored session rejected", "status", resp.StatusCode())
		s.resetJar()
		return StateFreshLogin
	}

	s.logger.Info("stored session is valid")
	return StateReady
}

func (s *Source) freshLogin(ctx context.Context) (State, error) {
	if s.cfg.Username == "" || s.cfg.Password == "" {
		return StateFatal, errors.New("credentials not configured")
	}

	s.resetJar()
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(loginRequest{
			Username: s.cfg.Username,
			Password: s.cfg.Password,
			Email:    s.cfg.Email,
		}).
		Post(s.cfg.LoginPath)
	if err != nil {
		return StateFatal, fmt.Errorf("login request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return StateFatal, fmt.Errorf("login status %d: %s", resp.StatusCode(), httpclient.Snippet(resp.Body()))
	}

	s.logger.Info("logged in", "identity", s.cfg.Identity)
	s.persist(ctx)
	return StateReady, nil
}

// persist saves the current cookies. Failures only cost a login next time.
func (s *Source) persist(ctx context.Context) {
	material, err := encodeCookies(s.jar.Cookies(s.base))
	if err != nil {
		s.logger.Warn("failed to encode session", "error", err)
		return
	}

	state := &domain.SessionState{
		Identity: s.cfg.Identity,
		Material: material,
		SavedAt:  time.Now().UTC(),
	}
	if err := s.sessions.Save(ctx, s.cfg.Identity, state); err != nil {
		s.logger.Warn("failed to save session", "error", err)
	}
}

// discard drops the in-memory session after the origin rejects it.
func (s *Source) discard() {
	s.resetJar()
	s.state = StateNoSession
}

func (s *Source) resetJar() {
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	s.jar = jar
	s.client.SetCookieJar(jar)
}
