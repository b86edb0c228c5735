package authed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"content_ingester/internal/domain"
	"content_ingester/internal/logging"
)

type memorySessions struct {
	mu    sync.Mutex
	data  map[string]*domain.SessionState
	saves int
}

func newMemorySessions() *memorySessions {
	return &memorySessions{data: make(map[string]*domain.SessionState)}
}

func (m *memorySessions) Load(_ context.Context, identity string) (*domain.SessionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.data[identity]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return st, nil
}

func (m *memorySessions) Save(_ context.Context, identity string, state *domain.SessionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[identity] = state
	m.saves++
	return nil
}

// fakeOrigin accepts any cookie value listed in valid and issues "fresh" on login.
type fakeOrigin struct {
	mu       sync.Mutex
	valid    map[string]bool
	rejectPW atomic.Bool

	logins    atomic.Int32
	probes    atomic.Int32
	profiles  atomic.Int32
	timelines atomic.Int32

	posts []any
}

func (o *fakeOrigin) authorized(r *http.Request) bool {
	c, err := r.Cookie("auth_token")
	if err != nil {
		return false
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.valid[c.Value]
}

func (o *fakeOrigin) accept(token string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.valid[token] = true
}

func (o *fakeOrigin) revokeAll() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.valid = map[string]bool{}
}

func (o *fakeOrigin) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		o.logins.Add(1)
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || o.rejectPW.Load() || req.Password != "secret" {
			http.Error(w, "bad credentials", http.StatusUnauthorized)
			return
		}
		o.accept("fresh")
		http.SetCookie(w, &http.Cookie{Name: "auth_token", Value: "fresh", Path: "/"})
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("GET /account/verify_credentials", func(w http.ResponseWriter, r *http.Request) {
		o.probes.Add(1)
		if !o.authorized(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("GET /users/{handle}", func(w http.ResponseWriter, r *http.Request) {
		o.profiles.Add(1)
		_ = json.NewEncoder(w).Encode(profile{
			ScreenName:           r.PathValue("handle"),
			Name:                 "Senator " + r.PathValue("handle"),
			ProfileImageURLHTTPS: "https://pbs.example/profile_images/1/a_normal.jpg",
		})
	})
	mux.HandleFunc("GET /users/{handle}/timeline", func(w http.ResponseWriter, r *http.Request) {
		o.timelines.Add(1)
		if !o.authorized(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"posts": o.posts})
	})
	return mux
}

func newOrigin(t *testing.T, posts ...any) (*fakeOrigin, *httptest.Server) {
	t.Helper()
	o := &fakeOrigin{valid: map[string]bool{}, posts: posts}
	srv := httptest.NewServer(o.handler())
	t.Cleanup(srv.Close)
	return o, srv
}

func newTestSource(t *testing.T, baseURL string, store SessionStore) *Source {
	t.Helper()
	s, err := New(Config{
		BaseURL:      baseURL,
		Username:     "ingest",
		Password:     "secret",
		Identity:     "social_session",
		Timeout:      2 * time.Second,
		MaxItems:     20,
		LoginPath:    "/auth/login",
		ProbePath:    "/account/verify_credentials",
		ProfilePath:  "/users/{handle}",
		TimelinePath: "/users/{handle}/timeline",
	}, store, logging.Discard())
	require.NoError(t, err)
	return s
}

func storedSession(t *testing.T, value string) *domain.SessionState {
	t.Helper()
	material, err := encodeCookies([]*http.Cookie{{Name: "auth_token", Value: value}})
	require.NoError(t, err)
	return &domain.SessionState{Identity: "social_session", Material: material, SavedAt: time.Now()}
}

func TestPrepare_ReusesValidStoredSession(t *testing.T) {
	origin, srv := newOrigin(t)
	origin.accept("cached")

	store := newMemorySessions()
	store.data["social_session"] = storedSession(t, "cached")

	s := newTestSource(t, srv.URL, store)
	require.NoError(t, s.Prepare(context.Background()))

	assert.Equal(t, StateReady, s.State())
	assert.EqualValues(t, 0, origin.logins.Load())
	assert.EqualValues(t, 1, origin.probes.Load())
	assert.Equal(t, 0, store.saves)
}

func TestPrepare_InvalidStoredSessionLogsInOnce(t *testing.T) {
	origin, srv := newOrigin(t)

	store := newMemorySessions()
	store.data["social_session"] = storedSession(t, "expired")

	s := newTestSource(t, srv.URL, store)
	require.NoError(t, s.Prepare(context.Background()))

	assert.Equal(t, StateReady, s.State())
	assert.EqualValues(t, 1, origin.logins.Load())
	assert.Equal(t, 1, store.saves)

	cookies, err := decodeCookies(store.data["social_session"].Material)
	require.NoError(t, err)
	require.Len(t, cookies, 1)
	assert.Equal(t, "fresh", cookies[0].Value)
}

func TestPrepare_MissingSessionLogsInOnce(t *testing.T) {
	origin, srv := newOrigin(t)
	store := newMemorySessions()

	s := newTestSource(t, srv.URL, store)
	require.NoError(t, s.Prepare(context.Background()))
	require.NoError(t, s.Prepare(context.Background()))

	assert.EqualValues(t, 1, origin.logins.Load())
	assert.EqualValues(t, 0, origin.probes.Load())
}

func TestPrepare_UnreadableSessionLogsIn(t *testing.T) {
	origin, srv := newOrigin(t)
	store := newMemorySessions()
	store.data["social_session"] = &domain.SessionState{Identity: "social_session", Material: []byte("not json")}

	s := newTestSource(t, srv.URL, store)
	require.NoError(t, s.Prepare(context.Background()))

	assert.EqualValues(t, 1, origin.logins.Load())
	assert.EqualValues(t, 0, origin.probes.Load())
}

func TestPrepare_LoginFailureIsFatal(t *testing.T) {
	origin, srv := newOrigin(t)
	origin.rejectPW.Store(true)

	s := newTestSource(t, srv.URL, newMemorySessions())
	err := s.Prepare(context.Background())

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrLoginFailed))
	assert.Equal(t, StateNoSession, s.State())

	origin.rejectPW.Store(false)
	require.NoError(t, s.Prepare(context.Background()))
	assert.EqualValues(t, 2, origin.logins.Load())
}

func TestPrepare_MissingCredentialsIsFatal(t *testing.T) {
	origin, srv := newOrigin(t)

	s := newTestSource(t, srv.URL, newMemorySessions())
	s.cfg.Password = ""

	err := s.Prepare(context.Background())
	require.ErrorIs(t, err, domain.ErrLoginFailed)
	assert.EqualValues(t, 0, origin.logins.Load())
}

func TestFetch_RequiresReadySession(t *testing.T) {
	_, srv := newOrigin(t)
	s := newTestSource(t, srv.URL, newMemorySessions())

	_, err := s.Fetch(context.Background(), domain.Source{ID: "a", Kind: domain.KindAuthenticatedSocial, Address: "SenA"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no_session")
}

func TestFetch_FiltersRepostsAndSkipsMalformed(t *testing.T) {
	origin, srv := newOrigin(t,
		map[string]any{"id": "3", "text": "third", "created_at": "2024-05-03T10:00:00Z"},
		map[string]any{"id": "2", "text": "shared", "created_at": "2024-05-02T10:00:00Z", "is_repost": true},
		map[string]any{"id": 42, "text": "broken id type"},
		map[string]any{
			"id": "1", "text": "first", "created_at": "Thu May 02 08:00:00 +0000 2024",
			"media": []map[string]string{{"url": "https://pbs.example/media/1.jpg"}},
		},
	)

	s := newTestSource(t, srv.URL, newMemorySessions())
	require.NoError(t, s.Prepare(context.Background()))

	items, err := s.Fetch(context.Background(), domain.Source{ID: "a", Kind: domain.KindAuthenticatedSocial, Address: "@SenA"})
	require.NoError(t, err)
	require.Len(t, items, 2)

	first := items[0].(domain.AuthenticatedItem)
	assert.Equal(t, "3", first.ID)
	assert.Equal(t, "SenA", first.AuthorHandle)
	assert.Equal(t, "Senator SenA", first.AuthorName)
	assert.Equal(t, fmt.Sprintf("%s/SenA/status/3", srv.URL), first.URL)
	assert.Equal(t, time.Date(2024, 5, 3, 10, 0, 0, 0, time.UTC), first.CreatedAt.UTC())

	second := items[1].(domain.AuthenticatedItem)
	assert.Equal(t, "1", second.ID)
	assert.Equal(t, []string{"https://pbs.example/media/1.jpg"}, second.MediaURLs)
	assert.False(t, second.CreatedAt.IsZero())

	assert.EqualValues(t, 1, origin.timelines.Load())
}

func TestFetch_CachesProfilePerRun(t *testing.T) {
	origin, srv := newOrigin(t, map[string]any{"id": "1", "text": "hello"})

	s := newTestSource(t, srv.URL, newMemorySessions())
	require.NoError(t, s.Prepare(context.Background()))

	src := domain.Source{ID: "a", Kind: domain.KindAuthenticatedSocial, Address: "SenA"}
	_, err := s.Fetch(context.Background(), src)
	require.NoError(t, err)
	_, err = s.Fetch(context.Background(), domain.Source{ID: "a2", Kind: domain.KindAuthenticatedSocial, Address: "sena"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, origin.profiles.Load())

	require.NoError(t, s.Prepare(context.Background()))
	_, err = s.Fetch(context.Background(), src)
	require.NoError(t, err)
	assert.EqualValues(t, 2, origin.profiles.Load())
}

func TestFetch_RejectedSessionIsRevalidatedNextRun(t *testing.T) {
	origin, srv := newOrigin(t, map[string]any{"id": "1", "text": "hello"})
	store := newMemorySessions()

	s := newTestSource(t, srv.URL, store)
	require.NoError(t, s.Prepare(context.Background()))

	origin.revokeAll()

	_, err := s.Fetch(context.Background(), domain.Source{ID: "a", Kind: domain.KindAuthenticatedSocial, Address: "SenA"})
	require.ErrorIs(t, err, domain.ErrSessionRejected)
	assert.Equal(t, StateNoSession, s.State())

	require.NoError(t, s.Prepare(context.Background()))
	assert.Equal(t, StateReady, s.State())
	assert.EqualValues(t, 1, origin.probes.Load())
	assert.EqualValues(t, 2, origin.logins.Load())
}

func TestFetch_RateLimited(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "auth_token", Value: "fresh", Path: "/"})
	})
	mux.HandleFunc("GET /users/{handle}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("GET /users/{handle}/timeline", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s := newTestSource(t, srv.URL, newMemorySessions())
	require.NoError(t, s.Prepare(context.Background()))

	_, err := s.Fetch(context.Background(), domain.Source{ID: "a", Kind: domain.KindAuthenticatedSocial, Address: "SenA"})
	require.ErrorIs(t, err, domain.ErrRateLimited)
	assert.Equal(t, StateReady, s.State())
	assert.EqualValues(t, 1, calls.Load())
}

func TestCookies_RoundTrip(t *testing.T) {
	material, err := encodeCookies([]*http.Cookie{
		{Name: "auth_token", Value: "abc"},
		{Name: "ct0", Value: "def"},
	})
	require.NoError(t, err)

	cookies, err := decodeCookies(material)
	require.NoError(t, err)
	require.Len(t, cookies, 2)
	assert.Equal(t, "ct0", cookies[1].Name)
	assert.Equal(t, "/", cookies[1].Path)

	_, err = decodeCookies([]byte("[]"))
	assert.Error(t, err)
}
