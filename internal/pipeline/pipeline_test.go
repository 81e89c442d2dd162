package pipeline

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/catx/internal/auth"
	"github.com/desertthunder/catx/internal/services"
	"github.com/desertthunder/catx/internal/shared"
	"github.com/desertthunder/catx/internal/store"
	tu "github.com/desertthunder/catx/internal/testing"
	"golang.org/x/oauth2"
)

// backend is a fake catalog API: /albums accepts only the current token, /auth/refresh rotates it.
type backend struct {
	mu        sync.Mutex
	valid     string
	seen      []string
	refreshes atomic.Int32
	failing   bool
	delay     time.Duration
	status    int
}

func (b *backend) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, services.RefreshPath):
			b.refreshes.Add(1)
			if r.Header.Get("Authorization") != "" {
				t.Error("refresh must not carry a bearer header")
			}
			time.Sleep(b.delay)
			if b.failing {
				tu.WriteFailure(w, http.StatusUnauthorized, "INVALID_REFRESH", "refresh token expired")
				return
			}
			b.mu.Lock()
			b.valid = "fresh"
			b.mu.Unlock()
			tu.WriteEnvelope(w, http.StatusOK, map[string]any{"accessToken": "fresh", "refreshToken": "r2", "expiresIn": 3600})
		case strings.HasSuffix(r.URL.Path, services.LoginPath):
			if r.Header.Get("Authorization") != "" {
				t.Error("login must not carry a bearer header")
			}
			w.WriteHeader(http.StatusUnauthorized)
		default:
			header := r.Header.Get("Authorization")
			b.mu.Lock()
			b.seen = append(b.seen, header)
			ok := header == "Bearer "+b.valid
			b.mu.Unlock()

			if !ok {
				status := b.status
				if status == 0 {
					status = http.StatusUnauthorized
				}
				w.WriteHeader(status)
				return
			}
			if r.Body != nil {
				body, _ := io.ReadAll(r.Body)
				w.Header().Set("X-Echo", string(body))
			}
			tu.WriteEnvelope(w, http.StatusOK, []string{})
		}
	})
}

type fixture struct {
	backend   *backend
	server    *httptest.Server
	manager   *auth.Manager
	transport *Transport
	client    *http.Client
	logouts   atomic.Int32
}

func newFixture(t *testing.T, b *backend) *fixture {
	t.Helper()

	f := &fixture{backend: b}
	f.server = httptest.NewServer(b.handler(t))
	t.Cleanup(f.server.Close)

	s := store.NewMemory()
	s.Set(store.AccessToken, "stale")
	s.Set(store.RefreshToken, "r1")

	logger := shared.NewLogger(io.Discard)
	f.manager = auth.NewManager(auth.ManagerOpts{
		Client:    services.NewAuthClient(services.NewAPIService(f.server.URL, nil)),
		Store:     s,
		Logger:    logger,
		Navigator: func(string) { f.logouts.Add(1) },
	})
	t.Cleanup(f.manager.Close)

	f.transport = NewTransport(Options{Session: f.manager, Logger: logger})
	f.client = f.transport.Client()
	return f
}

func (f *fixture) get(path string) (*http.Response, error) {
	req, _ := http.NewRequest(http.MethodGet, f.server.URL+path, nil)
	return f.client.Do(req)
}

func TestTransport(t *testing.T) {
	t.Run("Attaches Bearer Token", func(t *testing.T) {
		b := &backend{valid: "stale"}
		f := newFixture(t, b)

		resp, err := f.get("/albums")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Errorf("expected 200, got %d", resp.StatusCode)
		}
		if b.seen[0] != "Bearer stale" {
			t.Errorf("expected bearer header, got %q", b.seen[0])
		}
		if b.refreshes.Load() != 0 {
			t.Error("valid token must not trigger a refresh")
		}
	})

	t.Run("Refreshes And Replays On 401", func(t *testing.T) {
		b := &backend{valid: "other"}
		f := newFixture(t, b)

		resp, err := f.get("/albums")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Errorf("expected replay to succeed, got %d", resp.StatusCode)
		}
		if len(b.seen) != 2 || b.seen[1] != "Bearer fresh" {
			t.Errorf("expected replay with fresh token, got %v", b.seen)
		}
		if f.manager.Token() != "fresh" {
			t.Errorf("store should hold the refreshed token, got %s", f.manager.Token())
		}
	})

	t.Run("Refreshes On 403", func(t *testing.T) {
		b := &backend{valid: "other", status: http.StatusForbidden}
		f := newFixture(t, b)

		resp, err := f.get("/albums")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK || b.refreshes.Load() != 1 {
			t.Errorf("expected one refresh and success, got %d after %d refreshes", resp.StatusCode, b.refreshes.Load())
		}
	})

	t.Run("Other Statuses Pass Through", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		m := auth.NewManager(auth.ManagerOpts{Client: &services.AuthClient{}, Logger: shared.NewLogger(io.Discard)})
		defer m.Close()
		tr := NewTransport(Options{Session: m, Logger: shared.NewLogger(io.Discard)})

		req, _ := http.NewRequest(http.MethodGet, server.URL+"/albums", nil)
		resp, err := tr.Client().Do(req)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		resp.Body.Close()

		if resp.StatusCode != http.StatusInternalServerError {
			t.Errorf("expected 500 passed through, got %d", resp.StatusCode)
		}
		if tr.Coordinator().Refreshes() != 0 {
			t.Error("server errors must not trigger a refresh")
		}
	})

	t.Run("Excluded Endpoints Bypass", func(t *testing.T) {
		b := &backend{valid: "stale"}
		f := newFixture(t, b)

		resp, err := f.client.Post(f.server.URL+services.LoginPath, "application/json", strings.NewReader(`{}`))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		resp.Body.Close()

		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("login 401 should reach the caller, got %d", resp.StatusCode)
		}
		if b.refreshes.Load() != 0 {
			t.Error("login rejection must not trigger a refresh")
		}
	})

	t.Run("Concurrent 401s Share One Refresh", func(t *testing.T) {
		b := &backend{valid: "other", delay: 100 * time.Millisecond}
		f := newFixture(t, b)

		const n = 10
		var wg sync.WaitGroup
		statuses := make([]int, n)
		errs := make([]error, n)
		for i := range n {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				resp, err := f.get("/albums")
				if err != nil {
					errs[i] = err
					return
				}
				statuses[i] = resp.StatusCode
				resp.Body.Close()
			}(i)
		}
		wg.Wait()

		for i := range n {
			if errs[i] != nil {
				t.Errorf("request %d failed: %v", i, errs[i])
			} else if statuses[i] != http.StatusOK {
				t.Errorf("request %d got status %d", i, statuses[i])
			}
		}

		if got := b.refreshes.Load(); got != 1 {
			t.Errorf("expected exactly one refresh call, got %d", got)
		}
		if got := f.transport.Coordinator().Refreshes(); got != 1 {
			t.Errorf("expected coordinator to lead one refresh, got %d", got)
		}

		b.mu.Lock()
		defer b.mu.Unlock()
		replays := 0
		for _, h := range b.seen {
			switch h {
			case "Bearer fresh":
				replays++
			case "Bearer stale":
			default:
				t.Errorf("unexpected header %q", h)
			}
		}
		if replays != n {
			t.Errorf("expected %d requests served with the fresh token, got %d", n, replays)
		}
	})

	t.Run("Refresh Failure Logs Out And Fails Waiters", func(t *testing.T) {
		b := &backend{valid: "other", failing: true, delay: 50 * time.Millisecond}
		f := newFixture(t, b)

		const n = 5
		var wg sync.WaitGroup
		errs := make([]error, n)
		for i := range n {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				resp, err := f.get("/albums")
				if resp != nil {
					resp.Body.Close()
				}
				errs[i] = err
			}(i)
		}
		wg.Wait()

		for i, err := range errs {
			if !errors.Is(err, shared.ErrRefreshFailed) && !errors.Is(err, shared.ErrNoRefreshToken) {
				t.Errorf("request %d: expected refresh error, got %v", i, err)
			}
		}
		if b.refreshes.Load() != 1 {
			t.Errorf("expected one refresh call, got %d", b.refreshes.Load())
		}
		if f.manager.IsAuthenticated() || f.manager.Token() != "" {
			t.Error("failed refresh must log out")
		}
		if f.logouts.Load() == 0 {
			t.Error("expected navigation to login")
		}
	})

	t.Run("Replays Request Body", func(t *testing.T) {
		b := &backend{valid: "other"}
		f := newFixture(t, b)

		req, _ := http.NewRequest(http.MethodPost, f.server.URL+"/albums", io.NopCloser(strings.NewReader(`{"title":"Lateralus"}`)))
		if req.GetBody != nil {
			t.Fatal("test needs a body without GetBody")
		}

		resp, err := f.client.Do(req)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		resp.Body.Close()

		if resp.Header.Get("X-Echo") != `{"title":"Lateralus"}` {
			t.Errorf("expected replayed body, got %q", resp.Header.Get("X-Echo"))
		}
	})

	t.Run("Catalog Client Through Pipeline", func(t *testing.T) {
		b := &backend{valid: "other"}
		f := newFixture(t, b)

		albums := services.NewAlbumService(services.NewAPIService(f.server.URL, f.client))
		if _, err := albums.Search(context.Background(), "x"); err != nil {
			t.Fatalf("expected search to succeed after refresh, got %v", err)
		}
	})
}

func TestExcluded(t *testing.T) {
	tests := []struct {
		method string
		path   string
		want   bool
	}{
		{http.MethodPost, "/api/v1/auth/login", true},
		{http.MethodPost, "/api/v1/auth/refresh", true},
		{http.MethodPost, "/api/v1/auth/register", false},
		{http.MethodPost, "/api/v1/usuarios", true},
		{http.MethodGet, "/api/v1/usuarios", false},
		{http.MethodGet, "/api/v1/albums/paginated", false},
		{http.MethodDelete, "/api/v1/albums/1", false},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, "http://localhost"+tt.path, nil)
		if got := Excluded(req); got != tt.want {
			t.Errorf("Excluded(%s %s) = %v, want %v", tt.method, tt.path, got, tt.want)
		}
	}
}

// fakeSession is a hand-driven [Session].
type fakeSession struct {
	mu      sync.Mutex
	token   string
	calls   atomic.Int32
	logouts atomic.Int32
	release chan struct{}
	err     error
}

func (s *fakeSession) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *fakeSession) RefreshTokenSilent(ctx context.Context) (*auth.Session, error) {
	s.calls.Add(1)
	if s.release != nil {
		<-s.release
	}
	if s.err != nil {
		return nil, s.err
	}
	s.mu.Lock()
	s.token = "new"
	s.mu.Unlock()
	return &auth.Session{Token: &oauth2.Token{AccessToken: "new"}}, nil
}

func (s *fakeSession) Logout() {
	s.logouts.Add(1)
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
}

func TestCoordinator(t *testing.T) {
	t.Run("Reuses Replaced Token", func(t *testing.T) {
		c := NewCoordinator()
		s := &fakeSession{token: "current"}

		token, err := c.Resolve(context.Background(), s, "old")
		if err != nil || token != "current" {
			t.Errorf("expected current token, got %q, %v", token, err)
		}
		if s.calls.Load() != 0 || c.Refreshes() != 0 {
			t.Error("a replaced token must not trigger a refresh")
		}
	})

	t.Run("Waiters Share Outcome", func(t *testing.T) {
		c := NewCoordinator()
		s := &fakeSession{token: "old", release: make(chan struct{})}

		tokens, cancel := c.Tokens()
		defer cancel()

		leader := make(chan string, 1)
		go func() {
			token, _ := c.Resolve(context.Background(), s, "old")
			leader <- token
		}()
		tu.Eventually(t, time.Second, c.Refreshing, "leader to start refresh")

		waiter := make(chan string, 1)
		go func() {
			token, _ := c.Resolve(context.Background(), s, "old")
			waiter <- token
		}()

		close(s.release)
		if got := <-leader; got != "new" {
			t.Errorf("leader got %q", got)
		}
		if got := <-waiter; got != "new" {
			t.Errorf("waiter got %q", got)
		}
		if s.calls.Load() != 1 {
			t.Errorf("expected one refresh, got %d", s.calls.Load())
		}
		if got := <-tokens; got != "new" {
			t.Errorf("expected broadcast of new token, got %q", got)
		}
	})

	t.Run("Failure Logs Out", func(t *testing.T) {
		c := NewCoordinator()
		cause := errors.New("refresh rejected")
		s := &fakeSession{token: "old", err: cause}

		_, err := c.Resolve(context.Background(), s, "old")
		if !errors.Is(err, cause) {
			t.Errorf("expected refresh error, got %v", err)
		}
		if s.logouts.Load() != 1 {
			t.Errorf("expected one logout, got %d", s.logouts.Load())
		}
		if c.Refreshing() {
			t.Error("in-flight slot should be cleared")
		}
	})

	t.Run("Waiter Context Cancelled", func(t *testing.T) {
		c := NewCoordinator()
		s := &fakeSession{token: "old", release: make(chan struct{})}
		defer close(s.release)

		go c.Resolve(context.Background(), s, "old")
		tu.Eventually(t, time.Second, c.Refreshing, "leader to start refresh")

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := c.Resolve(ctx, s, "old"); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}
