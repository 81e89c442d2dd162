package ui

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/catx/internal/auth"
	"github.com/desertthunder/catx/internal/broadcast"
	"github.com/desertthunder/catx/internal/catalog"
	"github.com/desertthunder/catx/internal/models"
	"github.com/desertthunder/catx/internal/notify"
	"github.com/desertthunder/catx/internal/services"
	"github.com/desertthunder/catx/internal/shared"
)

type fakeSession struct {
	mu            sync.Mutex
	authenticated bool
	loginErr      error
	creds         models.Credentials
	users         *broadcast.Slot[*models.User]
}

func newFakeSession(authenticated bool) *fakeSession {
	s := &fakeSession{authenticated: authenticated, users: broadcast.New[*models.User]()}
	if authenticated {
		s.users.Publish(&models.User{Username: "testuser"})
	} else {
		s.users.Publish(nil)
	}
	return s
}

func (s *fakeSession) Login(_ context.Context, creds models.Credentials) (*auth.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = creds
	if s.loginErr != nil {
		return nil, s.loginErr
	}
	s.authenticated = true
	return &auth.Session{}, nil
}

func (s *fakeSession) Logout() {
	s.mu.Lock()
	s.authenticated = false
	s.mu.Unlock()
	s.users.Publish(nil)
}

func (s *fakeSession) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticated
}

func (s *fakeSession) Users() (<-chan *models.User, func()) {
	return s.users.Subscribe(true)
}

type fakeSource struct {
	mu      sync.Mutex
	albums  []models.Album
	deleted []int64
}

func (f *fakeSource) List(_ context.Context, req services.PageRequest) (*models.Page[models.Album], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &models.Page[models.Album]{Content: f.albums, TotalElements: int64(len(f.albums)), TotalPages: 1, Size: req.Size}, nil
}

func (f *fakeSource) All(context.Context) ([]models.Album, error) {
	return f.albums, nil
}

func (f *fakeSource) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

type fixture struct {
	model   *Model
	session *fakeSession
	source  *fakeSource
	list    *catalog.AlbumList
	toasts  *notify.Service
}

func newFixture(t *testing.T, authenticated bool) *fixture {
	logger := shared.NewLogger(io.Discard)
	session := newFakeSession(authenticated)
	source := &fakeSource{albums: []models.Album{
		{ID: 1, Title: "Dummy", Artists: []models.ArtistSummary{{Name: "Portishead"}}},
		{ID: 2, Title: "Third", Artists: []models.ArtistSummary{{Name: "Portishead"}}},
	}}
	toasts := notify.NewService(logger)
	list := catalog.NewAlbumList(catalog.AlbumListOpts{Source: source, Reporter: toasts, Logger: logger})

	m := NewModel(context.Background(), Deps{Session: session, Albums: list, Toasts: toasts})
	t.Cleanup(func() {
		m.Close()
		toasts.Close()
		list.Close()
	})
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return &fixture{model: m, session: session, source: source, list: list, toasts: toasts}
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// exec runs cmd synchronously and feeds its message back, skipping batches and stream listeners.
func exec(m *Model, cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	if msg := cmd(); msg != nil {
		if _, ok := msg.(tea.BatchMsg); ok {
			return
		}
		m.Update(msg)
	}
}

// loadAlbums applies the current list snapshot as if it arrived from the stream.
func (f *fixture) loadAlbums() {
	f.list.Reload(context.Background())
	f.model.Update(albumsChangedMsg(f.list.State()))
}

func TestLoginView(t *testing.T) {
	t.Run("Starts On Login Without Session", func(t *testing.T) {
		f := newFixture(t, false)
		if f.model.view != LoginView {
			t.Fatalf("expected login view, got %d", f.model.view)
		}
		if !strings.Contains(f.model.View(), "Log in") {
			t.Error("expected login form")
		}
	})

	t.Run("Submits Credentials", func(t *testing.T) {
		f := newFixture(t, false)
		f.model.username.SetValue("testuser")
		f.model.password.SetValue("password123")

		f.model.Update(keyMsg("enter"))
		if !f.model.password.Focused() {
			t.Fatal("enter on username should move to password")
		}

		_, cmd := f.model.Update(keyMsg("enter"))
		if cmd == nil {
			t.Fatal("expected login command")
		}
		msg := cmd()
		if f.session.creds.Username != "testuser" || f.session.creds.Password != "password123" {
			t.Errorf("unexpected credentials %+v", f.session.creds)
		}

		_, cmd = f.model.Update(msg)
		if f.model.view != AlbumListView {
			t.Fatalf("expected album view after login, got %d", f.model.view)
		}
		exec(f.model, cmd)
		if f.list.Reloads() != 1 {
			t.Errorf("expected albums to load once, got %d", f.list.Reloads())
		}
	})

	t.Run("Failure Shows Toast", func(t *testing.T) {
		f := newFixture(t, false)
		f.session.loginErr = &services.APIError{StatusCode: 401}
		f.model.username.SetValue("testuser")
		f.model.password.SetValue("wrong")
		f.model.password.Focus()
		f.model.username.Blur()

		_, cmd := f.model.Update(keyMsg("enter"))
		f.model.Update(cmd())

		if f.model.view != LoginView {
			t.Error("expected to stay on login view")
		}
		if toast := f.toasts.Current(); toast == nil || toast.Message != "Invalid username or password" {
			t.Errorf("unexpected toast %+v", toast)
		}
		if f.model.password.Value() != "" {
			t.Error("password should be cleared after a failure")
		}
	})

	t.Run("Missing Fields", func(t *testing.T) {
		f := newFixture(t, false)
		f.model.password.Focus()
		f.model.username.Blur()

		if _, cmd := f.model.Update(keyMsg("enter")); cmd != nil {
			t.Error("expected no login attempt")
		}
		if toast := f.toasts.Current(); toast == nil || toast.Level != notify.LevelWarning {
			t.Errorf("expected warning toast, got %+v", toast)
		}
	})
}

func TestAlbumListView(t *testing.T) {
	t.Run("Renders Albums", func(t *testing.T) {
		f := newFixture(t, true)
		f.loadAlbums()

		view := f.model.View()
		for _, want := range []string{"Dummy", "Third", "page 1/1", "2 albums"} {
			if !strings.Contains(view, want) {
				t.Errorf("view missing %q", want)
			}
		}
	})

	t.Run("Toggle Sort", func(t *testing.T) {
		f := newFixture(t, true)
		f.loadAlbums()

		_, cmd := f.model.Update(keyMsg("s"))
		exec(f.model, cmd)
		if f.list.State().SortDirection != services.SortAsc {
			t.Error("expected ascending sort")
		}
	})

	t.Run("Search", func(t *testing.T) {
		f := newFixture(t, true)
		f.loadAlbums()

		f.model.Update(keyMsg("/"))
		if !f.model.searching {
			t.Fatal("expected search mode")
		}
		f.model.search.SetValue("third")
		_, cmd := f.model.Update(keyMsg("enter"))
		exec(f.model, cmd)

		if st := f.list.State(); st.SearchTerm != "third" || len(st.Albums) != 1 {
			t.Errorf("unexpected state %+v", st)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		f := newFixture(t, true)
		f.loadAlbums()

		f.model.Update(keyMsg("d"))
		if f.model.view != ConfirmDeleteView || f.model.pending == nil {
			t.Fatal("expected delete confirmation")
		}
		if !strings.Contains(f.model.View(), "Delete 'Dummy'?") {
			t.Errorf("unexpected confirm view %s", f.model.View())
		}

		_, cmd := f.model.Update(keyMsg("y"))
		exec(f.model, cmd)
		if len(f.source.deleted) != 1 || f.source.deleted[0] != 1 {
			t.Errorf("expected album 1 deleted, got %v", f.source.deleted)
		}
		if toast := f.toasts.Current(); toast == nil || toast.Level != notify.LevelSuccess {
			t.Errorf("expected success toast, got %+v", toast)
		}
	})

	t.Run("Cancel Delete", func(t *testing.T) {
		f := newFixture(t, true)
		f.loadAlbums()

		f.model.Update(keyMsg("d"))
		f.model.Update(keyMsg("n"))
		if f.model.view != AlbumListView || len(f.source.deleted) != 0 {
			t.Error("expected delete to be cancelled")
		}
	})

	t.Run("Logout", func(t *testing.T) {
		f := newFixture(t, true)
		f.model.Update(keyMsg("o"))
		if f.model.view != LoginView || f.session.IsAuthenticated() {
			t.Error("expected logout to return to login view")
		}
	})

	t.Run("Forced Logout", func(t *testing.T) {
		f := newFixture(t, true)
		f.session.mu.Lock()
		f.session.authenticated = false
		f.session.mu.Unlock()

		f.model.Update(userChangedMsg(nil))
		if f.model.view != LoginView {
			t.Error("expected nil user to return to login view")
		}
	})
}

func TestStreams(t *testing.T) {
	t.Run("Toast", func(t *testing.T) {
		f := newFixture(t, true)
		f.model.Update(toastMsg(&notify.Toast{Message: "Saved", Level: notify.LevelSuccess}))
		if !strings.Contains(f.model.View(), "Saved") {
			t.Error("expected toast in view")
		}
		f.model.Update(toastMsg(nil))
		if strings.Contains(f.model.View(), "Saved") {
			t.Error("expected toast to be cleared")
		}
	})

	t.Run("Notification Shows Info Toast", func(t *testing.T) {
		f := newFixture(t, true)
		f.model.Update(notificationMsg(models.AlbumNotification{Action: models.ActionCreate, ID: 5, Title: "Mezzanine"}))
		if toast := f.toasts.Current(); toast == nil || toast.Message != `Album "Mezzanine" added` {
			t.Errorf("unexpected toast %+v", toast)
		}
	})

	t.Run("Listen Stops On Close", func(t *testing.T) {
		ch := make(chan int)
		close(ch)
		if msg := listen(ch, func(int) Msg { return Msg{} })(); msg != nil {
			t.Errorf("expected nil message, got %v", msg)
		}
		if listen[int](nil, nil) != nil {
			t.Error("expected nil command for nil channel")
		}
	})

	t.Run("Describe", func(t *testing.T) {
		if got := describe(models.AlbumNotification{Action: models.ActionDelete, ID: 3}); got != "Album #3 removed" {
			t.Errorf("unexpected description %q", got)
		}
	})

	t.Run("Login Error Type", func(t *testing.T) {
		f := newFixture(t, false)
		f.model.Update(loginDoneMsg(errors.New("boom")))
		if toast := f.toasts.Current(); toast == nil || toast.Message != "boom" {
			t.Errorf("unexpected toast %+v", toast)
		}
	})
}
