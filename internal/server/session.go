package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/desertthunder/catx/internal/auth"
	"github.com/desertthunder/catx/internal/models"
	"github.com/desertthunder/catx/internal/services"
	"github.com/desertthunder/catx/internal/shared"
	"golang.org/x/oauth2"
)

// Sessions is the part of [auth.Manager] the session routes need.
type Sessions interface {
	Login(ctx context.Context, creds models.Credentials) (*auth.Session, error)
	Logout()
	IsAuthenticated() bool
	CurrentUser() *models.User
	OAuth2Token() *oauth2.Token
}

// SessionStatus is the body of GET /session and a successful POST /login.
type SessionStatus struct {
	Authenticated bool         `json:"authenticated"`
	User          *models.User `json:"user,omitempty"`
	ExpiresAt     *time.Time   `json:"expiresAt,omitempty"`
	Redirect      string       `json:"redirect,omitempty"`
}

// SessionHandler serves login, logout and session status.
type SessionHandler struct {
	sessions Sessions
}

// NewSessionHandler creates a [SessionHandler] backed by sessions.
func NewSessionHandler(sessions Sessions) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

func (h *SessionHandler) Routes() []string {
	return []string{"POST /login", "POST /logout", "GET /session"}
}

func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/login":
		h.login(w, r)
	case "/logout":
		h.sessions.Logout()
		w.WriteHeader(http.StatusNoContent)
	default:
		writeJSON(w, http.StatusOK, h.status())
	}
}

func (h *SessionHandler) login(w http.ResponseWriter, r *http.Request) {
	var creds models.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil || creds.Username == "" || creds.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	if _, err := h.sessions.Login(r.Context(), creds); err != nil {
		status := services.StatusCode(err)
		switch {
		case status == http.StatusUnauthorized:
		case status == 0, status >= 500:
			status = http.StatusBadGateway
		}
		writeError(w, status, err.Error())
		return
	}

	st := h.status()
	st.Redirect = auth.ReturnURL(r.URL.Query())
	writeJSON(w, http.StatusOK, st)
}

func (h *SessionHandler) status() SessionStatus {
	st := SessionStatus{Authenticated: h.sessions.IsAuthenticated(), User: h.sessions.CurrentUser()}
	if tok := h.sessions.OAuth2Token(); tok != nil && !tok.Expiry.IsZero() {
		exp := tok.Expiry
		st.ExpiresAt = &exp
	}
	return st
}

// AlbumLister lists albums. [services.AlbumService] satisfies it.
type AlbumLister interface {
	List(ctx context.Context, req services.PageRequest) (*models.Page[models.Album], error)
}

// AlbumsHandler serves one page of albums as JSON. Query: page, size, sortBy, sortDirection.
func AlbumsHandler(albums AlbumLister) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		req := services.DefaultPageRequest()
		if v := q.Get("page"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				writeError(w, http.StatusBadRequest, "invalid page")
				return
			}
			req.Page = n
		}
		if v := q.Get("size"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				writeError(w, http.StatusBadRequest, "invalid size")
				return
			}
			req.Size = n
		}
		if v := q.Get("sortBy"); v != "" {
			req.SortBy = v
		}
		if q.Get("sortDirection") == string(services.SortDesc) {
			req.SortDirection = services.SortDesc
		}

		page, err := albums.List(r.Context(), req)
		if err != nil {
			status := services.StatusCode(err)
			if status == 0 || errors.Is(err, shared.ErrRefreshFailed) {
				status = http.StatusBadGateway
			}
			writeError(w, status, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, page)
	})
}

// LoginPage describes how to log in. It is only reachable without a session.
func LoginPage() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("POST /login with {\"username\", \"password\"} to start a session\n"))
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(models.Envelope{Success: true, Data: raw})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(models.Envelope{
		Success: false,
		Error:   &models.EnvelopeError{Code: http.StatusText(status), Message: message},
	})
}
