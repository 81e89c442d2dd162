package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/catx/internal/broadcast"
	"github.com/desertthunder/catx/internal/models"
	"github.com/desertthunder/catx/internal/shared"
	"github.com/desertthunder/catx/internal/store"
	"golang.org/x/oauth2"
)

const (
	// RefreshLeeway is how long before expiry the proactive refresh fires.
	RefreshLeeway = 5 * time.Minute
	// TimerRefreshTimeout bounds a timer-driven refresh call.
	TimerRefreshTimeout = 30 * time.Second
	// expirationLayout matches JavaScript's Date.toISOString.
	expirationLayout = "2006-01-02T15:04:05.000Z07:00"
)

// Authenticator performs the auth endpoint calls. [services.AuthClient] implements it.
type Authenticator interface {
	Login(ctx context.Context, creds models.Credentials) (*models.AuthResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*models.AuthResponse, error)
	Register(ctx context.Context, reg models.Registration) (*models.AuthResponse, error)
}

// Navigator moves the host to a route, e.g. back to the login view after logout.
type Navigator func(route string)

// Session is the credential set produced by a successful login, registration or refresh.
type Session struct {
	Token *oauth2.Token
	User  *models.User
}

// ManagerOpts configures a [Manager].
type ManagerOpts struct {
	Client    Authenticator
	Store     store.TokenStore // defaults to [store.NewMemory]
	Logger    *log.Logger      // defaults to [shared.NewLogger]
	Navigator Navigator        // defaults to a no-op
	Now       func() time.Time // defaults to [time.Now]
	Leeway    time.Duration    // defaults to [RefreshLeeway]
}

// Manager owns the session: it stores tokens, tracks the authenticated flag, decodes the
// current user and keeps a one-shot timer that refreshes the token shortly before expiry.
type Manager struct {
	client   Authenticator
	store    store.TokenStore
	logger   *log.Logger
	navigate Navigator
	now      func() time.Time
	leeway   time.Duration

	mu            sync.Mutex
	authenticated bool
	user          *models.User
	timer         *time.Timer
	timerGen      uint64

	users *broadcast.Slot[*models.User]
}

// NewManager creates a [Manager] and hydrates it from whatever session the store already holds.
func NewManager(opts ManagerOpts) *Manager {
	m := &Manager{
		client:   opts.Client,
		store:    opts.Store,
		logger:   opts.Logger,
		navigate: opts.Navigator,
		now:      opts.Now,
		leeway:   opts.Leeway,
		users:    broadcast.New[*models.User](),
	}

	if m.store == nil {
		m.store = store.NewMemory()
	}
	if m.logger == nil {
		m.logger = shared.NewLogger(nil)
	}
	m.logger = shared.WithLogger(m.logger, "component", "auth")
	if m.navigate == nil {
		m.navigate = func(string) {}
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.leeway <= 0 {
		m.leeway = RefreshLeeway
	}

	m.hydrate()
	return m
}

func (m *Manager) hydrate() {
	token, ok := m.store.Get(store.AccessToken)
	if !ok {
		return
	}

	user := m.decode(token)

	m.mu.Lock()
	m.authenticated = true
	m.user = user
	if expiresAt, ok := m.expiration(); ok {
		m.scheduleLocked(expiresAt)
	}
	m.mu.Unlock()

	m.users.Publish(user)
	m.logger.Debug("restored session", "user", usernameOf(user))
}

// Login exchanges creds for a session. On failure the client error is returned unchanged and no state is touched.
func (m *Manager) Login(ctx context.Context, creds models.Credentials) (*Session, error) {
	resp, err := m.client.Login(ctx, creds)
	if err != nil {
		return nil, err
	}
	if err := checkResponse(resp); err != nil {
		return nil, err
	}
	m.logger.Info("logged in", "username", creds.Username)
	return m.HandleAuthResponse(resp), nil
}

// Register creates an account and starts a session for it, like [Manager.Login].
func (m *Manager) Register(ctx context.Context, reg models.Registration) (*Session, error) {
	resp, err := m.client.Register(ctx, reg)
	if err != nil {
		return nil, err
	}
	if err := checkResponse(resp); err != nil {
		return nil, err
	}
	m.logger.Info("registered", "username", reg.Username)
	return m.HandleAuthResponse(resp), nil
}

// Logout clears the stored session, cancels the refresh timer and navigates to the login route.
// Calling it without a session is harmless.
func (m *Manager) Logout() {
	m.store.Clear()

	m.mu.Lock()
	wasAuthenticated := m.authenticated
	m.authenticated = false
	m.user = nil
	m.cancelTimerLocked()
	m.mu.Unlock()

	m.users.Publish(nil)
	if wasAuthenticated {
		m.logger.Info("logged out")
	}
	m.navigate(LoginRoute)
}

// RefreshToken renews the session. Any failure, including a missing refresh token, logs out.
func (m *Manager) RefreshToken(ctx context.Context) (*Session, error) {
	session, err := m.refresh(ctx)
	if err != nil {
		m.logger.Warn("token refresh failed, logging out", "error", err)
		m.Logout()
		return nil, err
	}
	return session, nil
}

// RefreshTokenSilent renews the session and leaves the decision about failure to the caller.
func (m *Manager) RefreshTokenSilent(ctx context.Context) (*Session, error) {
	return m.refresh(ctx)
}

func (m *Manager) refresh(ctx context.Context) (*Session, error) {
	refreshToken, ok := m.store.Get(store.RefreshToken)
	if !ok {
		return nil, shared.ErrNoRefreshToken
	}

	resp, err := m.client.Refresh(ctx, refreshToken)
	if err == nil {
		err = checkResponse(resp)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrRefreshFailed, err)
	}

	m.logger.Debug("token refreshed")
	return m.HandleAuthResponse(resp), nil
}

// checkResponse rejects a successful reply that carries no access token.
func checkResponse(resp *models.AuthResponse) error {
	if resp == nil || resp.AccessToken == "" {
		return fmt.Errorf("%w: response carried no access token", shared.ErrAuthFailed)
	}
	return nil
}

// HandleAuthResponse stores the tokens of resp, marks the session authenticated, decodes the
// user and re-arms the refresh timer. A response without an access token leaves the session
// untouched and yields nil.
func (m *Manager) HandleAuthResponse(resp *models.AuthResponse) *Session {
	if checkResponse(resp) != nil {
		m.logger.Warn("ignoring auth response without access token")
		return nil
	}

	expiresAt := m.now().Add(time.Duration(resp.ExpiresIn.Seconds()) * time.Second)

	m.store.Set(store.AccessToken, resp.AccessToken)
	if resp.RefreshToken != "" {
		m.store.Set(store.RefreshToken, resp.RefreshToken)
	}
	m.store.Set(store.TokenExpiration, expiresAt.UTC().Format(expirationLayout))

	user := m.decode(resp.AccessToken)

	m.mu.Lock()
	m.authenticated = true
	m.user = user
	m.scheduleLocked(expiresAt)
	m.mu.Unlock()

	m.users.Publish(user)

	refreshToken, _ := m.store.Get(store.RefreshToken)
	return &Session{
		Token: &oauth2.Token{
			AccessToken:  resp.AccessToken,
			RefreshToken: refreshToken,
			TokenType:    tokenType(resp.TokenType),
			Expiry:       expiresAt,
		},
		User: user,
	}
}

// IsAuthenticated reports the in-memory authenticated flag.
func (m *Manager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.authenticated
}

// IsAuthenticatedSync reports whether the store currently holds an access token.
func (m *Manager) IsAuthenticatedSync() bool {
	_, ok := m.store.Get(store.AccessToken)
	return ok
}

// HasValidToken reports whether an access token is stored and its expiration lies in the future.
func (m *Manager) HasValidToken() bool {
	if _, ok := m.store.Get(store.AccessToken); !ok {
		return false
	}
	expiresAt, ok := m.expiration()
	return ok && expiresAt.After(m.now())
}

// Token returns the stored access token, or "" when there is none.
func (m *Manager) Token() string {
	token, _ := m.store.Get(store.AccessToken)
	return token
}

// RefreshTokenValue returns the stored refresh token, or "" when there is none.
func (m *Manager) RefreshTokenValue() string {
	token, _ := m.store.Get(store.RefreshToken)
	return token
}

// OAuth2Token returns the stored session as an [oauth2.Token], or nil when there is none.
func (m *Manager) OAuth2Token() *oauth2.Token {
	access, ok := m.store.Get(store.AccessToken)
	if !ok {
		return nil
	}
	token := &oauth2.Token{AccessToken: access, RefreshToken: m.RefreshTokenValue(), TokenType: "Bearer"}
	if expiresAt, ok := m.expiration(); ok {
		token.Expiry = expiresAt
	}
	return token
}

// CurrentUser returns the user decoded from the current access token, if any.
func (m *Manager) CurrentUser() *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.user
}

// Users subscribes to current-user changes. The current value is replayed; nil means logged out.
func (m *Manager) Users() (<-chan *models.User, func()) {
	return m.users.Subscribe(true)
}

// Close stops the refresh timer and ends all user subscriptions.
func (m *Manager) Close() {
	m.mu.Lock()
	m.cancelTimerLocked()
	m.mu.Unlock()
	m.users.Close()
}

// scheduleLocked arms a one-shot refresh at expiresAt minus the leeway. Must hold m.mu.
func (m *Manager) scheduleLocked(expiresAt time.Time) {
	m.cancelTimerLocked()

	wait := expiresAt.Sub(m.now()) - m.leeway
	if wait <= 0 {
		return
	}

	gen := m.timerGen
	m.timer = time.AfterFunc(wait, func() {
		m.mu.Lock()
		stale := gen != m.timerGen
		m.mu.Unlock()
		if stale {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), TimerRefreshTimeout)
		defer cancel()
		if _, err := m.RefreshToken(ctx); err != nil {
			m.logger.Warn("scheduled refresh failed", "error", err)
		}
	})
	m.logger.Debug("refresh scheduled", "in", wait.Round(time.Second))
}

// cancelTimerLocked stops any pending refresh and invalidates one that already fired. Must hold m.mu.
func (m *Manager) cancelTimerLocked() {
	m.timerGen++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// RefreshScheduled reports whether a proactive refresh is pending.
func (m *Manager) RefreshScheduled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.timer != nil
}

func (m *Manager) expiration() (time.Time, bool) {
	raw, ok := m.store.Get(store.TokenExpiration)
	if !ok {
		return time.Time{}, false
	}
	expiresAt, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		m.logger.Debug("ignoring unparseable token expiration", "value", raw, "error", err)
		return time.Time{}, false
	}
	return expiresAt, true
}

func (m *Manager) decode(token string) *models.User {
	user, ok := DecodeUser(token)
	if !ok {
		m.logger.Debug("access token payload could not be decoded")
		return nil
	}
	return user
}

func tokenType(t string) string {
	if t == "" {
		return "Bearer"
	}
	return t
}

func usernameOf(u *models.User) string {
	if u == nil {
		return ""
	}
	return u.Username
}
