package auth

import "net/url"

// Route paths used by [Guard] redirects.
const (
	LoginRoute = "/login"
	HomeRoute  = "/albums"
)

// SessionChecker reports whether a session is present in storage.
type SessionChecker interface {
	IsAuthenticatedSync() bool
}

// Guard decides whether a navigation may proceed and where to send it otherwise.
type Guard struct {
	sessions SessionChecker
}

// NewGuard creates a [Guard] that consults sessions for every decision.
func NewGuard(sessions SessionChecker) *Guard {
	return &Guard{sessions: sessions}
}

// RequireAuth allows target only with a stored session. Otherwise it redirects to the login
// route, carrying target as returnUrl.
func (g *Guard) RequireAuth(target string) (bool, string) {
	if g.sessions.IsAuthenticatedSync() {
		return true, ""
	}
	q := url.Values{}
	q.Set("returnUrl", target)
	return false, LoginRoute + "?" + q.Encode()
}

// LoginOnly keeps authenticated users away from the login route.
func (g *Guard) LoginOnly() (bool, string) {
	if g.sessions.IsAuthenticatedSync() {
		return false, HomeRoute
	}
	return true, ""
}

// ReturnURL extracts a safe post-login destination from a login URL's query, defaulting to [HomeRoute].
//
// Only same-origin absolute paths are honoured.
func ReturnURL(query url.Values) string {
	target := query.Get("returnUrl")
	if target == "" || target[0] != '/' || (len(target) > 1 && (target[1] == '/' || target[1] == '\\')) {
		return HomeRoute
	}
	return target
}
