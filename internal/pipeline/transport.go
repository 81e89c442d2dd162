package pipeline

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/catx/internal/services"
	"github.com/desertthunder/catx/internal/shared"
	"golang.org/x/oauth2"
)

// maxDrain caps how much of a rejected response body is read before it is discarded.
const maxDrain = 64 << 10

// excludedPaths never carry credentials and never trigger a refresh.
var excludedPaths = []string{services.LoginPath, services.RefreshPath}

// Options configures a [Transport].
type Options struct {
	Base        http.RoundTripper // defaults to [http.DefaultTransport]
	Session     Session
	Coordinator *Coordinator // defaults to a private [NewCoordinator]
	Logger      *log.Logger  // defaults to [shared.NewLogger]
}

// Transport attaches bearer tokens and replays requests rejected for an expired token.
type Transport struct {
	base        http.RoundTripper
	session     Session
	coordinator *Coordinator
	logger      *log.Logger
}

// NewTransport creates a [Transport] that authorizes requests with opts.Session.
func NewTransport(opts Options) *Transport {
	t := &Transport{
		base:        opts.Base,
		session:     opts.Session,
		coordinator: opts.Coordinator,
		logger:      opts.Logger,
	}
	if t.base == nil {
		t.base = http.DefaultTransport
	}
	if t.coordinator == nil {
		t.coordinator = NewCoordinator()
	}
	if t.logger == nil {
		t.logger = shared.NewLogger(nil)
	}
	t.logger = shared.WithLogger(t.logger, "component", "pipeline")
	return t
}

// Client returns an [http.Client] routed through t.
func (t *Transport) Client() *http.Client {
	return &http.Client{Transport: t}
}

// Coordinator returns the coordinator t reports refreshes to.
func (t *Transport) Coordinator() *Coordinator { return t.coordinator }

// RoundTrip implements [http.RoundTripper].
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if Excluded(req) {
		return t.base.RoundTrip(req)
	}

	getBody, err := rewindable(req)
	if err != nil {
		return nil, err
	}

	sent := t.session.Token()
	first, err := authorize(req, getBody, sent)
	if err != nil {
		return nil, err
	}

	resp, err := t.base.RoundTrip(first)
	if err != nil {
		return nil, err
	}

	if !rejected(resp.StatusCode) {
		return resp, nil
	}

	discard(resp)
	t.logger.Debug("request rejected, resolving token", "status", resp.StatusCode, "method", req.Method, "path", req.URL.Path)

	token, err := t.coordinator.Resolve(req.Context(), t.session, sent)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}

	retry, err := authorize(req, getBody, token)
	if err != nil {
		return nil, err
	}
	return t.base.RoundTrip(retry)
}

// Excluded reports whether req targets an endpoint that must go out without credentials.
func Excluded(req *http.Request) bool {
	path := req.URL.Path
	for _, p := range excludedPaths {
		if strings.Contains(path, p) {
			return true
		}
	}
	return req.Method == http.MethodPost && strings.HasSuffix(strings.TrimRight(path, "/"), services.RegisterPath)
}

func rejected(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

// authorize clones req with a fresh body and, when token is set, a bearer header.
func authorize(req *http.Request, getBody func() (io.ReadCloser, error), token string) (*http.Request, error) {
	out := req.Clone(req.Context())
	if getBody != nil {
		body, err := getBody()
		if err != nil {
			return nil, fmt.Errorf("failed to rewind request body: %w", err)
		}
		out.Body = body
		out.GetBody = getBody
	}

	out.Header.Del("Authorization")
	if token != "" {
		(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}).SetAuthHeader(out)
	}
	return out, nil
}

// rewindable returns a func producing fresh copies of the request body, buffering it when the
// caller gave no GetBody. It returns nil for bodiless requests.
func rewindable(req *http.Request) (func() (io.ReadCloser, error), error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	if req.GetBody != nil {
		return req.GetBody, nil
	}

	data, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to buffer request body: %w", err)
	}

	return func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}, nil
}

func discard(resp *http.Response) {
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrain))
	resp.Body.Close()
}
