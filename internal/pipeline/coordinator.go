package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/desertthunder/catx/internal/auth"
	"github.com/desertthunder/catx/internal/broadcast"
)

// RefreshTimeout bounds one refresh call. It is detached from the triggering request so that
// cancelling one request cannot fail every request waiting on the same refresh.
const RefreshTimeout = 30 * time.Second

// Session is the slice of [auth.Manager] the pipeline depends on.
type Session interface {
	Token() string
	RefreshTokenSilent(ctx context.Context) (*auth.Session, error)
	Logout()
}

type pendingRefresh struct {
	done  chan struct{}
	token string
	err   error
}

// Coordinator serializes token refreshes across every request sharing it.
type Coordinator struct {
	mu       sync.Mutex
	inflight *pendingRefresh
	latest   *broadcast.Slot[string]
	count    atomic.Int64
}

// NewCoordinator creates a [Coordinator] with no refresh in flight.
func NewCoordinator() *Coordinator {
	return &Coordinator{latest: broadcast.New[string]()}
}

// Resolve returns the token a request rejected with sent should be replayed with.
//
// It joins a refresh in flight, reuses a token that replaced sent in the meantime, or becomes
// the leader of a new refresh. A failed refresh logs the session out.
func (c *Coordinator) Resolve(ctx context.Context, s Session, sent string) (string, error) {
	c.mu.Lock()
	if p := c.inflight; p != nil {
		c.mu.Unlock()
		return wait(ctx, p)
	}
	if current := s.Token(); current != "" && current != sent {
		c.mu.Unlock()
		return current, nil
	}
	p := &pendingRefresh{done: make(chan struct{})}
	c.inflight = p
	c.mu.Unlock()

	c.count.Add(1)
	c.lead(ctx, s, p)
	return p.token, p.err
}

func (c *Coordinator) lead(ctx context.Context, s Session, p *pendingRefresh) {
	refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), RefreshTimeout)
	defer cancel()

	session, err := s.RefreshTokenSilent(refreshCtx)
	if err != nil {
		p.err = err
		c.latest.Publish("")
		s.Logout()
	} else {
		p.token = session.Token.AccessToken
		c.latest.Publish(p.token)
	}

	c.mu.Lock()
	c.inflight = nil
	c.mu.Unlock()
	close(p.done)
}

func wait(ctx context.Context, p *pendingRefresh) (string, error) {
	select {
	case <-p.done:
		return p.token, p.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Refreshing reports whether a refresh is in flight.
func (c *Coordinator) Refreshing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inflight != nil
}

// Refreshes returns how many refresh calls this coordinator has started.
func (c *Coordinator) Refreshes() int64 {
	return c.count.Load()
}

// Tokens subscribes to refresh outcomes: the new access token, or "" after a failure.
func (c *Coordinator) Tokens() (<-chan string, func()) {
	return c.latest.Subscribe(false)
}
