package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/catx/internal/broadcast"
	"github.com/desertthunder/catx/internal/models"
	"github.com/desertthunder/catx/internal/shared"
	"golang.org/x/time/rate"
)

const (
	DefaultTopic          = "/topic/albums"
	DefaultReconnectDelay = 5 * time.Second
)

// State is the connection state of a [Channel].
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// ChannelOpts configures a [Channel].
type ChannelOpts struct {
	Transport      Transport
	Topic          string        // defaults to [DefaultTopic]
	ReconnectDelay time.Duration // defaults to [DefaultReconnectDelay]
	Logger         *log.Logger   // defaults to [shared.NewLogger]
}

// Channel keeps a subscription to the album topic alive and broadcasts each notification.
//
// Only the latest notification is retained; a subscriber that falls behind skips straight to it.
type Channel struct {
	transport Transport
	topic     string
	delay     time.Duration
	logger    *log.Logger
	limiter   *rate.Limiter

	notifications *broadcast.Slot[models.AlbumNotification]
	states        *broadcast.Slot[State]

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	done   chan struct{}
	// stopping is the done channel of a loop that Disconnect is still waiting on.
	stopping chan struct{}
	session  Session
}

// NewChannel creates a disconnected [Channel]; call [Channel.Connect] to start it.
func NewChannel(opts ChannelOpts) *Channel {
	c := &Channel{
		transport:     opts.Transport,
		topic:         opts.Topic,
		delay:         opts.ReconnectDelay,
		logger:        opts.Logger,
		notifications: broadcast.New[models.AlbumNotification](),
		states:        broadcast.New[State](),
	}
	if c.transport == nil {
		c.transport = NopTransport{}
	}
	if c.topic == "" {
		c.topic = DefaultTopic
	}
	if c.delay <= 0 {
		c.delay = DefaultReconnectDelay
	}
	if c.logger == nil {
		c.logger = shared.NewLogger(nil)
	}
	c.logger = shared.WithLogger(c.logger, "component", "realtime")
	c.limiter = rate.NewLimiter(rate.Every(c.delay), 1)
	c.states.Publish(Disconnected)
	return c
}

// Connect starts the connection loop in the background. It returns immediately; calling it
// while the loop is already running does nothing. A Connect racing a [Channel.Disconnect]
// waits for the old loop to exit first.
func (c *Channel) Connect(ctx context.Context) {
	for {
		c.mu.Lock()
		if c.cancel != nil {
			c.mu.Unlock()
			return
		}
		if stopping := c.stopping; stopping != nil {
			c.mu.Unlock()
			<-stopping
			continue
		}

		ctx, cancel := context.WithCancel(ctx)
		c.cancel = cancel
		c.done = make(chan struct{})
		go c.run(ctx, c.done)
		c.mu.Unlock()
		return
	}
}

// Disconnect stops the loop and closes the live session, if any. Safe when not connected.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	if cancel == nil {
		stopping := c.stopping
		c.mu.Unlock()
		if stopping != nil {
			<-stopping
		}
		c.setState(Disconnected)
		return
	}
	c.cancel, c.done = nil, nil
	c.stopping = done
	cancel()
	session := c.session
	c.mu.Unlock()

	if session != nil {
		session.Close()
	}
	<-done
	c.setState(Disconnected)

	c.mu.Lock()
	if c.stopping == done {
		c.stopping = nil
	}
	c.mu.Unlock()
}

// State returns the current connection state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// States subscribes to state transitions, starting with the current state.
func (c *Channel) States() (<-chan State, func()) {
	return c.states.Subscribe(true)
}

// Notifications subscribes to album notifications received from now on.
func (c *Channel) Notifications() (<-chan models.AlbumNotification, func()) {
	return c.notifications.Subscribe(false)
}

// Latest returns the most recent notification, if one has arrived.
func (c *Channel) Latest() (models.AlbumNotification, bool) {
	return c.notifications.Value()
}

// Close disconnects and ends every subscription.
func (c *Channel) Close() {
	c.Disconnect()
	c.notifications.Close()
	c.states.Close()
}

func (c *Channel) run(ctx context.Context, done chan struct{}) {
	defer func() {
		// A loop that ends on its own, e.g. through its parent context, releases its slot
		// so a later Connect can start afresh.
		c.mu.Lock()
		if c.done == done {
			c.cancel()
			c.cancel, c.done = nil, nil
		}
		c.mu.Unlock()
		c.setState(Disconnected)
		close(done)
	}()

	for {
		// Attempts are spaced at least one delay apart, so failed dials retry at that cadence.
		if err := c.limiter.Wait(ctx); err != nil {
			return
		}

		c.setState(Connecting)
		session, err := c.transport.Dial(ctx)
		if err != nil {
			c.setState(Disconnected)
			if errors.Is(err, shared.ErrNonInteractive) {
				c.logger.Debug("realtime disabled", "reason", err)
				return
			}
			if ctx.Err() != nil {
				return
			}
			c.logger.Warn("connection failed, retrying", "error", err, "in", c.delay)
			continue
		}

		if err := session.Subscribe(c.topic); err != nil {
			session.Close()
			c.setState(Disconnected)
			c.logger.Warn("subscribe failed, retrying", "topic", c.topic, "error", err, "in", c.delay)
			continue
		}

		if !c.attach(ctx, session) {
			session.Close()
			return
		}
		c.setState(Connected)
		c.logger.Info("subscribed", "topic", c.topic)

		stop := context.AfterFunc(ctx, func() { session.Close() })
		err = c.consume(session)
		stop()

		c.detach()
		session.Close()
		c.setState(Disconnected)

		if ctx.Err() != nil {
			return
		}
		c.logger.Warn("connection lost, retrying", "error", err, "in", c.delay)
		if !sleep(ctx, c.delay) {
			return
		}
	}
}

// sleep waits for d, returning false if ctx ends first.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// attach records the live session unless the loop was cancelled in the meantime.
func (c *Channel) attach(ctx context.Context, session Session) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ctx.Err() != nil {
		return false
	}
	c.session = session
	return true
}

func (c *Channel) detach() {
	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()
}

func (c *Channel) consume(session Session) error {
	for {
		body, err := session.Receive()
		if err != nil {
			return err
		}

		var n models.AlbumNotification
		if err := json.Unmarshal(body, &n); err != nil {
			c.logger.Warn("dropping malformed notification", "error", err)
			continue
		}

		c.logger.Debug("album notification", "action", n.Action, "id", n.ID, "title", n.Title)
		c.notifications.Publish(n)
	}
}

func (c *Channel) setState(s State) {
	c.mu.Lock()
	changed := c.state != s
	c.state = s
	c.mu.Unlock()

	if changed {
		c.states.Publish(s)
	}
}
