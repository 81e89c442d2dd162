package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/catx/internal/shared"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// DefaultHeartbeat is the heart-beat interval offered to and expected from the broker.
const DefaultHeartbeat = 4 * time.Second

// Subprotocols advertised during the WebSocket handshake.
var Subprotocols = []string{"v12.stomp", "v11.stomp", "v10.stomp"}

// StompOpts configures a [StompTransport].
type StompOpts struct {
	URL       string
	Heartbeat time.Duration     // defaults to [DefaultHeartbeat]
	Dialer    *websocket.Dialer // defaults to a copy of [websocket.DefaultDialer]
	Logger    *log.Logger       // defaults to [shared.NewLogger]
}

// StompTransport speaks STOMP 1.2 over a WebSocket.
type StompTransport struct {
	url       string
	heartbeat time.Duration
	dialer    *websocket.Dialer
	logger    *log.Logger
}

// NewStompTransport creates a [StompTransport] dialing opts.URL.
func NewStompTransport(opts StompOpts) *StompTransport {
	t := &StompTransport{
		url:       opts.URL,
		heartbeat: opts.Heartbeat,
		dialer:    opts.Dialer,
		logger:    opts.Logger,
	}
	if t.heartbeat <= 0 {
		t.heartbeat = DefaultHeartbeat
	}
	if t.dialer == nil {
		d := *websocket.DefaultDialer
		t.dialer = &d
	}
	t.dialer.Subprotocols = Subprotocols
	if t.logger == nil {
		t.logger = shared.NewLogger(nil)
	}
	t.logger = shared.WithLogger(t.logger, "component", "stomp")
	return t
}

// Dial opens the WebSocket, performs the CONNECT handshake and starts heart-beating.
func (t *StompTransport) Dial(ctx context.Context) (Session, error) {
	conn, _, err := t.dialer.DialContext(ctx, t.url, nil)
	if err != nil {
		return nil, dialError(t.url, err)
	}

	// Abort the handshake if ctx ends before the broker answers.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	s := &stompSession{conn: conn, logger: t.logger, done: make(chan struct{})}

	hb := strconv.FormatInt(t.heartbeat.Milliseconds(), 10)
	connect := NewFrame(CmdConnect,
		"accept-version", "1.2,1.1,1.0",
		"host", hostOf(t.url),
		"heart-beat", hb+","+hb,
	)
	if err := s.write(connect.Marshal()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to send CONNECT: %w", err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetReadDeadline(deadline)
	}
	reply, err := s.readFrame()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to read CONNECTED: %w", err)
	}
	switch reply.Command {
	case CmdConnected:
	case CmdError:
		conn.Close()
		return nil, reply.Err()
	default:
		conn.Close()
		return nil, fmt.Errorf("%w: expected CONNECTED, got %s", shared.ErrBrokerFrame, reply.Command)
	}
	conn.SetReadDeadline(time.Time{})

	send, expect := negotiate(t.heartbeat, reply)
	s.readTimeout = expect
	if send > 0 {
		go s.beat(send)
	}

	version, _ := reply.Get("version")
	t.logger.Debug("connected", "url", t.url, "version", version, "heartbeat", send)
	return s, nil
}

// negotiate applies the STOMP heart-beat rules: each side uses the larger of what it offers and
// what the other side wants. It returns how often to send and how long to wait for inbound data.
func negotiate(offer time.Duration, connected *Frame) (send, expect time.Duration) {
	raw, ok := connected.Get("heart-beat")
	if !ok {
		return 0, 0
	}
	sx, sy, ok := strings.Cut(raw, ",")
	if !ok {
		return 0, 0
	}
	serverSend, _ := strconv.Atoi(strings.TrimSpace(sx))
	serverWant, _ := strconv.Atoi(strings.TrimSpace(sy))

	if serverWant > 0 {
		send = max(offer, time.Duration(serverWant)*time.Millisecond)
	}
	if serverSend > 0 {
		expect = max(offer, time.Duration(serverSend)*time.Millisecond) * 2
	}
	return send, expect
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return "/"
	}
	return u.Hostname()
}

type stompSession struct {
	conn        *websocket.Conn
	logger      *log.Logger
	readTimeout time.Duration

	writeMu sync.Mutex
	once    sync.Once
	done    chan struct{}
}

func (s *stompSession) write(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *stompSession) beat(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if err := s.write([]byte("\n")); err != nil {
				s.logger.Debug("heart-beat failed", "error", err)
				return
			}
		}
	}
}

func (s *stompSession) readFrame() (*Frame, error) {
	for {
		if s.readTimeout > 0 {
			s.conn.SetReadDeadline(time.Now().Add(s.readTimeout))
		}
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		frame, err := Unmarshal(data)
		if err != nil {
			return nil, err
		}
		if frame != nil {
			return frame, nil
		}
	}
}

func (s *stompSession) Subscribe(destination string) error {
	sub := NewFrame(CmdSubscribe,
		"id", "sub-"+uuid.NewString(),
		"destination", destination,
		"ack", "auto",
	)
	return s.write(sub.Marshal())
}

func (s *stompSession) Receive() ([]byte, error) {
	for {
		frame, err := s.readFrame()
		if err != nil {
			select {
			case <-s.done:
				return nil, errClosed
			default:
			}
			return nil, err
		}

		switch frame.Command {
		case CmdMessage:
			return frame.Body, nil
		case CmdError:
			return nil, frame.Err()
		default:
			s.logger.Debug("ignoring frame", "command", frame.Command)
		}
	}
}

func (s *stompSession) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		s.write(NewFrame(CmdDisconnect).Marshal())
		s.writeMu.Lock()
		s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		s.writeMu.Unlock()
		err = s.conn.Close()
	})
	return err
}

// errClosed is returned by Receive after the session was closed locally.
var errClosed = errors.New("session closed")
