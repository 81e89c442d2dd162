package realtime

import (
	"context"
	"fmt"

	"github.com/desertthunder/catx/internal/shared"
)

// Transport opens sessions with the notification broker.
type Transport interface {
	Dial(ctx context.Context) (Session, error)
}

// Session is one live broker connection.
type Session interface {
	// Subscribe starts delivery of messages published to destination.
	Subscribe(destination string) error
	// Receive blocks until the next message body arrives or the session fails.
	Receive() ([]byte, error)
	// Close ends the session. It is safe to call more than once.
	Close() error
}

// NopTransport never connects. Hosts without an interactive session use it so that the
// channel stays permanently disconnected.
type NopTransport struct{}

func (NopTransport) Dial(context.Context) (Session, error) {
	return nil, shared.ErrNonInteractive
}

// NewTransport picks the live STOMP transport for interactive hosts and [NopTransport] otherwise.
func NewTransport(interactive bool, opts StompOpts) Transport {
	if !interactive {
		return NopTransport{}
	}
	return NewStompTransport(opts)
}

// dialError wraps a failed dial with the target URL.
func dialError(url string, err error) error {
	return fmt.Errorf("%w: dial %s: %w", shared.ErrServiceUnavailable, url, err)
}
