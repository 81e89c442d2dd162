// Package notify holds the single toast shown to the user.
//
// Only the last [Toast] is kept. Each toast clears itself once its duration elapses unless a
// newer toast replaced it first. Views subscribe through [Service.Toasts].
package notify

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/catx/internal/broadcast"
	"github.com/desertthunder/catx/internal/services"
	"github.com/desertthunder/catx/internal/shared"
)

type Level string

const (
	LevelError   Level = "error"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelInfo    Level = "info"
)

// Default display durations per level.
const (
	ErrorDuration   = 5 * time.Second
	SuccessDuration = 3 * time.Second
	WarningDuration = 4 * time.Second
	InfoDuration    = 3 * time.Second
)

// Toast is a short user-facing message. A nil *Toast means nothing is shown.
type Toast struct {
	Message  string
	Level    Level
	Duration time.Duration
}

// Service publishes toasts. The zero value is not usable; call [NewService].
type Service struct {
	mu     sync.Mutex
	gen    uint64
	timer  *time.Timer
	slot   *broadcast.Slot[*Toast]
	logger *log.Logger
}

// NewService creates a notification [Service] that logs through logger.
func NewService(logger *log.Logger) *Service {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	s := &Service{slot: broadcast.New[*Toast](), logger: shared.WithLogger(logger, "component", "notify")}
	s.slot.Publish(nil)
	return s
}

func (s *Service) Error(message string)   { s.Show(message, LevelError, ErrorDuration) }
func (s *Service) Success(message string) { s.Show(message, LevelSuccess, SuccessDuration) }
func (s *Service) Warning(message string) { s.Show(message, LevelWarning, WarningDuration) }
func (s *Service) Info(message string)    { s.Show(message, LevelInfo, InfoDuration) }

// Show replaces the current toast. A non-positive duration keeps it until [Service.Clear].
func (s *Service) Show(message string, level Level, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
	s.gen++
	gen := s.gen
	if d > 0 {
		s.timer = time.AfterFunc(d, func() { s.expire(gen) })
	}
	s.logger.Debug("toast", "level", level, "message", message)
	s.slot.Publish(&Toast{Message: message, Level: level, Duration: d})
}

// Clear removes the current toast.
func (s *Service) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
	s.gen++
	s.slot.Publish(nil)
}

func (s *Service) expire(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		return
	}
	s.timer = nil
	s.slot.Publish(nil)
}

func (s *Service) stopLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// Current returns the toast being shown, or nil.
func (s *Service) Current() *Toast {
	t, _ := s.slot.Value()
	return t
}

// Toasts streams toast changes, starting with the current one. A nil value means cleared.
func (s *Service) Toasts() (<-chan *Toast, func()) {
	return s.slot.Subscribe(true)
}

// Close stops the pending timer and closes every subscription.
func (s *Service) Close() {
	s.mu.Lock()
	s.stopLocked()
	s.gen++
	s.mu.Unlock()
	s.slot.Close()
}

// Report shows err as an error toast using [FromError].
func (s *Service) Report(err error) {
	if err == nil {
		return
	}
	s.Error(FromError(err))
}

// FromError maps a failure to the message shown to the user.
func FromError(err error) string {
	var apiErr *services.APIError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, shared.ErrTimeout):
		return "The server took too long to respond"
	case errors.Is(err, shared.ErrNonInteractive):
		return "Live updates are unavailable here"
	case errors.Is(err, shared.ErrRefreshFailed), errors.Is(err, shared.ErrNoRefreshToken):
		return "Your session has expired, please log in again"
	case errors.As(err, &apiErr):
		return fromStatus(apiErr)
	case errors.Is(err, shared.ErrServiceUnavailable):
		return "Could not connect to the server"
	default:
		return err.Error()
	}
}

func fromStatus(err *services.APIError) string {
	switch {
	case err.StatusCode == 0:
		return "Could not connect to the server"
	case err.StatusCode == http.StatusUnauthorized:
		return "Invalid username or password"
	case err.StatusCode == http.StatusForbidden:
		return "You do not have permission to do that"
	case err.StatusCode == http.StatusNotFound:
		return "The requested item was not found"
	case err.StatusCode >= 500:
		return "Server error, please try again later"
	case err.Message != "":
		return err.Message
	default:
		return http.StatusText(err.StatusCode)
	}
}
