// Package broadcast provides [Slot], a single-value broadcast where only the latest value matters.
//
// Each subscriber owns a channel with a buffer of one. Publishing replaces whatever the subscriber
// has not yet consumed, so a slow reader only ever sees the most recent value and a publisher
// never blocks.
package broadcast

import "sync"

// Slot holds the last published value and fans it out to subscribers.
type Slot[T any] struct {
	mu     sync.Mutex
	value  T
	set    bool
	subs   map[int]chan T
	nextID int
	closed bool
}

// New creates an empty [Slot].
func New[T any]() *Slot[T] {
	return &Slot[T]{subs: make(map[int]chan T)}
}

// Publish stores v and delivers it to every subscriber, replacing any unread value.
func (s *Slot[T]) Publish(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	s.value, s.set = v, true
	for _, ch := range s.subs {
		offer(ch, v)
	}
}

// Value returns the last published value and whether one exists.
func (s *Slot[T]) Value() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, s.set
}

// Subscribe returns a channel of published values and a cancel func that closes it.
//
// When replay is true and a value was already published, it is delivered first.
func (s *Slot[T]) Subscribe(replay bool) (<-chan T, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan T, 1)
	if s.closed {
		close(ch)
		return ch, func() {}
	}

	id := s.nextID
	s.nextID++
	s.subs[id] = ch

	if replay && s.set {
		ch <- s.value
	}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if _, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(ch)
			}
		})
	}
	return ch, cancel
}

// Close closes every subscriber channel. Later publishes are dropped.
func (s *Slot[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
}

// offer drops the pending value, if any, and sends v without blocking.
func offer[T any](ch chan T, v T) {
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- v:
	default:
	}
}
