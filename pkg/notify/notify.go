// Package notify holds the single visible "badge earned" notification and
// fans badge events out to live subscribers.
package notify

import (
	"sync"
	"time"

	"github.com/devqa/devqa.go/pkg/constants"
)

// Event is emitted once per badge actually written to a user.
type Event struct {
	UserID string    `json:"userId" cbor:"userId"`
	Badge  string    `json:"badge" cbor:"badge"`
	At     time.Time `json:"at" cbor:"at"`
}

// Notification is the currently displayed event.
type Notification struct {
	Event
	ExpiresAt time.Time `json:"expiresAt" cbor:"expiresAt"`
}

// Publisher receives badge events.
type Publisher interface {
	Publish(Event)
}

// Sink keeps at most one notification. A new event replaces the current
// one and restarts its timer; the slot clears itself after the TTL or on
// Dismiss.
type Sink struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	current *Notification
	timer   *time.Timer
	gen     uint64
	subs    map[int]chan Event
	nextSub int
}

func NewSink(ttl time.Duration) *Sink {
	if ttl <= 0 {
		ttl = constants.DefaultNotificationTTL
	}
	return &Sink{ttl: ttl, now: time.Now, subs: make(map[int]chan Event)}
}

var _ Publisher = (*Sink)(nil)

func (s *Sink) Publish(e Event) {
	if e.At.IsZero() {
		e.At = s.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	gen := s.gen
	s.current = &Notification{Event: e, ExpiresAt: e.At.Add(s.ttl)}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.ttl, func() { s.expire(gen) })

	for _, ch := range s.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

func (s *Sink) expire(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen == gen {
		s.current = nil
	}
}

// Current returns the visible notification, if any.
func (s *Sink) Current() (Notification, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return Notification{}, false
	}
	return *s.current, true
}

// Dismiss clears the slot early.
func (s *Sink) Dismiss() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.current = nil
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// Subscribe returns a buffered channel of future events and a function
// that unsubscribes and closes it. Slow subscribers miss events rather
// than block publishers.
func (s *Sink) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	ch := make(chan Event, buffer)

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			close(ch)
		})
	}
}
