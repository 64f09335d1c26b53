package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSingleSlotReplacesAndExpires(t *testing.T) {
	s := NewSink(50 * time.Millisecond)

	s.Publish(Event{UserID: "recA", Badge: "First Question"})
	s.Publish(Event{UserID: "recA", Badge: "Centurion"})

	n, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, "Centurion", n.Badge)
	assert.Equal(t, n.At.Add(50*time.Millisecond), n.ExpiresAt)

	assert.Eventually(t, func() bool {
		_, ok := s.Current()
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestDismiss(t *testing.T) {
	s := NewSink(time.Hour)
	s.Publish(Event{UserID: "recA", Badge: "First Answer"})
	s.Dismiss()
	_, ok := s.Current()
	assert.False(t, ok)
}

func TestStaleTimerDoesNotClearNewerEvent(t *testing.T) {
	s := NewSink(time.Hour)
	s.Publish(Event{Badge: "First Question"})
	old := s.gen
	s.Publish(Event{Badge: "Question Master"})

	s.expire(old)
	n, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, "Question Master", n.Badge)
}

func TestSubscribe(t *testing.T) {
	s := NewSink(time.Hour)
	ch, cancel := s.Subscribe(1)

	s.Publish(Event{UserID: "recA", Badge: "First Question"})
	s.Publish(Event{UserID: "recA", Badge: "dropped"})

	e := <-ch
	assert.Equal(t, "First Question", e.Badge)

	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)
	s.Publish(Event{Badge: "after cancel"})
}
