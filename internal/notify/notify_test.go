package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu       sync.Mutex
	failures int
	calls    int
	keys     []string
}

func (s *recordingSink) Deliver(_ context.Context, key string, _ Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failures > 0 {
		s.failures--
		return errors.New("sink down")
	}
	s.keys = append(s.keys, key)
	return nil
}

func (s *recordingSink) delivered() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.keys...)
}

func (s *recordingSink) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func note(recipient string, at time.Time) Notification {
	return Notification{
		Kind:        SessionJoined,
		SessionID:   "sess-1",
		RecipientID: recipient,
		ActorID:     "user-b",
		CreatedAt:   at,
	}
}

func Test_Key_Is_Stable_Within_Window(t *testing.T) {
	t0 := time.Unix(1_000_020, 0)

	a := note("user-a", t0).Key(time.Minute)
	b := note("user-a", t0.Add(10*time.Second)).Key(time.Minute)
	c := note("user-c", t0).Key(time.Minute)

	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
}

func Test_Enqueue_Drops_Duplicates_In_Window(t *testing.T) {
	// Arrange
	now := time.Unix(1_000_020, 0)
	n := New(&recordingSink{}, Options{Now: func() time.Time { return now }})

	// Act
	first := n.Enqueue(note("user-a", time.Time{}))
	second := n.Enqueue(note("user-a", time.Time{}))
	other := n.Enqueue(note("user-c", time.Time{}))

	// Assert
	require.True(t, first)
	require.False(t, second)
	require.True(t, other)
}

func Test_Enqueue_Does_Not_Block_When_Queue_Is_Full(t *testing.T) {
	n := New(&recordingSink{}, Options{QueueSize: 1})

	require.True(t, n.Enqueue(note("user-a", time.Unix(100, 0))))
	require.False(t, n.Enqueue(note("user-b", time.Unix(100, 0))))
}

func Test_Run_Retries_Until_Delivered(t *testing.T) {
	// Arrange
	sink := &recordingSink{failures: 2}
	n := New(sink, Options{Backoff: time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = n.Run(ctx)
		close(done)
	}()

	// Act
	require.True(t, n.Enqueue(note("user-a", time.Now())))

	// Assert
	require.Eventually(t, func() bool { return len(sink.delivered()) == 1 }, time.Second, 5*time.Millisecond)
	require.Equal(t, 3, sink.callCount())
	cancel()
	<-done
}

func Test_Run_Gives_Up_After_Attempts(t *testing.T) {
	sink := &recordingSink{failures: 100}
	n := New(sink, Options{Backoff: time.Millisecond, Attempts: 3})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = n.Run(ctx) }()

	require.True(t, n.Enqueue(note("user-a", time.Now())))

	require.Eventually(t, func() bool { return sink.callCount() == 3 }, time.Second, 5*time.Millisecond)
	require.Never(t, func() bool { return sink.callCount() > 3 }, 50*time.Millisecond, 5*time.Millisecond)
	require.Empty(t, sink.delivered())
}
