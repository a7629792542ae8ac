// Package notify delivers user-facing notifications off the request path.
package notify

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dkeye/seshd/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
)

type Kind string

const (
	// SessionJoined tells a session's creator that someone else joined it.
	SessionJoined Kind = "session_joined"
	// LeaderPromoted tells a client it became the session leader.
	LeaderPromoted Kind = "leader_promoted"
)

const (
	DefaultWorkers   = 4
	DefaultQueueSize = 256
	DefaultWindow    = time.Minute
	DefaultAttempts  = 5
)

var keyNamespace = uuid.MustParse("6f1c2b1e-4c1f-5b7a-9a8e-2d4b7c0e9f31")

type Notification struct {
	Kind        Kind             `json:"kind"`
	SessionID   domain.SessionID `json:"sessionId"`
	RecipientID string           `json:"recipientId"`
	ActorID     string           `json:"actorId,omitempty"`
	Message     string           `json:"message,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
}

// Key is stable for the same notification within one dedup window, so a
// sink can drop repeats.
func (n Notification) Key(window time.Duration) string {
	bucket := n.CreatedAt.Unix()
	if window > 0 {
		bucket = n.CreatedAt.Truncate(window).Unix()
	}
	name := strings.Join([]string{
		string(n.Kind), string(n.SessionID), n.ActorID, n.RecipientID, strconv.FormatInt(bucket, 10),
	}, "|")
	return uuid.NewSHA1(keyNamespace, []byte(name)).String()
}

// Sink stores or sends one notification. Deliver must be idempotent on key.
type Sink interface {
	Deliver(ctx context.Context, key string, n Notification) error
}

type Options struct {
	Workers   int
	QueueSize int
	Window    time.Duration
	Attempts  int
	Backoff   time.Duration
	Now       func() time.Time
}

type job struct {
	key string
	n   Notification
}

// Notifier queues notifications and delivers them at least once through a
// Sink using a bounded worker pool.
type Notifier struct {
	sink  Sink
	queue chan job
	opts  Options

	mu   sync.Mutex
	seen map[string]time.Time
}

func New(sink Sink, opts Options) *Notifier {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.Attempts <= 0 {
		opts.Attempts = DefaultAttempts
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 100 * time.Millisecond
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Notifier{
		sink:  sink,
		queue: make(chan job, opts.QueueSize),
		opts:  opts,
		seen:  make(map[string]time.Time),
	}
}

// Enqueue never blocks. It reports false when the notification is a repeat
// inside the dedup window or the queue is full.
func (n *Notifier) Enqueue(note Notification) bool {
	if n == nil {
		return false
	}
	now := n.opts.Now()
	if note.CreatedAt.IsZero() {
		note.CreatedAt = now
	}
	key := note.Key(n.opts.Window)

	n.mu.Lock()
	for k, at := range n.seen {
		if now.Sub(at) > n.opts.Window {
			delete(n.seen, k)
		}
	}
	if _, dup := n.seen[key]; dup {
		n.mu.Unlock()
		log.Debug().Str("module", "notify").Str("key", key).Msg("duplicate notification dropped")
		return false
	}
	n.seen[key] = now
	n.mu.Unlock()

	select {
	case n.queue <- job{key: key, n: note}:
		return true
	default:
		n.mu.Lock()
		delete(n.seen, key)
		n.mu.Unlock()
		log.Warn().Str("module", "notify").Str("kind", string(note.Kind)).
			Str("session_id", string(note.SessionID)).Msg("notification queue full, dropped")
		return false
	}
}

// Run delivers queued notifications until ctx is done, then waits for the
// deliveries already started.
func (n *Notifier) Run(ctx context.Context) error {
	p := pool.New().WithMaxGoroutines(n.opts.Workers)
	log.Info().Str("module", "notify").Int("workers", n.opts.Workers).Msg("notifier started")
	for {
		select {
		case <-ctx.Done():
			p.Wait()
			log.Info().Str("module", "notify").Msg("notifier stopped")
			return nil
		case j := <-n.queue:
			p.Go(func() { n.deliver(ctx, j) })
		}
	}
}

func (n *Notifier) deliver(ctx context.Context, j job) {
	backoff := n.opts.Backoff
	for attempt := 1; ; attempt++ {
		err := n.sink.Deliver(ctx, j.key, j.n)
		if err == nil {
			return
		}
		if attempt >= n.opts.Attempts {
			log.Error().Err(err).Str("module", "notify").Str("key", j.key).
				Str("kind", string(j.n.Kind)).Int("attempts", attempt).Msg("notification delivery failed")
			return
		}
		log.Warn().Err(err).Str("module", "notify").Str("key", j.key).Int("attempt", attempt).Msg("notification delivery retry")
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}
