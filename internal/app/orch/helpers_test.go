package orch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/seshd/internal/app"
	"github.com/dkeye/seshd/internal/core"
	"github.com/dkeye/seshd/internal/domain"
	"github.com/dkeye/seshd/internal/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const (
	testSession = domain.SessionID("sess-1")
	testBoard   = "kilter/8/25/26,27,28,29/40"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type nopConn struct{}

func (nopConn) TrySend(core.Frame) error { return nil }
func (nopConn) Close()                   {}

// recorder collects the events a subscriber receives.
type recorder struct {
	mu     sync.Mutex
	events []domain.Event
	err    error
}

func (r *recorder) send(ev domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) all() []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Event(nil), r.events...)
}

func (r *recorder) membership(kind domain.MembershipKind) []domain.Membership {
	var out []domain.Membership
	for _, ev := range r.all() {
		if m, ok := ev.Payload.(domain.Membership); ok && m.Kind == kind {
			out = append(out, m)
		}
	}
	return out
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, *store.Memory, *clock) {
	t.Helper()
	st := store.NewMemory()
	clk := &clock{now: time.Unix(1_700_000_000, 0)}
	o := New(st)
	o.Now = clk.Now
	o.Log = core.NewEventLog(core.DefaultLogCapacity, 0, core.WithClock(clk.Now))
	o.Retry = app.Retrier{Attempts: 3, Backoff: time.Millisecond}
	return o, st, clk
}

// connect registers a client whose connection was opened at the current
// clock time, then moves the clock so connection order is strict.
func connect(t *testing.T, o *Orchestrator, clk *clock, userID domain.UserID) domain.ClientID {
	t.Helper()
	c := o.RegisterClient(nopConn{}, userID, func() {})
	clk.Advance(time.Second)
	return c.ID
}

func join(t *testing.T, o *Orchestrator, id domain.ClientID, sid domain.SessionID) JoinResult {
	t.Helper()
	res, err := o.JoinSession(context.Background(), id, JoinRequest{SessionID: sid, BoardPath: testBoard})
	require.NoError(t, err)
	return res
}

func item(climb string) domain.QueueItem {
	return domain.QueueItem{UUID: uuid.NewString(), Climb: domain.Climb{UUID: climb, Angle: 40}}
}

func mutation(items ...domain.QueueItem) domain.Mutation {
	return domain.Mutation{Queue: items}
}
