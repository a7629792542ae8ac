package core

import (
	"sync"
	"time"

	"github.com/dkeye/seshd/internal/domain"
	"github.com/rs/zerolog/log"
)

const (
	DefaultLogCapacity = 100
	DefaultLogMaxAge   = 5 * time.Minute
)

// sessionLog is a bounded window of events (base, last]. base is the highest
// sequence that is no longer retained, so any replay from below base has a gap.
type sessionLog struct {
	events []domain.Event
	base   uint64
	last   uint64
}

// EventLog keeps the recent sequenced events of every session for replay.
type EventLog struct {
	mu       sync.Mutex
	capacity int
	maxAge   time.Duration
	now      func() time.Time
	logs     map[domain.SessionID]*sessionLog
}

type EventLogOption func(*EventLog)

func WithClock(now func() time.Time) EventLogOption {
	return func(l *EventLog) { l.now = now }
}

func NewEventLog(capacity int, maxAge time.Duration, opts ...EventLogOption) *EventLog {
	if capacity <= 0 {
		capacity = DefaultLogCapacity
	}
	l := &EventLog{
		capacity: capacity,
		maxAge:   maxAge,
		now:      time.Now,
		logs:     make(map[domain.SessionID]*sessionLog),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *EventLog) get(sid domain.SessionID) *sessionLog {
	sl, ok := l.logs[sid]
	if !ok {
		sl = &sessionLog{}
		l.logs[sid] = sl
	}
	return sl
}

// Seed starts a session's window at seq, e.g. after restoring its queue from
// the store. Existing events are discarded.
func (l *EventLog) Seed(sid domain.SessionID, seq uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logs[sid] = &sessionLog{base: seq, last: seq}
}

// Append stores payload as the next event of the session.
func (l *EventLog) Append(sid domain.SessionID, payload domain.Payload) domain.Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	sl := l.get(sid)
	sl.last++
	ev := domain.Event{
		SessionID: sid,
		Sequence:  sl.last,
		CreatedAt: l.now(),
		Payload:   payload,
	}
	sl.events = append(sl.events, ev)
	l.evict(sid, sl)
	return ev
}

// Since returns every event with sequence > seq in order, or
// domain.ErrBufferExceeded if some of them are gone.
func (l *EventLog) Since(sid domain.SessionID, seq uint64) ([]domain.Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	sl, ok := l.logs[sid]
	if !ok {
		if seq == 0 {
			return []domain.Event{}, nil
		}
		return nil, domain.ErrBufferExceeded
	}
	l.evict(sid, sl)

	if seq < sl.base || seq > sl.last {
		return nil, domain.ErrBufferExceeded
	}
	// events hold (base, last] contiguously.
	start := int(seq - sl.base)
	out := make([]domain.Event, len(sl.events)-start)
	copy(out, sl.events[start:])
	return out, nil
}

func (l *EventLog) LastSequence(sid domain.SessionID) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if sl, ok := l.logs[sid]; ok {
		return sl.last
	}
	return 0
}

func (l *EventLog) Drop(sid domain.SessionID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.logs, sid)
}

func (l *EventLog) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logs = make(map[domain.SessionID]*sessionLog)
}

func (l *EventLog) evict(sid domain.SessionID, sl *sessionLog) {
	drop := 0
	if over := len(sl.events) - l.capacity; over > 0 {
		drop = over
	}
	if l.maxAge > 0 {
		cutoff := l.now().Add(-l.maxAge)
		for drop < len(sl.events) && sl.events[drop].CreatedAt.Before(cutoff) {
			drop++
		}
	}
	if drop == 0 {
		return
	}
	sl.base = sl.events[drop-1].Sequence
	sl.events = append([]domain.Event(nil), sl.events[drop:]...)
	log.Debug().Str("module", "core.eventlog").Str("session_id", string(sid)).
		Int("evicted", drop).Uint64("base", sl.base).Msg("evicted events")
}
