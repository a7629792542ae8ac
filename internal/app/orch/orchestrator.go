package orch

import (
	"context"
	"time"

	"github.com/dkeye/seshd/internal/app"
	"github.com/dkeye/seshd/internal/catalog"
	"github.com/dkeye/seshd/internal/core"
	"github.com/dkeye/seshd/internal/domain"
	"github.com/dkeye/seshd/internal/notify"
	"github.com/dkeye/seshd/internal/store"
	"github.com/rs/zerolog/log"
)

const (
	DefaultIdleThreshold  = 7 * 24 * time.Hour
	DefaultStorageTimeout = 3 * time.Second
	DefaultCatalogTimeout = time.Second
)

// Orchestrator coordinates clients, live rooms, the event log, the hub and
// the durable store. Catalog, Notifier and Policy are optional.
type Orchestrator struct {
	Registry *app.Registry
	Rooms    *app.RoomManager
	Log      *core.EventLog
	Hub      *core.Hub
	Store    store.Store
	Catalog  catalog.Catalog
	Notifier *notify.Notifier
	Policy   app.Policy
	Retry    app.Retrier

	Now            func() time.Time
	IdleThreshold  time.Duration
	StorageTimeout time.Duration
	CatalogTimeout time.Duration
}

// New wires an Orchestrator with in-process defaults around st.
func New(st store.Store) *Orchestrator {
	return &Orchestrator{
		Registry: app.NewRegistry(),
		Rooms:    app.NewRoomManager(),
		Log:      core.NewEventLog(core.DefaultLogCapacity, core.DefaultLogMaxAge),
		Hub:      core.NewHub(),
		Store:    st,
		Policy:   app.SimplePolicy{},
		Retry:    app.NewRetrier(app.DefaultRetries),
	}
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o *Orchestrator) idleThreshold() time.Duration {
	if o.IdleThreshold > 0 {
		return o.IdleThreshold
	}
	return DefaultIdleThreshold
}

// storage runs fn under the storage timeout with bounded retries.
func (o *Orchestrator) storage(ctx context.Context, op string, fn func(context.Context) error) error {
	timeout := o.StorageTimeout
	if timeout <= 0 {
		timeout = DefaultStorageTimeout
	}
	return o.Retry.Do(ctx, op, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return fn(ctx)
	})
}

// bestEffort is storage for writes whose failure must not undo an
// in-memory change that already happened.
func (o *Orchestrator) bestEffort(ctx context.Context, op string, sid domain.SessionID, fn func(context.Context) error) {
	if err := o.storage(ctx, op, fn); err != nil {
		log.Error().Err(err).Str("module", "app.orch").Str("op", op).Str("session_id", string(sid)).Msg("storage write failed")
	}
}

// acquire returns the live room of sid inside its write scope.
func (o *Orchestrator) acquire(sid domain.SessionID) *core.Room {
	for {
		room := o.Rooms.GetOrCreate(sid)
		room.Lock()
		if !room.Closed() {
			return room
		}
		room.Unlock()
	}
}

// acquireExisting is acquire without creating a room.
func (o *Orchestrator) acquireExisting(sid domain.SessionID) (*core.Room, bool) {
	for {
		room, ok := o.Rooms.Get(sid)
		if !ok {
			return nil, false
		}
		room.Lock()
		if !room.Closed() {
			return room, true
		}
		room.Unlock()
	}
}

// acquirePair locks the rooms of sid and prev in id order. The second
// result is nil when prev has no live room.
func (o *Orchestrator) acquirePair(sid, prev domain.SessionID) (*core.Room, *core.Room) {
	if prev < sid {
		old, ok := o.acquireExisting(prev)
		if !ok {
			old = nil
		}
		return o.acquire(sid), old
	}
	room := o.acquire(sid)
	old, ok := o.acquireExisting(prev)
	if !ok {
		old = nil
	}
	return room, old
}

func (o *Orchestrator) membership(sid domain.SessionID, m domain.Membership) domain.Event {
	return domain.Event{SessionID: sid, CreatedAt: o.now(), Payload: m}
}

func (o *Orchestrator) publish(sid domain.SessionID, ev domain.Event) {
	o.Hub.Publish(sid, ev)
}

func (o *Orchestrator) notify(n notify.Notification) {
	if o.Notifier == nil || n.RecipientID == "" {
		return
	}
	n.CreatedAt = o.now()
	o.Notifier.Enqueue(n)
}

func (o *Orchestrator) denied(clientID domain.ClientID, sid domain.SessionID, op string) error {
	log.Warn().Str("module", "app.orch").Str("event", "security").Str("op", op).
		Str("client_id", string(clientID)).Str("session_id", string(sid)).Msg("non-member access rejected")
	return domain.Unauthorized("not a member of session %s", sid)
}

// recipient addresses a client by its user id when it has one.
func recipient(c domain.Client) string {
	if c.UserID != "" {
		return string(c.UserID)
	}
	return string(c.ID)
}

// RegisterClient creates a client with no session for a new connection.
func (o *Orchestrator) RegisterClient(sig core.SignalConnection, userID domain.UserID, cancel context.CancelFunc) domain.Client {
	c := domain.NewClient(userID, o.now())
	o.Registry.Register(*c, sig, cancel)
	return *c
}

// Disconnect detaches the client from its session and forgets it.
func (o *Orchestrator) Disconnect(ctx context.Context, clientID domain.ClientID) {
	if _, err := o.LeaveSession(ctx, clientID); err != nil {
		log.Error().Err(err).Str("module", "app.orch").Str("client_id", string(clientID)).Msg("leave on disconnect")
	}
	o.Registry.Unregister(clientID)
}

// Reset clears every process-scoped structure.
func (o *Orchestrator) Reset() {
	o.Rooms.Reset()
	o.Registry.Reset()
	o.Log.Reset()
	o.Hub.Reset()
	log.Info().Str("module", "app.orch").Msg("reset")
}
