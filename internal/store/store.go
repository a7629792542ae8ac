// Package store persists sessions, their members and queue snapshots so a
// session survives process restarts.
package store

//go:generate mockgen -source=store.go -destination=mock_store.go -package=store

import (
	"context"
	"time"

	"github.com/dkeye/seshd/internal/core"
	"github.com/dkeye/seshd/internal/domain"
)

// ClientRecord is the durable row of a session member.
type ClientRecord struct {
	ClientID    domain.ClientID
	SessionID   domain.SessionID
	UserID      domain.UserID
	Username    string
	IsLeader    bool
	ConnectedAt time.Time
}

// Store is the durable record store. Implementations report retryable
// failures as domain.ErrTransientStorage and missing rows as
// domain.ErrNotFound.
type Store interface {
	// UpsertSession creates the session or updates its metadata.
	UpsertSession(ctx context.Context, s domain.Session) error
	GetSession(ctx context.Context, id domain.SessionID) (domain.Session, error)
	// TouchSession records activity and status.
	TouchSession(ctx context.Context, id domain.SessionID, status domain.SessionStatus, at time.Time) error
	EndSession(ctx context.Context, id domain.SessionID, at time.Time) error

	UpsertClient(ctx context.Context, c ClientRecord) error
	DeleteClient(ctx context.Context, id domain.ClientID) error

	// ReadQueue returns the committed queue, or an empty state at sequence 0.
	ReadQueue(ctx context.Context, id domain.SessionID) (domain.QueueState, error)
	// ReplaceQueue stores state only if the committed sequence still equals
	// expected; otherwise it fails with domain.ErrVersionConflict.
	ReplaceQueue(ctx context.Context, id domain.SessionID, state domain.QueueState, expected uint64) error

	// DeleteExpiredSessions removes non-permanent sessions idle since before
	// cutoff, with their clients and queues, and returns their ids.
	DeleteExpiredSessions(ctx context.Context, cutoff time.Time) ([]domain.SessionID, error)
	// NearbySessions returns discoverable, not ended sessions inside box with
	// activity after activeSince.
	NearbySessions(ctx context.Context, box core.Box, activeSince time.Time) ([]domain.Session, error)

	Ping(ctx context.Context) error
	Close() error
}
