package notify

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/eskrenkovic/tql"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// LogSink writes notifications to the log.
type LogSink struct{}

func (LogSink) Deliver(_ context.Context, key string, n Notification) error {
	log.Info().Str("module", "notify").Str("key", key).Str("kind", string(n.Kind)).
		Str("session_id", string(n.SessionID)).Str("recipient", n.RecipientID).
		Str("actor", n.ActorID).Msg(n.Message)
	return nil
}

// PgSink stores notifications in the notifications table; a repeated key is
// a no-op.
type PgSink struct {
	db *sql.DB
}

func NewPgSink(db *sql.DB) *PgSink {
	return &PgSink{db: db}
}

func (s *PgSink) Deliver(ctx context.Context, key string, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return errors.Wrap(err, "encode notification")
	}
	const stmt = `
		INSERT INTO
			notifications (idempotency_key, kind, session_id, recipient_id, actor_id, payload, created_at)
		VALUES
			($1, $2, $3, $4, $5, CAST($6 AS jsonb), $7)
		ON CONFLICT (idempotency_key) DO NOTHING;`
	_, err = tql.Exec(ctx, s.db, stmt,
		key, string(n.Kind), string(n.SessionID), n.RecipientID, n.ActorID, string(payload), n.CreatedAt)
	return errors.Wrap(err, "insert notification")
}
