package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"net"
	"time"

	"github.com/dkeye/seshd/internal/core"
	"github.com/dkeye/seshd/internal/domain"
	"github.com/eskrenkovic/migrate-go"
	"github.com/eskrenkovic/tql"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Postgres is the durable Store.
type Postgres struct {
	db *sql.DB
}

var _ Store = (*Postgres)(nil)

func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open postgres")
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, classify(err, "ping postgres")
	}
	return &Postgres{db: db}, nil
}

// Migrate applies the sql files in migrationsPath.
func (p *Postgres) Migrate(ctx context.Context, migrationsPath string) error {
	if err := migrate.Run(ctx, p.db, migrationsPath); err != nil {
		return errors.Wrap(err, "run migrations")
	}
	log.Info().Str("module", "store.postgres").Str("path", migrationsPath).Msg("migrations applied")
	return nil
}

// DB exposes the pool to other postgres-backed components.
func (p *Postgres) DB() *sql.DB { return p.db }

type sessionRow struct {
	ID           string     `db:"id"`
	Name         string     `db:"name"`
	Goal         string     `db:"goal"`
	Color        string     `db:"color"`
	BoardPath    string     `db:"board_path"`
	Latitude     *float64   `db:"latitude"`
	Longitude    *float64   `db:"longitude"`
	Discoverable bool       `db:"discoverable"`
	Permanent    bool       `db:"permanent"`
	CreatedBy    string     `db:"created_by"`
	Status       string     `db:"status"`
	CreatedAt    time.Time  `db:"created_at"`
	LastActivity time.Time  `db:"last_activity"`
	EndedAt      *time.Time `db:"ended_at"`
}

func toSessionRow(s domain.Session) sessionRow {
	return sessionRow{
		ID:           string(s.ID),
		Name:         s.Name,
		Goal:         s.Goal,
		Color:        s.Color,
		BoardPath:    s.BoardPath,
		Latitude:     s.Latitude,
		Longitude:    s.Longitude,
		Discoverable: s.Discoverable,
		Permanent:    s.Permanent,
		CreatedBy:    string(s.CreatedBy),
		Status:       string(s.Status),
		CreatedAt:    s.CreatedAt,
		LastActivity: s.LastActivity,
		EndedAt:      s.EndedAt,
	}
}

func (r sessionRow) toDomain() domain.Session {
	return domain.Session{
		ID:           domain.SessionID(r.ID),
		Name:         r.Name,
		Goal:         r.Goal,
		Color:        r.Color,
		BoardPath:    r.BoardPath,
		Latitude:     r.Latitude,
		Longitude:    r.Longitude,
		Discoverable: r.Discoverable,
		Permanent:    r.Permanent,
		CreatedBy:    domain.UserID(r.CreatedBy),
		Status:       domain.SessionStatus(r.Status),
		CreatedAt:    r.CreatedAt,
		LastActivity: r.LastActivity,
		EndedAt:      r.EndedAt,
	}
}

const sessionColumns = `id, name, goal, color, board_path, latitude, longitude,
	discoverable, permanent, created_by, status, created_at, last_activity, ended_at`

func (p *Postgres) UpsertSession(ctx context.Context, s domain.Session) error {
	const stmt = `
		INSERT INTO
			sessions (id, name, goal, color, board_path, latitude, longitude,
				discoverable, permanent, created_by, status, created_at, last_activity)
		VALUES
			(:id, :name, :goal, :color, :board_path, :latitude, :longitude,
				:discoverable, :permanent, :created_by, :status, :created_at, :last_activity)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			goal = EXCLUDED.goal,
			color = EXCLUDED.color,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			discoverable = EXCLUDED.discoverable,
			permanent = EXCLUDED.permanent,
			status = EXCLUDED.status,
			last_activity = EXCLUDED.last_activity;`

	const queueStmt = `
		INSERT INTO
			session_queues (session_id, queue, sequence, state_hash)
		VALUES
			($1, CAST('[]' AS jsonb), 0, $2)
		ON CONFLICT (session_id) DO NOTHING;`

	return classify(Tx(ctx, p.db, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tql.Exec(ctx, tx, stmt, toSessionRow(s)); err != nil {
			return err
		}
		_, err := tql.Exec(ctx, tx, queueStmt, string(s.ID), core.StateHash(nil, nil))
		return err
	}), "upsert session")
}

func (p *Postgres) GetSession(ctx context.Context, id domain.SessionID) (domain.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1;`
	row, err := tql.QueryFirst[sessionRow](ctx, p.db, query, string(id))
	if errors.Is(err, sql.ErrNoRows) || (err == nil && row.ID == "") {
		return domain.Session{}, domain.NotFound("session %s not found", id)
	}
	if err != nil {
		return domain.Session{}, classify(err, "get session")
	}
	return row.toDomain(), nil
}

func (p *Postgres) TouchSession(ctx context.Context, id domain.SessionID, status domain.SessionStatus, at time.Time) error {
	const stmt = `
		UPDATE
			sessions
		SET
			status = CASE WHEN status = 'ended' THEN status ELSE $2 END,
			last_activity = $3
		WHERE
			id = $1;`
	_, err := tql.Exec(ctx, p.db, stmt, string(id), string(status), at)
	return classify(err, "touch session")
}

func (p *Postgres) EndSession(ctx context.Context, id domain.SessionID, at time.Time) error {
	const stmt = `
		UPDATE
			sessions
		SET
			status = 'ended', ended_at = $2, last_activity = $2
		WHERE
			id = $1;`
	const clientsStmt = `DELETE FROM session_clients WHERE session_id = $1;`

	return classify(Tx(ctx, p.db, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tql.Exec(ctx, tx, stmt, string(id), at); err != nil {
			return err
		}
		_, err := tql.Exec(ctx, tx, clientsStmt, string(id))
		return err
	}), "end session")
}

type clientRow struct {
	ClientID    string    `db:"client_id"`
	SessionID   string    `db:"session_id"`
	UserID      string    `db:"user_id"`
	Username    string    `db:"username"`
	IsLeader    bool      `db:"is_leader"`
	ConnectedAt time.Time `db:"connected_at"`
}

func (p *Postgres) UpsertClient(ctx context.Context, c ClientRecord) error {
	const stmt = `
		INSERT INTO
			session_clients (client_id, session_id, user_id, username, is_leader, connected_at)
		VALUES
			(:client_id, :session_id, :user_id, :username, :is_leader, :connected_at)
		ON CONFLICT (client_id) DO UPDATE SET
			session_id = EXCLUDED.session_id,
			username = EXCLUDED.username,
			is_leader = EXCLUDED.is_leader;`
	row := clientRow{
		ClientID:    string(c.ClientID),
		SessionID:   string(c.SessionID),
		UserID:      string(c.UserID),
		Username:    c.Username,
		IsLeader:    c.IsLeader,
		ConnectedAt: c.ConnectedAt,
	}
	_, err := tql.Exec(ctx, p.db, stmt, row)
	return classify(err, "upsert client")
}

func (p *Postgres) DeleteClient(ctx context.Context, id domain.ClientID) error {
	_, err := tql.Exec(ctx, p.db, `DELETE FROM session_clients WHERE client_id = $1;`, string(id))
	return classify(err, "delete client")
}

type queueRow struct {
	SessionID   string  `db:"session_id"`
	Queue       string  `db:"queue"`
	CurrentItem *string `db:"current_item"`
	Sequence    int64   `db:"sequence"`
	StateHash   string  `db:"state_hash"`
}

func (p *Postgres) ReadQueue(ctx context.Context, id domain.SessionID) (domain.QueueState, error) {
	const query = `
		SELECT
			q.session_id, q.queue, q.current_item, q.sequence, q.state_hash
		FROM
			sessions s JOIN session_queues q ON q.session_id = s.id
		WHERE
			s.id = $1;`
	row, err := tql.QueryFirst[queueRow](ctx, p.db, query, string(id))
	if errors.Is(err, sql.ErrNoRows) || (err == nil && row.SessionID == "") {
		return domain.QueueState{}, domain.NotFound("session %s not found", id)
	}
	if err != nil {
		return domain.QueueState{}, classify(err, "read queue")
	}

	state := domain.QueueState{
		Queue:     []domain.QueueItem{},
		Sequence:  uint64(row.Sequence),
		StateHash: row.StateHash,
	}
	if err := json.Unmarshal([]byte(row.Queue), &state.Queue); err != nil {
		return domain.QueueState{}, errors.Wrapf(err, "decode queue of session %s", id)
	}
	if row.CurrentItem != nil && *row.CurrentItem != "" && *row.CurrentItem != "null" {
		var cur domain.QueueItem
		if err := json.Unmarshal([]byte(*row.CurrentItem), &cur); err != nil {
			return domain.QueueState{}, errors.Wrapf(err, "decode current item of session %s", id)
		}
		state.CurrentItem = &cur
	}
	return state, nil
}

func (p *Postgres) ReplaceQueue(ctx context.Context, id domain.SessionID, state domain.QueueState, expected uint64) error {
	queue, err := json.Marshal(state.Queue)
	if err != nil {
		return errors.Wrap(err, "encode queue")
	}
	var current *string
	if state.CurrentItem != nil {
		b, err := json.Marshal(state.CurrentItem)
		if err != nil {
			return errors.Wrap(err, "encode current item")
		}
		s := string(b)
		current = &s
	}

	const stmt = `
		UPDATE
			session_queues
		SET
			queue = CAST($2 AS jsonb),
			current_item = CAST($3 AS jsonb),
			sequence = $4,
			state_hash = $5,
			updated_at = now()
		WHERE
			session_id = $1 AND sequence = $6
		RETURNING
			session_id, sequence;`
	type result struct {
		SessionID string `db:"session_id"`
		Sequence  int64  `db:"sequence"`
	}
	res, err := tql.QueryFirst[result](ctx, p.db, stmt,
		string(id), string(queue), current, int64(state.Sequence), state.StateHash, int64(expected))
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return classify(err, "replace queue")
	}
	if err == nil && res.SessionID != "" {
		return nil
	}

	// Nothing updated: either the session is gone or someone else committed.
	cur, err := p.ReadQueue(ctx, id)
	if err != nil {
		return err
	}
	return domain.VersionConflict(id, expected, cur.Sequence)
}

func (p *Postgres) DeleteExpiredSessions(ctx context.Context, cutoff time.Time) ([]domain.SessionID, error) {
	const stmt = `
		DELETE FROM
			sessions
		WHERE
			NOT permanent AND last_activity < $1
		RETURNING
			id;`
	ids, err := tql.Query[string](ctx, p.db, stmt, cutoff)
	if err != nil {
		return nil, classify(err, "delete expired sessions")
	}
	out := make([]domain.SessionID, len(ids))
	for i, id := range ids {
		out[i] = domain.SessionID(id)
	}
	return out, nil
}

func (p *Postgres) NearbySessions(ctx context.Context, box core.Box, activeSince time.Time) ([]domain.Session, error) {
	query := `SELECT ` + sessionColumns + `
		FROM
			sessions
		WHERE
			discoverable
			AND status <> 'ended'
			AND latitude BETWEEN $1 AND $2
			AND longitude BETWEEN $3 AND $4
			AND last_activity >= $5;`
	rows, err := tql.Query[sessionRow](ctx, p.db, query, box.MinLat, box.MaxLat, box.MinLon, box.MaxLon, activeSince)
	if err != nil {
		return nil, classify(err, "nearby sessions")
	}
	out := make([]domain.Session, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return classify(p.db.PingContext(ctx), "ping")
}

func (p *Postgres) Close() error { return p.db.Close() }

// classify wraps err and marks failures worth retrying as transient.
func classify(err error, msg string) error {
	if err == nil {
		return nil
	}
	if domain.KindOf(err) != domain.KindInternal {
		return err
	}
	wrapped := errors.Wrap(err, msg)
	if isTransient(err) {
		return domain.TransientStorage(wrapped)
	}
	return wrapped
}

func isTransient(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code.Class() == "08": // connection exception
			return true
		case pqErr.Code == "40001", pqErr.Code == "40P01": // serialization, deadlock
			return true
		case pqErr.Code == "57P01", pqErr.Code == "57P02", pqErr.Code == "57P03": // shutdown
			return true
		case pqErr.Code == "53300": // too many connections
			return true
		}
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
