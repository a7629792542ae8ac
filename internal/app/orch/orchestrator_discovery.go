package orch

import (
	"context"
	"sort"

	"github.com/dkeye/seshd/internal/core"
	"github.com/dkeye/seshd/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const MaxNearbyResults = 50

// FindNearbySessions lists discoverable sessions within radius meters of
// (lat, lon), nearest first. A zero radius means the default.
func (o *Orchestrator) FindNearbySessions(ctx context.Context, lat, lon, radius float64) ([]domain.DiscoverableSession, error) {
	if err := domain.ValidateCoordinates(lat, lon); err != nil {
		return nil, err
	}
	radius, err := domain.NormalizeRadius(radius)
	if err != nil {
		return nil, err
	}

	box := core.BoundingBox(lat, lon, radius)
	activeSince := o.now().Add(-o.idleThreshold())
	var candidates []domain.Session
	if err := o.storage(ctx, "nearby sessions", func(ctx context.Context) (err error) {
		candidates, err = o.Store.NearbySessions(ctx, box, activeSince)
		return err
	}); err != nil {
		return nil, err
	}

	out := make([]domain.DiscoverableSession, 0, len(candidates))
	for _, s := range candidates {
		if s.Latitude == nil || s.Longitude == nil || s.Status == domain.StatusEnded {
			continue
		}
		d := core.DistanceMeters(lat, lon, *s.Latitude, *s.Longitude)
		if d > radius {
			continue
		}
		participants := o.participants(s.ID)
		out = append(out, domain.DiscoverableSession{
			ID:               s.ID,
			Name:             s.Name,
			BoardPath:        s.BoardPath,
			Latitude:         *s.Latitude,
			Longitude:        *s.Longitude,
			CreatedAt:        s.CreatedAt,
			CreatedBy:        s.CreatedBy,
			ParticipantCount: participants,
			DistanceMeters:   d,
			IsActive:         participants > 0,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DistanceMeters < out[j].DistanceMeters })
	if len(out) > MaxNearbyResults {
		out = out[:MaxNearbyResults]
	}
	return out, nil
}

func (o *Orchestrator) participants(sid domain.SessionID) int {
	if room, ok := o.Rooms.Get(sid); ok && !room.Closed() {
		return room.MemberCount()
	}
	return 0
}

// FindSessionByID is the unauthenticated read behind join links.
func (o *Orchestrator) FindSessionByID(ctx context.Context, sid domain.SessionID) (SessionSummary, error) {
	if err := domain.ValidateSessionID(sid); err != nil {
		return SessionSummary{}, err
	}
	var s domain.Session
	if err := o.storage(ctx, "get session", func(ctx context.Context) (err error) {
		s, err = o.Store.GetSession(ctx, sid)
		return err
	}); err != nil {
		return SessionSummary{}, err
	}
	return SessionSummary{Session: s, ParticipantCount: o.participants(sid)}, nil
}

// CreateSession registers a session ahead of the first join, typically to
// make it discoverable. Only identified users can create sessions.
func (o *Orchestrator) CreateSession(ctx context.Context, userID domain.UserID, req CreateSessionRequest) (domain.Session, error) {
	if userID == "" {
		return domain.Session{}, domain.Unauthorized("sign in to create a session")
	}
	if req.ID == "" {
		req.ID = domain.SessionID(uuid.NewString())
	}
	if err := domain.ValidateSessionID(req.ID); err != nil {
		return domain.Session{}, err
	}
	if err := domain.ValidateSessionName(req.Name); err != nil {
		return domain.Session{}, err
	}
	if len(req.Goal) > domain.MaxGoalLen {
		return domain.Session{}, domain.Validation("goal too long")
	}
	board, err := domain.ParseBoardPath(req.BoardPath)
	if err != nil {
		return domain.Session{}, err
	}
	if (req.Latitude == nil) != (req.Longitude == nil) {
		return domain.Session{}, domain.Validation("latitude and longitude must be set together")
	}
	if req.Latitude != nil {
		if err := domain.ValidateCoordinates(*req.Latitude, *req.Longitude); err != nil {
			return domain.Session{}, err
		}
	} else if req.Discoverable {
		return domain.Session{}, domain.Validation("a discoverable session needs a location")
	}

	err = o.storage(ctx, "get session", func(ctx context.Context) error {
		_, err := o.Store.GetSession(ctx, req.ID)
		return err
	})
	switch {
	case err == nil:
		return domain.Session{}, domain.Validation("session %s already exists", req.ID)
	case domain.KindOf(err) != domain.KindNotFound:
		return domain.Session{}, err
	}

	now := o.now()
	s := domain.Session{
		ID:           req.ID,
		Name:         req.Name,
		Goal:         req.Goal,
		Color:        req.Color,
		BoardPath:    board.String(),
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
		Discoverable: req.Discoverable,
		CreatedBy:    userID,
		Status:       domain.StatusInactive,
		CreatedAt:    now,
		LastActivity: now,
	}
	if err := o.storage(ctx, "create session", func(ctx context.Context) error {
		return o.Store.UpsertSession(ctx, s)
	}); err != nil {
		return domain.Session{}, err
	}
	log.Info().Str("module", "app.orch").Str("session_id", string(s.ID)).Str("user_id", string(userID)).
		Bool("discoverable", s.Discoverable).Msg("session created")
	return s, nil
}

// CleanupExpiredSessions deletes non-permanent sessions idle past the
// threshold and evicts their live rooms.
func (o *Orchestrator) CleanupExpiredSessions(ctx context.Context) (int, error) {
	cutoff := o.now().Add(-o.idleThreshold())
	var ids []domain.SessionID
	if err := o.storage(ctx, "delete expired sessions", func(ctx context.Context) (err error) {
		ids, err = o.Store.DeleteExpiredSessions(ctx, cutoff)
		return err
	}); err != nil {
		return 0, err
	}
	for _, sid := range ids {
		if room, ok := o.acquireExisting(sid); ok {
			o.closeRoom(room, "expired")
			room.Unlock()
		} else {
			o.Log.Drop(sid)
		}
	}
	if len(ids) > 0 {
		log.Info().Str("module", "app.orch").Int("removed", len(ids)).Time("cutoff", cutoff).Msg("expired sessions removed")
	}
	return len(ids), nil
}
