package orch

import (
	"context"

	"github.com/dkeye/seshd/internal/catalog"
	"github.com/dkeye/seshd/internal/core"
	"github.com/dkeye/seshd/internal/domain"
	"github.com/dkeye/seshd/internal/notify"
	"github.com/dkeye/seshd/internal/store"
	"github.com/rs/zerolog/log"
)

// JoinSession attaches the client to req.SessionID, creating the session on
// first use, and returns a snapshot of it.
func (o *Orchestrator) JoinSession(ctx context.Context, clientID domain.ClientID, req JoinRequest) (JoinResult, error) {
	sid := req.SessionID
	if err := domain.ValidateSessionID(sid); err != nil {
		return JoinResult{}, err
	}
	if err := domain.ValidateSessionName(req.SessionName); err != nil {
		return JoinResult{}, err
	}
	if req.Username != "" {
		if err := domain.ValidateUsername(req.Username); err != nil {
			return JoinResult{}, err
		}
	}
	var board *domain.BoardPath
	if req.BoardPath != "" {
		bp, err := domain.ParseBoardPath(req.BoardPath)
		if err != nil {
			return JoinResult{}, err
		}
		board = &bp
	}
	initial, err := o.initialState(ctx, req)
	if err != nil {
		return JoinResult{}, err
	}
	if _, ok := o.Registry.Client(clientID); !ok {
		return JoinResult{}, domain.NotFound("client %s not registered", clientID)
	}

	res := JoinResult{ClientID: clientID, SessionID: sid}
	prev := o.Registry.SessionOf(clientID)
	switching := prev != "" && prev != sid

	// Both rooms stay locked until the switch is done so a failed join
	// leaves the client where it was.
	var room, old *core.Room
	if switching {
		room, old = o.acquirePair(sid, prev)
		if old != nil {
			defer old.Unlock()
		}
	} else {
		room = o.acquire(sid)
	}
	defer room.Unlock()
	// A join that fails on a room nobody is in must not leave it behind.
	joined := false
	defer func() {
		if !joined && room.MemberCount() == 0 {
			o.Rooms.Stop(sid)
			o.Log.Drop(sid)
		}
	}()

	client, ok := o.Registry.Client(clientID)
	if !ok {
		return JoinResult{}, domain.NotFound("client %s not registered", clientID)
	}
	if req.Username != "" {
		client.Username = req.Username
	}

	if err := o.ensureLoaded(ctx, room, board, req.SessionName, client, initial); err != nil {
		return JoinResult{}, err
	}
	session := room.Session()
	if session.Status == domain.StatusEnded {
		return JoinResult{}, domain.JoinFailed("session %s has ended", sid)
	}
	if board != nil && !sameBoard(session.BoardPath, *board) {
		return JoinResult{}, domain.JoinFailed("session %s is for board %s", sid, session.BoardPath)
	}

	rejoin := room.HasMember(clientID)
	leader := room.Leader()
	isLeader := leader == "" || leader == clientID
	now := o.now()
	// The client row is keyed by client id, so this also moves it out of prev.
	err = o.storage(ctx, "join session", func(ctx context.Context) error {
		if err := o.Store.UpsertClient(ctx, store.ClientRecord{
			ClientID:    client.ID,
			SessionID:   sid,
			UserID:      client.UserID,
			Username:    client.Username,
			IsLeader:    isLeader,
			ConnectedAt: client.ConnectedAt,
		}); err != nil {
			return err
		}
		return o.Store.TouchSession(ctx, sid, domain.StatusActive, now)
	})
	if err != nil {
		return JoinResult{}, err
	}

	if switching {
		var left *LeaveResult
		if old != nil {
			left = o.detachLocked(ctx, old, clientID, false)
		} else {
			o.Registry.ClearSession(clientID, prev)
			left = &LeaveResult{SessionID: prev}
		}
		res.SessionSwitched = true
		res.PreviousSessionClients = left.Remaining
		log.Info().Str("module", "app.orch").Str("client_id", string(clientID)).
			Str("from", string(prev)).Str("to", string(sid)).Msg("switched session")
	}
	if req.Username != "" {
		if client, err = o.Registry.Rename(clientID, req.Username); err != nil {
			return JoinResult{}, err
		}
	}

	room.AddMember(client)
	o.Registry.SetSession(clientID, sid)
	session.Status = domain.StatusActive
	session.LastActivity = now
	room.SetSession(session)

	if !rejoin {
		user, _ := room.User(clientID)
		o.publish(sid, o.membership(sid, domain.Membership{Kind: domain.UserJoined, User: &user}))
		if session.CreatedBy != "" && session.CreatedBy != client.UserID {
			o.notify(notify.Notification{
				Kind:        notify.SessionJoined,
				SessionID:   sid,
				RecipientID: string(session.CreatedBy),
				ActorID:     recipient(client),
				Message:     client.Username + " joined " + displayName(session),
			})
		}
	}

	state := room.State()
	res.Users = room.MembersSnapshot()
	res.Queue = state.Queue
	res.CurrentItem = state.CurrentItem
	res.Sequence = state.Sequence
	res.StateHash = state.StateHash
	res.IsLeader = room.Leader() == clientID
	log.Info().Str("module", "app.orch").Str("client_id", string(clientID)).Str("session_id", string(sid)).
		Bool("leader", res.IsLeader).Bool("rejoin", rejoin).Msg("joined session")
	joined = true
	return res, nil
}

// initialState validates and enriches the queue a creating join brings.
func (o *Orchestrator) initialState(ctx context.Context, req JoinRequest) (*domain.QueueState, error) {
	if len(req.InitialQueue) == 0 && req.InitialCurrent == nil {
		return nil, nil
	}
	if err := domain.ValidateQueue(req.InitialQueue, req.InitialCurrent); err != nil {
		return nil, err
	}
	state := domain.QueueState{Queue: req.InitialQueue, CurrentItem: req.InitialCurrent}.Clone()
	o.enrich(ctx, state.Queue, state.CurrentItem)
	state.StateHash = core.StateHash(state.ItemIDs(), state.CurrentID())
	return &state, nil
}

// ensureLoaded fills a fresh room from the store, creating the session when
// the store has never seen it. Must be called inside the room's write scope.
func (o *Orchestrator) ensureLoaded(
	ctx context.Context,
	room *core.Room,
	board *domain.BoardPath,
	name string,
	creator domain.Client,
	initial *domain.QueueState,
) error {
	if room.Loaded() {
		return nil
	}
	sid := room.ID()

	var session domain.Session
	err := o.storage(ctx, "get session", func(ctx context.Context) (err error) {
		session, err = o.Store.GetSession(ctx, sid)
		return err
	})
	switch {
	case err == nil:
		var state domain.QueueState
		if err := o.storage(ctx, "read queue", func(ctx context.Context) (err error) {
			state, err = o.Store.ReadQueue(ctx, sid)
			return err
		}); err != nil {
			return err
		}
		room.Load(session, state)
		if o.Log.LastSequence(sid) != state.Sequence {
			o.Log.Seed(sid, state.Sequence)
		}
		return nil

	case domain.KindOf(err) == domain.KindNotFound:
		if board == nil {
			return domain.Validation("board path is required to create session %s", sid)
		}
		now := o.now()
		session = domain.Session{
			ID:           sid,
			Name:         name,
			BoardPath:    board.String(),
			CreatedBy:    creator.UserID,
			Status:       domain.StatusActive,
			CreatedAt:    now,
			LastActivity: now,
		}
		state := domain.QueueState{Queue: []domain.QueueItem{}, StateHash: core.StateHash(nil, nil)}
		if initial != nil {
			state = *initial
		}
		if err := o.storage(ctx, "create session", func(ctx context.Context) error {
			if err := o.Store.UpsertSession(ctx, session); err != nil {
				return err
			}
			if initial == nil {
				return nil
			}
			return o.Store.ReplaceQueue(ctx, sid, state, 0)
		}); err != nil {
			return err
		}
		room.Load(session, state)
		o.Log.Seed(sid, state.Sequence)
		log.Info().Str("module", "app.orch").Str("session_id", string(sid)).Str("board", session.BoardPath).Msg("session created")
		return nil

	default:
		return err
	}
}

func sameBoard(stored string, requested domain.BoardPath) bool {
	bp, err := domain.ParseBoardPath(stored)
	if err != nil {
		return stored == requested.String()
	}
	return bp.String() == requested.String()
}

func displayName(s domain.Session) string {
	if s.Name != "" {
		return s.Name
	}
	return string(s.ID)
}

// LeaveSession detaches the client from its session. It returns nil when the
// client is in no session.
func (o *Orchestrator) LeaveSession(ctx context.Context, clientID domain.ClientID) (*LeaveResult, error) {
	sid := o.Registry.SessionOf(clientID)
	if sid == "" {
		return nil, nil
	}
	return o.detach(ctx, clientID, sid)
}

// detach removes the client from sid, electing a new leader when needed.
// The in-memory change always happens; storage failures are only logged.
func (o *Orchestrator) detach(ctx context.Context, clientID domain.ClientID, sid domain.SessionID) (*LeaveResult, error) {
	room, ok := o.acquireExisting(sid)
	if !ok {
		o.Registry.ClearSession(clientID, sid)
		o.bestEffort(ctx, "delete client", sid, func(ctx context.Context) error {
			return o.Store.DeleteClient(ctx, clientID)
		})
		return &LeaveResult{SessionID: sid}, nil
	}
	defer room.Unlock()
	return o.detachLocked(ctx, room, clientID, true), nil
}

// detachLocked is detach inside the room's write scope. deleteRecord is
// false when the client row has already moved to another session.
func (o *Orchestrator) detachLocked(ctx context.Context, room *core.Room, clientID domain.ClientID, deleteRecord bool) *LeaveResult {
	sid := room.ID()
	res := &LeaveResult{SessionID: sid}
	user, _ := room.User(clientID)
	removed, newLeader := room.RemoveMember(clientID)
	o.Registry.ClearSession(clientID, sid)
	res.NewLeaderID = newLeader
	res.Remaining = room.MemberIDs()
	if !removed {
		return res
	}

	o.publish(sid, o.membership(sid, domain.Membership{Kind: domain.UserLeft, User: &user}))
	var leaderClient domain.Client
	if newLeader != "" {
		leaderUser, _ := room.User(newLeader)
		o.publish(sid, o.membership(sid, domain.Membership{
			Kind: domain.LeaderChanged, User: &leaderUser, LeaderID: newLeader,
		}))
		if c, ok := o.Registry.Client(newLeader); ok {
			leaderClient = c
			o.notify(notify.Notification{
				Kind:        notify.LeaderPromoted,
				SessionID:   sid,
				RecipientID: recipient(c),
				ActorID:     string(clientID),
				Message:     "you are now the leader of " + displayName(room.Session()),
			})
		}
	}

	status := domain.StatusActive
	if room.MemberCount() == 0 {
		status = domain.StatusInactive
	}
	now := o.now()
	o.bestEffort(ctx, "leave session", sid, func(ctx context.Context) error {
		if deleteRecord {
			if err := o.Store.DeleteClient(ctx, clientID); err != nil {
				return err
			}
		}
		if leaderClient.ID != "" {
			if err := o.Store.UpsertClient(ctx, store.ClientRecord{
				ClientID:    leaderClient.ID,
				SessionID:   sid,
				UserID:      leaderClient.UserID,
				Username:    leaderClient.Username,
				IsLeader:    true,
				ConnectedAt: leaderClient.ConnectedAt,
			}); err != nil {
				return err
			}
		}
		return o.Store.TouchSession(ctx, sid, status, now)
	})

	session := room.Session()
	session.Status = status
	session.LastActivity = now
	room.SetSession(session)
	if status == domain.StatusInactive {
		o.Rooms.Stop(sid)
		o.Log.Drop(sid)
	}
	log.Info().Str("module", "app.orch").Str("client_id", string(clientID)).Str("session_id", string(sid)).
		Str("new_leader", string(newLeader)).Int("remaining", len(res.Remaining)).Msg("left session")
	return res
}

// UpdateUsername renames the client and tells its session.
func (o *Orchestrator) UpdateUsername(ctx context.Context, clientID domain.ClientID, username string) (domain.Client, error) {
	if err := domain.ValidateUsername(username); err != nil {
		return domain.Client{}, err
	}
	client, err := o.Registry.Rename(clientID, username)
	if err != nil {
		return domain.Client{}, err
	}
	sid := o.Registry.SessionOf(clientID)
	if sid == "" {
		return client, nil
	}
	room, ok := o.acquireExisting(sid)
	if !ok {
		return client, nil
	}
	defer room.Unlock()

	user, ok := room.RenameMember(clientID, username)
	if !ok {
		return client, nil
	}
	o.publish(sid, o.membership(sid, domain.Membership{Kind: domain.UserUpdated, User: &user}))
	o.bestEffort(ctx, "rename client", sid, func(ctx context.Context) error {
		return o.Store.UpsertClient(ctx, store.ClientRecord{
			ClientID:    client.ID,
			SessionID:   sid,
			UserID:      client.UserID,
			Username:    username,
			IsLeader:    user.IsLeader,
			ConnectedAt: client.ConnectedAt,
		})
	})
	return client, nil
}

// EndSession closes sid for good. Only the leader or the creator may end it.
func (o *Orchestrator) EndSession(ctx context.Context, clientID domain.ClientID, sid domain.SessionID) error {
	if err := domain.ValidateSessionID(sid); err != nil {
		return err
	}
	client, ok := o.Registry.Client(clientID)
	if !ok || o.Registry.SessionOf(clientID) != sid {
		return o.denied(clientID, sid, "end session")
	}
	room, ok := o.acquireExisting(sid)
	if !ok {
		return o.denied(clientID, sid, "end session")
	}
	defer room.Unlock()

	if !room.HasMember(clientID) {
		return o.denied(clientID, sid, "end session")
	}
	session := room.Session()
	isCreator := client.UserID != "" && client.UserID == session.CreatedBy
	if room.Leader() != clientID && !isCreator {
		return domain.Unauthorized("only the leader or the creator can end session %s", sid)
	}

	now := o.now()
	if err := o.storage(ctx, "end session", func(ctx context.Context) error {
		return o.Store.EndSession(ctx, sid, now)
	}); err != nil {
		return err
	}
	session.Status = domain.StatusEnded
	session.EndedAt = &now
	room.SetSession(session)
	o.closeRoom(room, "ended")
	log.Info().Str("module", "app.orch").Str("client_id", string(clientID)).Str("session_id", string(sid)).Msg("session ended")
	return nil
}

// closeRoom tells every member the session is over, detaches them and
// forgets the room. Must be called inside the room's write scope.
func (o *Orchestrator) closeRoom(room *core.Room, reason string) {
	sid := room.ID()
	o.publish(sid, o.membership(sid, domain.Membership{Kind: domain.SessionEnded, Reason: reason}))
	for _, id := range room.RemoveAll() {
		o.Registry.ClearSession(id, sid)
	}
	o.Rooms.Stop(sid)
	o.Log.Drop(sid)
}

func (o *Orchestrator) enrich(ctx context.Context, queue []domain.QueueItem, current *domain.QueueItem) {
	if o.Catalog == nil {
		return
	}
	ids := make([]string, 0, len(queue)+1)
	for _, it := range queue {
		ids = append(ids, it.Climb.UUID)
	}
	if current != nil {
		ids = append(ids, current.Climb.UUID)
	}
	if len(ids) == 0 {
		return
	}
	timeout := o.CatalogTimeout
	if timeout <= 0 {
		timeout = DefaultCatalogTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	found, err := o.Catalog.Climbs(ctx, ids)
	if err != nil {
		log.Warn().Err(err).Str("module", "app.orch").Msg("catalog lookup failed, queue left as sent")
		return
	}
	catalog.Enrich(queue, found)
	catalog.EnrichItem(current, found)
}
