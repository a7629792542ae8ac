package core

import (
	"sort"
	"sync"

	"github.com/dkeye/seshd/internal/domain"
	"github.com/rs/zerolog/log"
)

type roomMember struct {
	client domain.Client
	order  uint64
}

// Room is the live, in-memory state of one session.
//
// Writers (join, leave, mutate, end) hold Lock for the whole operation so they
// never interleave. The committed fields are additionally guarded by mu, so
// readers get a consistent snapshot without waiting for a writer's I/O.
type Room struct {
	op sync.Mutex

	mu      sync.RWMutex
	id      domain.SessionID
	session domain.Session
	loaded  bool
	closed  bool
	members []roomMember // oldest connection first
	joins   uint64
	leader  domain.ClientID
	state   domain.QueueState
}

func NewRoom(id domain.SessionID) *Room {
	return &Room{id: id}
}

// Lock enters the room's write scope.
func (r *Room) Lock()   { r.op.Lock() }
func (r *Room) Unlock() { r.op.Unlock() }

func (r *Room) ID() domain.SessionID { return r.id }

func (r *Room) Loaded() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loaded
}

// Load installs the durable session and its committed queue.
func (r *Room) Load(s domain.Session, state domain.QueueState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.session = s
	r.state = state.Clone()
	r.loaded = true
}

// Closed reports whether the room was evicted; a closed room must be
// re-fetched from the room manager.
func (r *Room) Closed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.closed
}

func (r *Room) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
}

func (r *Room) Session() domain.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.session
}

func (r *Room) SetSession(s domain.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.session = s
}

func (r *Room) State() domain.QueueState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.Clone()
}

func (r *Room) SetState(s domain.QueueState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = s.Clone()
}

func (r *Room) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

func (r *Room) HasMember(id domain.ClientID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.indexOf(id) >= 0
}

func (r *Room) Leader() domain.ClientID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.leader
}

// AddMember attaches c (or refreshes it when already present) and makes it
// leader when the room has none.
func (r *Room) AddMember(c domain.Client) (isLeader bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if i := r.indexOf(c.ID); i >= 0 {
		r.members[i].client = c
	} else {
		r.joins++
		r.members = append(r.members, roomMember{client: c, order: r.joins})
		sort.SliceStable(r.members, func(i, j int) bool {
			a, b := r.members[i], r.members[j]
			if !a.client.ConnectedAt.Equal(b.client.ConnectedAt) {
				return a.client.ConnectedAt.Before(b.client.ConnectedAt)
			}
			return a.order < b.order
		})
	}
	if r.leader == "" {
		r.leader = c.ID
	}
	log.Info().Str("module", "core.room").Str("session_id", string(r.id)).
		Str("client_id", string(c.ID)).Bool("leader", r.leader == c.ID).Msg("member added")
	return r.leader == c.ID
}

// RemoveMember detaches id. When id was the leader, the oldest remaining
// connection is promoted; newLeader is empty if nobody is left or the
// leadership did not change.
func (r *Room) RemoveMember(id domain.ClientID) (removed bool, newLeader domain.ClientID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return false, ""
	}
	r.members = append(r.members[:i], r.members[i+1:]...)
	log.Info().Str("module", "core.room").Str("session_id", string(r.id)).
		Str("client_id", string(id)).Msg("member removed")

	if r.leader != id {
		return true, ""
	}
	r.leader = ""
	if len(r.members) == 0 {
		return true, ""
	}
	r.leader = r.members[0].client.ID
	return true, r.leader
}

// RemoveAll detaches every member and returns their ids.
func (r *Room) RemoveAll() []domain.ClientID {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.ClientID, len(r.members))
	for i, m := range r.members {
		out[i] = m.client.ID
	}
	r.members = nil
	r.leader = ""
	return out
}

func (r *Room) RenameMember(id domain.ClientID, username string) (domain.SessionUser, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexOf(id)
	if i < 0 {
		return domain.SessionUser{}, false
	}
	r.members[i].client.Username = username
	return r.userOf(r.members[i].client), true
}

func (r *Room) MembersSnapshot() []domain.SessionUser {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.SessionUser, 0, len(r.members))
	for _, m := range r.members {
		out = append(out, r.userOf(m.client))
	}
	return out
}

func (r *Room) MemberIDs() []domain.ClientID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.ClientID, len(r.members))
	for i, m := range r.members {
		out[i] = m.client.ID
	}
	return out
}

func (r *Room) User(id domain.ClientID) (domain.SessionUser, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i := r.indexOf(id)
	if i < 0 {
		return domain.SessionUser{}, false
	}
	return r.userOf(r.members[i].client), true
}

func (r *Room) userOf(c domain.Client) domain.SessionUser {
	return domain.SessionUser{ID: c.ID, Username: c.Username, IsLeader: c.ID == r.leader}
}

func (r *Room) indexOf(id domain.ClientID) int {
	for i, m := range r.members {
		if m.client.ID == id {
			return i
		}
	}
	return -1
}
