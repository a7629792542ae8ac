package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dkeye/seshd/internal/core"
	"github.com/dkeye/seshd/internal/domain"
)

// Memory is a process-local Store for development and tests.
type Memory struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]domain.Session
	clients  map[domain.ClientID]ClientRecord
	queues   map[domain.SessionID]domain.QueueState
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		sessions: make(map[domain.SessionID]domain.Session),
		clients:  make(map[domain.ClientID]ClientRecord),
		queues:   make(map[domain.SessionID]domain.QueueState),
	}
}

func (m *Memory) UpsertSession(_ context.Context, s domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.sessions[s.ID]; ok {
		s.CreatedAt = old.CreatedAt
	}
	m.sessions[s.ID] = s
	return nil
}

func (m *Memory) GetSession(_ context.Context, id domain.SessionID) (domain.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return domain.Session{}, domain.NotFound("session %s not found", id)
	}
	return s, nil
}

func (m *Memory) TouchSession(_ context.Context, id domain.SessionID, status domain.SessionStatus, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return domain.NotFound("session %s not found", id)
	}
	if s.Status != domain.StatusEnded {
		s.Status = status
	}
	s.LastActivity = at
	m.sessions[id] = s
	return nil
}

func (m *Memory) EndSession(_ context.Context, id domain.SessionID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return domain.NotFound("session %s not found", id)
	}
	s.Status = domain.StatusEnded
	s.EndedAt = &at
	s.LastActivity = at
	m.sessions[id] = s
	for cid, c := range m.clients {
		if c.SessionID == id {
			delete(m.clients, cid)
		}
	}
	return nil
}

func (m *Memory) UpsertClient(_ context.Context, c ClientRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[c.SessionID]; !ok {
		return domain.NotFound("session %s not found", c.SessionID)
	}
	m.clients[c.ClientID] = c
	return nil
}

func (m *Memory) DeleteClient(_ context.Context, id domain.ClientID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.clients, id)
	return nil
}

// Clients returns the stored members of a session, oldest connection first.
func (m *Memory) Clients(id domain.SessionID) []ClientRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ClientRecord
	for _, c := range m.clients {
		if c.SessionID == id {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ConnectedAt.Before(out[j].ConnectedAt) })
	return out
}

func (m *Memory) ReadQueue(_ context.Context, id domain.SessionID) (domain.QueueState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.sessions[id]; !ok {
		return domain.QueueState{}, domain.NotFound("session %s not found", id)
	}
	q, ok := m.queues[id]
	if !ok {
		return emptyQueue(), nil
	}
	return q.Clone(), nil
}

func (m *Memory) ReplaceQueue(_ context.Context, id domain.SessionID, state domain.QueueState, expected uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return domain.NotFound("session %s not found", id)
	}
	cur := m.queues[id].Sequence
	if cur != expected {
		return domain.VersionConflict(id, expected, cur)
	}
	m.queues[id] = state.Clone()
	return nil
}

func (m *Memory) DeleteExpiredSessions(_ context.Context, cutoff time.Time) ([]domain.SessionID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.SessionID
	for id, s := range m.sessions {
		if s.Permanent || !s.LastActivity.Before(cutoff) {
			continue
		}
		delete(m.sessions, id)
		delete(m.queues, id)
		out = append(out, id)
	}
	for cid, c := range m.clients {
		if _, ok := m.sessions[c.SessionID]; !ok {
			delete(m.clients, cid)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (m *Memory) NearbySessions(_ context.Context, box core.Box, activeSince time.Time) ([]domain.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Session
	for _, s := range m.sessions {
		if !s.Discoverable || s.Status == domain.StatusEnded || s.Latitude == nil || s.Longitude == nil {
			continue
		}
		if s.LastActivity.Before(activeSince) {
			continue
		}
		if box.Contains(*s.Latitude, *s.Longitude) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }

func emptyQueue() domain.QueueState {
	return domain.QueueState{
		Queue:     []domain.QueueItem{},
		StateHash: core.StateHash(nil, nil),
	}
}
