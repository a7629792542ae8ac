package app

import (
	"sync"

	"github.com/dkeye/seshd/internal/core"
	"github.com/dkeye/seshd/internal/domain"
)

type RoomInfo struct {
	ID          domain.SessionID
	MemberCount int
}

// RoomManager owns the live rooms, one per session.
type RoomManager struct {
	mu    sync.RWMutex
	rooms map[domain.SessionID]*core.Room
}

func NewRoomManager() *RoomManager {
	return &RoomManager{rooms: make(map[domain.SessionID]*core.Room)}
}

func (m *RoomManager) GetOrCreate(id domain.SessionID) *core.Room {
	m.mu.RLock()
	room, ok := m.rooms[id]
	m.mu.RUnlock()
	if ok {
		return room
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if room, ok = m.rooms[id]; ok {
		return room
	}
	room = core.NewRoom(id)
	m.rooms[id] = room
	return room
}

func (m *RoomManager) Get(id domain.SessionID) (*core.Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[id]
	return room, ok
}

// Stop forgets the room and marks it closed so holders re-fetch.
func (m *RoomManager) Stop(id domain.SessionID) {
	m.mu.Lock()
	room, ok := m.rooms[id]
	delete(m.rooms, id)
	m.mu.Unlock()
	if ok {
		room.Close()
	}
}

func (m *RoomManager) List() []RoomInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]RoomInfo, 0, len(m.rooms))
	for id, r := range m.rooms {
		out = append(out, RoomInfo{ID: id, MemberCount: r.MemberCount()})
	}
	return out
}

func (m *RoomManager) Reset() {
	m.mu.Lock()
	rooms := m.rooms
	m.rooms = make(map[domain.SessionID]*core.Room)
	m.mu.Unlock()
	for _, r := range rooms {
		r.Close()
	}
}
