package app

import (
	"context"
	"sync"

	"github.com/dkeye/seshd/internal/core"
	"github.com/dkeye/seshd/internal/domain"
	"github.com/rs/zerolog/log"
)

type clientEntry struct {
	Client    domain.Client
	Signal    core.SignalConnection
	Cancel    context.CancelFunc
	SessionID domain.SessionID
}

// Registry tracks every live connection and the session it is attached to.
type Registry struct {
	mu      sync.RWMutex
	clients map[domain.ClientID]*clientEntry
}

func NewRegistry() *Registry {
	return &Registry{clients: make(map[domain.ClientID]*clientEntry)}
}

func (r *Registry) Register(c domain.Client, sig core.SignalConnection, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c.ID] = &clientEntry{Client: c, Signal: sig, Cancel: cancel}
	log.Info().Str("module", "app.registry").Str("client_id", string(c.ID)).Msg("registered client")
}

func (r *Registry) Client(id domain.ClientID) (domain.Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.clients[id]; ok {
		return e.Client, true
	}
	return domain.Client{}, false
}

func (r *Registry) Signal(id domain.ClientID) (core.SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.clients[id]
	if !ok || e.Signal == nil {
		return nil, false
	}
	return e.Signal, true
}

// SessionOf returns the session id is attached to; empty when none.
func (r *Registry) SessionOf(id domain.ClientID) domain.SessionID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.clients[id]; ok {
		return e.SessionID
	}
	return ""
}

func (r *Registry) SetSession(id domain.ClientID, sid domain.SessionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.clients[id]
	if !ok {
		return false
	}
	e.SessionID = sid
	log.Info().Str("module", "app.registry").Str("client_id", string(id)).Str("session_id", string(sid)).Msg("attached to session")
	return true
}

// ClearSession detaches id only if it is still attached to sid.
func (r *Registry) ClearSession(id domain.ClientID, sid domain.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.clients[id]; ok && e.SessionID == sid {
		e.SessionID = ""
	}
}

func (r *Registry) Rename(id domain.ClientID, username string) (domain.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.clients[id]
	if !ok {
		return domain.Client{}, domain.NotFound("client %s not registered", id)
	}
	if err := e.Client.SetUsername(username); err != nil {
		return domain.Client{}, err
	}
	log.Info().Str("module", "app.registry").Str("client_id", string(id)).Str("username", username).Msg("updated username")
	return e.Client, nil
}

func (r *Registry) Unregister(id domain.ClientID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, id)
	log.Info().Str("module", "app.registry").Str("client_id", string(id)).Msg("unregistered client")
}

// MembersOf lists the clients attached to sid.
func (r *Registry) MembersOf(sid domain.SessionID) []domain.ClientID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.ClientID
	for id, e := range r.clients {
		if e.SessionID == sid {
			out = append(out, id)
		}
	}
	return out
}

// Cancel stops the connection's pumps; the adapter then disconnects it.
func (r *Registry) Cancel(id domain.ClientID) bool {
	r.mu.RLock()
	e, ok := r.clients[id]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("client_id", string(id)).Msg("canceled client")
	return true
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients = make(map[domain.ClientID]*clientEntry)
}
