package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

type EventType string

const (
	EventFullSync   EventType = "FullSync"
	EventDelta      EventType = "Delta"
	EventMembership EventType = "Membership"
)

// Payload is implemented only by FullSync, Delta and Membership.
type Payload interface {
	Type() EventType
	sealed()
}

// FullSync carries a complete snapshot; it starts every subscription stream.
type FullSync struct {
	State QueueState `json:"state"`
}

// Delta is one committed queue replacement.
type Delta struct {
	Queue         []QueueItem `json:"queue"`
	CurrentItem   *QueueItem  `json:"currentClimbQueueItem"`
	StateHash     string      `json:"stateHash"`
	ClientID      ClientID    `json:"clientId,omitempty"`
	CorrelationID string      `json:"correlationId,omitempty"`
}

type MembershipKind string

const (
	UserJoined    MembershipKind = "user_joined"
	UserLeft      MembershipKind = "user_left"
	UserUpdated   MembershipKind = "user_updated"
	LeaderChanged MembershipKind = "leader_changed"
	SessionEnded  MembershipKind = "session_ended"
)

// Membership events are not sequenced and are never stored in the event log.
type Membership struct {
	Kind     MembershipKind `json:"kind"`
	User     *SessionUser   `json:"user,omitempty"`
	LeaderID ClientID       `json:"leaderId,omitempty"`
	Reason   string         `json:"reason,omitempty"`
}

func (FullSync) Type() EventType   { return EventFullSync }
func (Delta) Type() EventType      { return EventDelta }
func (Membership) Type() EventType { return EventMembership }

func (FullSync) sealed()   {}
func (Delta) sealed()      {}
func (Membership) sealed() {}

// Event is immutable once created. Sequence is zero for membership events.
type Event struct {
	SessionID SessionID `json:"sessionId"`
	Sequence  uint64    `json:"sequence"`
	CreatedAt time.Time `json:"createdAt"`
	Payload   Payload   `json:"-"`
}

func (e Event) Sequenced() bool { return e.Sequence > 0 }

func (e Event) MarshalJSON() ([]byte, error) {
	type head struct {
		Type      EventType `json:"type"`
		SessionID SessionID `json:"sessionId"`
		Sequence  uint64    `json:"sequence"`
		CreatedAt int64     `json:"createdAt"`
	}
	h := head{SessionID: e.SessionID, Sequence: e.Sequence, CreatedAt: e.CreatedAt.UnixMilli()}

	switch p := e.Payload.(type) {
	case FullSync:
		h.Type = EventFullSync
		return json.Marshal(struct {
			head
			FullSync
		}{h, p})
	case Delta:
		h.Type = EventDelta
		return json.Marshal(struct {
			head
			Delta
		}{h, p})
	case Membership:
		h.Type = EventMembership
		return json.Marshal(struct {
			head
			Membership
		}{h, p})
	default:
		return nil, fmt.Errorf("event %d: unknown payload %T", e.Sequence, e.Payload)
	}
}

func (e *Event) UnmarshalJSON(data []byte) error {
	var h struct {
		Type      EventType `json:"type"`
		SessionID SessionID `json:"sessionId"`
		Sequence  uint64    `json:"sequence"`
		CreatedAt int64     `json:"createdAt"`
	}
	if err := json.Unmarshal(data, &h); err != nil {
		return err
	}
	e.SessionID = h.SessionID
	e.Sequence = h.Sequence
	e.CreatedAt = time.UnixMilli(h.CreatedAt)

	switch h.Type {
	case EventFullSync:
		var p FullSync
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		e.Payload = p
	case EventDelta:
		var p Delta
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		e.Payload = p
	case EventMembership:
		var p Membership
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		e.Payload = p
	default:
		return fmt.Errorf("unknown event type %q", h.Type)
	}
	return nil
}
