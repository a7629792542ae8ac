package orch

import (
	"github.com/dkeye/seshd/internal/domain"
)

type JoinRequest struct {
	SessionID   domain.SessionID
	BoardPath   string
	Username    string
	SessionName string
	// InitialQueue and InitialCurrent seed a session this join creates and
	// are ignored for existing sessions.
	InitialQueue   []domain.QueueItem
	InitialCurrent *domain.QueueItem
}

type JoinResult struct {
	ClientID    domain.ClientID      `json:"clientId"`
	SessionID   domain.SessionID     `json:"sessionId"`
	Users       []domain.SessionUser `json:"users"`
	Queue       []domain.QueueItem   `json:"queue"`
	CurrentItem *domain.QueueItem    `json:"currentClimbQueueItem"`
	Sequence    uint64               `json:"sequence"`
	StateHash   string               `json:"stateHash"`
	IsLeader    bool                 `json:"isLeader"`
	// SessionSwitched is set when the client left another session to join
	// this one; PreviousSessionClients are the members still in that one.
	SessionSwitched        bool              `json:"sessionSwitched"`
	PreviousSessionClients []domain.ClientID `json:"previousSessionClients,omitempty"`
}

type LeaveResult struct {
	SessionID   domain.SessionID  `json:"sessionId"`
	NewLeaderID domain.ClientID   `json:"newLeaderId,omitempty"`
	Remaining   []domain.ClientID `json:"-"`
}

type ReplayResult struct {
	Events          []domain.Event `json:"events"`
	CurrentSequence uint64         `json:"currentSequence"`
}

type CreateSessionRequest struct {
	ID           domain.SessionID `json:"id,omitempty"`
	Name         string           `json:"name"`
	Goal         string           `json:"goal,omitempty"`
	Color        string           `json:"color,omitempty"`
	BoardPath    string           `json:"boardPath"`
	Latitude     *float64         `json:"latitude,omitempty"`
	Longitude    *float64         `json:"longitude,omitempty"`
	Discoverable bool             `json:"discoverable"`
}

// SessionSummary is the public view of one session for join-via-link.
type SessionSummary struct {
	domain.Session
	ParticipantCount int `json:"participantCount"`
}
