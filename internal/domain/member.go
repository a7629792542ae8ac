package domain

// SessionUser is a read-only view of a session member for APIs.
type SessionUser struct {
	ID       ClientID `json:"id"`
	Username string   `json:"username"`
	IsLeader bool     `json:"isLeader"`
}
