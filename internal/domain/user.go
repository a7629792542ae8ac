// Package domain contains entities and validation, without transport or storage logic.
package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	MaxUserIDLen   = 100
	MaxUsernameLen = 50
)

var (
	ErrUsernameTooLong = Validation("username too long")
	ErrUsernameEmpty   = Validation("username cannot be empty")
)

type (
	ClientID string
	UserID   string
)

// Client is one live connection. UserID is empty for anonymous clients.
type Client struct {
	ID          ClientID  `json:"id"`
	UserID      UserID    `json:"userId,omitempty"`
	Username    string    `json:"username"`
	ConnectedAt time.Time `json:"connectedAt"`
}

// NewClient is a tiny helper to avoid ad-hoc struct literals in adapters.
func NewClient(userID UserID, connectedAt time.Time) *Client {
	id := ClientID(uuid.NewString())
	return &Client{
		ID:          id,
		UserID:      userID,
		Username:    DefaultUsername(id),
		ConnectedAt: connectedAt,
	}
}

func DefaultUsername(id ClientID) string {
	s := string(id)
	if len(s) > 6 {
		s = s[:6]
	}
	return "User-" + s
}

func ValidateUsername(username string) error {
	if len(username) == 0 {
		return ErrUsernameEmpty
	}
	if len(username) > MaxUsernameLen {
		return ErrUsernameTooLong
	}
	return nil
}

func (c *Client) SetUsername(username string) error {
	if err := ValidateUsername(username); err != nil {
		return err
	}
	c.Username = username
	return nil
}

func ValidateUserID(id UserID) error {
	if len(id) > MaxUserIDLen {
		return Validation("user id too long")
	}
	return nil
}
