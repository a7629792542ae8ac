// Package identity maps bearer tokens to user ids. Anonymous callers have
// no token and an empty user id.
package identity

import (
	"context"
	"crypto/subtle"

	"github.com/dkeye/seshd/internal/domain"
)

// Provider resolves a token to a user. An empty token is anonymous and
// resolves to "" without error.
type Provider interface {
	Resolve(ctx context.Context, token string) (domain.UserID, error)
}

// StaticTokens is a Provider over a fixed token table.
type StaticTokens struct {
	tokens map[string]domain.UserID
}

var _ Provider = (*StaticTokens)(nil)

func NewStaticTokens(tokens map[string]string) *StaticTokens {
	s := &StaticTokens{tokens: make(map[string]domain.UserID, len(tokens))}
	for tok, uid := range tokens {
		s.tokens[tok] = domain.UserID(uid)
	}
	return s
}

func (s *StaticTokens) Resolve(_ context.Context, token string) (domain.UserID, error) {
	if token == "" {
		return "", nil
	}
	for tok, uid := range s.tokens {
		if subtle.ConstantTimeCompare([]byte(tok), []byte(token)) == 1 {
			return uid, domain.ValidateUserID(uid)
		}
	}
	return "", domain.Unauthorized("unknown token")
}
