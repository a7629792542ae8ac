package core

import (
	"errors"

	"github.com/dkeye/seshd/internal/domain"
)

// Frame is one encoded message for a client.
type Frame []byte

var (
	ErrConnClosed   = errors.New("connection closed")
	ErrBackpressure = errors.New("backpressure")
)

// SignalConnection abstracts the client messaging transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// Subscriber receives events for one session. It must not block; a returned
// error is logged by the hub and reported in PublishResult.
type Subscriber func(domain.Event) error

// PublishResult reports delivery stats to the caller.
type PublishResult struct {
	Delivered int
	Failed    int
}
