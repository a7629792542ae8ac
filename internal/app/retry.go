package app

import (
	"context"
	"time"

	"github.com/dkeye/seshd/internal/domain"
	"github.com/rs/zerolog/log"
)

const (
	DefaultRetries      = 3
	DefaultRetryBackoff = 50 * time.Millisecond
	maxRetryBackoff     = 2 * time.Second
)

// Retrier re-runs storage calls that fail with domain.ErrTransientStorage.
type Retrier struct {
	Attempts int
	Backoff  time.Duration
}

func NewRetrier(attempts int) Retrier {
	if attempts <= 0 {
		attempts = DefaultRetries
	}
	return Retrier{Attempts: attempts, Backoff: DefaultRetryBackoff}
}

// Do runs fn until it succeeds, fails with a non-transient error or the
// attempts run out. Exhausted retries surface as domain.ErrUnavailable.
func (r Retrier) Do(ctx context.Context, op string, fn func(context.Context) error) error {
	attempts := r.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	backoff := r.Backoff

	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(ctx); err == nil || domain.KindOf(err) != domain.KindTransientStorage {
			return err
		}
		log.Warn().Err(err).Str("module", "app.retry").Str("op", op).Int("attempt", i+1).Msg("transient storage error")
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return unavailable(op, ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxRetryBackoff {
			backoff = maxRetryBackoff
		}
	}
	return unavailable(op, err)
}

func unavailable(op string, cause error) error {
	log.Error().Err(cause).Str("module", "app.retry").Str("op", op).Msg("storage retries exhausted")
	return &domain.Error{Kind: domain.KindUnavailable, Msg: domain.ErrUnavailable.Msg, Err: cause}
}

// WithRetry is Do for calls that return a value.
func WithRetry[T any](ctx context.Context, r Retrier, op string, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := r.Do(ctx, op, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
