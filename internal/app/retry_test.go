package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dkeye/seshd/internal/domain"
	"github.com/stretchr/testify/require"
)

var errFlaky = errors.New("flaky")

func Test_Retrier_Retries_Transient_Until_Success(t *testing.T) {
	// Arrange
	r := Retrier{Attempts: 3, Backoff: time.Millisecond}
	calls := 0

	// Act
	err := r.Do(context.Background(), "op", func(context.Context) error {
		calls++
		if calls < 3 {
			return domain.TransientStorage(errFlaky)
		}
		return nil
	})

	// Assert
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func Test_Retrier_Exhausted_Is_Unavailable(t *testing.T) {
	r := Retrier{Attempts: 2, Backoff: time.Millisecond}
	calls := 0

	err := r.Do(context.Background(), "op", func(context.Context) error {
		calls++
		return domain.TransientStorage(errFlaky)
	})

	require.Equal(t, 2, calls)
	require.ErrorIs(t, err, domain.ErrUnavailable)
	require.ErrorIs(t, err, errFlaky)
}

func Test_Retrier_Does_Not_Retry_Other_Errors(t *testing.T) {
	r := Retrier{Attempts: 5, Backoff: time.Millisecond}
	calls := 0

	err := r.Do(context.Background(), "op", func(context.Context) error {
		calls++
		return domain.NotFound("nope")
	})

	require.Equal(t, 1, calls)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func Test_Retrier_Stops_On_Canceled_Context(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := Retrier{Attempts: 5, Backoff: time.Hour}

	err := r.Do(ctx, "op", func(context.Context) error {
		cancel()
		return domain.TransientStorage(errFlaky)
	})

	require.ErrorIs(t, err, domain.ErrUnavailable)
	require.ErrorIs(t, err, context.Canceled)
}

func Test_WithRetry_Returns_Value(t *testing.T) {
	calls := 0

	v, err := WithRetry(context.Background(), Retrier{Attempts: 2, Backoff: time.Millisecond}, "op",
		func(context.Context) (int, error) {
			calls++
			if calls == 1 {
				return 0, domain.TransientStorage(errFlaky)
			}
			return 42, nil
		})

	require.NoError(t, err)
	require.Equal(t, 42, v)
}

func Test_NewRetrier_Defaults(t *testing.T) {
	r := NewRetrier(0)

	require.Equal(t, DefaultRetries, r.Attempts)
	require.Equal(t, DefaultRetryBackoff, r.Backoff)
}
