package app

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type sweeperFunc func(ctx context.Context) (int, error)

func (f sweeperFunc) CleanupExpiredSessions(ctx context.Context) (int, error) { return f(ctx) }

func Test_CleanupScheduler_Skips_Overlapping_Sweeps(t *testing.T) {
	// Arrange
	started := make(chan struct{})
	release := make(chan struct{})
	s := NewCleanupScheduler(sweeperFunc(func(context.Context) (int, error) {
		close(started)
		<-release
		return 2, nil
	}), time.Minute)

	done := make(chan int, 1)
	go func() {
		n, _ := s.RunOnce(context.Background())
		done <- n
	}()
	<-started

	// Act
	_, ran := s.RunOnce(context.Background())
	close(release)

	// Assert
	require.False(t, ran)
	require.Equal(t, 2, <-done)
}

func Test_CleanupScheduler_Runs_Immediately_And_On_Ticks(t *testing.T) {
	// Arrange
	var sweeps atomic.Int32
	s := NewCleanupScheduler(sweeperFunc(func(context.Context) (int, error) {
		sweeps.Add(1)
		return 0, nil
	}), 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)

	// Act
	go func() { errc <- s.Run(ctx) }()

	// Assert
	require.Eventually(t, func() bool { return sweeps.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-errc)
}

func Test_NewCleanupScheduler_Defaults_Interval(t *testing.T) {
	s := NewCleanupScheduler(sweeperFunc(func(context.Context) (int, error) { return 0, nil }), 0)

	require.Equal(t, DefaultCleanupInterval, s.interval)
}
