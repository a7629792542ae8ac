package orch

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/dkeye/seshd/internal/core"
	"github.com/dkeye/seshd/internal/domain"
	"github.com/stretchr/testify/require"
)

func Test_Subscribe_Starts_With_FullSync(t *testing.T) {
	ctx := context.Background()
	o, _, clk := newTestOrchestrator(t)
	a := connect(t, o, clk, "")
	join(t, o, a, testSession)
	_, err := o.MutateQueue(ctx, a, testSession, mutation(item("c1")))
	require.NoError(t, err)

	rec := &recorder{}
	unsub, err := o.SubscribeQueue(ctx, a, testSession, rec.send)
	require.NoError(t, err)
	defer unsub()

	events := rec.all()
	require.Len(t, events, 1)
	full, ok := events[0].Payload.(domain.FullSync)
	require.True(t, ok)
	require.Equal(t, uint64(1), events[0].Sequence)
	require.Len(t, full.State.Queue, 1)
}

func Test_Subscribe_Requires_Membership(t *testing.T) {
	o, _, clk := newTestOrchestrator(t)
	join(t, o, connect(t, o, clk, ""), testSession)

	_, err := o.SubscribeQueue(context.Background(), connect(t, o, clk, ""), testSession, (&recorder{}).send)

	require.ErrorIs(t, err, domain.ErrUnauthorized)
	require.Zero(t, o.Hub.SubscriberCount(testSession))
}

func Test_Unsubscribe_Stops_Delivery(t *testing.T) {
	ctx := context.Background()
	o, _, clk := newTestOrchestrator(t)
	a := connect(t, o, clk, "")
	join(t, o, a, testSession)
	rec := &recorder{}
	unsub, err := o.SubscribeQueue(ctx, a, testSession, rec.send)
	require.NoError(t, err)

	unsub()
	unsub()
	_, err = o.MutateQueue(ctx, a, testSession, mutation(item("c1")))

	require.NoError(t, err)
	require.Len(t, rec.all(), 1)
}

func Test_Subscribe_Races_With_Mutations_Without_Gaps_Or_Duplicates(t *testing.T) {
	const trials, mutations = 100, 20

	for trial := 0; trial < trials; trial++ {
		// Arrange
		ctx := context.Background()
		o, _, clk := newTestOrchestrator(t)
		writer := connect(t, o, clk, "")
		reader := connect(t, o, clk, "")
		join(t, o, writer, testSession)
		join(t, o, reader, testSession)

		// Act
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < mutations; i++ {
				if _, err := o.MutateQueue(ctx, writer, testSession, mutation(item("c"))); err != nil {
					t.Error(err)
				}
			}
		}()
		rec := &recorder{}
		unsub, err := o.SubscribeQueue(ctx, reader, testSession, rec.send)
		require.NoError(t, err)
		wg.Wait()
		unsub()

		// Assert
		var sequenced []domain.Event
		for _, ev := range rec.all() {
			if _, ok := ev.Payload.(domain.Membership); !ok {
				sequenced = append(sequenced, ev)
			}
		}
		require.NotEmpty(t, sequenced)
		require.IsType(t, domain.FullSync{}, sequenced[0].Payload, "trial %d", trial)
		for i := 1; i < len(sequenced); i++ {
			require.IsType(t, domain.Delta{}, sequenced[i].Payload, "trial %d", trial)
			require.Equal(t, sequenced[i-1].Sequence+1, sequenced[i].Sequence, "trial %d", trial)
		}
		require.Equal(t, uint64(mutations), sequenced[len(sequenced)-1].Sequence, "trial %d", trial)
	}
}

func Test_Slow_Subscriber_Is_Kicked(t *testing.T) {
	// Arrange
	ctx := context.Background()
	o, _, clk := newTestOrchestrator(t)
	a := connect(t, o, clk, "")
	join(t, o, a, testSession)

	var canceled atomic.Bool
	slow := o.RegisterClient(nopConn{}, "", func() { canceled.Store(true) })
	join(t, o, slow.ID, testSession)
	rec := &recorder{}
	unsub, err := o.SubscribeQueue(ctx, slow.ID, testSession, rec.send)
	require.NoError(t, err)
	defer unsub()
	rec.mu.Lock()
	rec.err = core.ErrBackpressure
	rec.mu.Unlock()

	// Act
	_, err = o.MutateQueue(ctx, a, testSession, mutation(item("c1")))

	// Assert
	require.NoError(t, err)
	require.True(t, canceled.Load())
}
