package orch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dkeye/seshd/internal/app"
	"github.com/dkeye/seshd/internal/domain"
	"github.com/dkeye/seshd/internal/store"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newMockOrchestrator(t *testing.T) (*Orchestrator, *store.MockStore) {
	t.Helper()
	ctrl := gomock.NewController(t)
	st := store.NewMockStore(ctrl)
	o := New(st)
	o.Retry = app.Retrier{Attempts: 3, Backoff: time.Millisecond}
	return o, st
}

var errConnReset = errors.New("connection reset by peer")

func Test_Transient_Storage_Errors_Are_Retried(t *testing.T) {
	// Arrange
	o, st := newMockOrchestrator(t)
	gomock.InOrder(
		st.EXPECT().ReadQueue(gomock.Any(), domain.SessionID("cold")).
			Return(domain.QueueState{}, domain.TransientStorage(errConnReset)).Times(2),
		st.EXPECT().ReadQueue(gomock.Any(), domain.SessionID("cold")).
			Return(domain.QueueState{Sequence: 4, StateHash: "abc"}, nil),
	)

	// Act
	state, err := o.GetQueueState(context.Background(), "cold")

	// Assert
	require.NoError(t, err)
	require.Equal(t, uint64(4), state.Sequence)
}

func Test_Exhausted_Retries_Surface_As_Unavailable(t *testing.T) {
	// Arrange
	o, st := newMockOrchestrator(t)
	st.EXPECT().ReadQueue(gomock.Any(), gomock.Any()).
		Return(domain.QueueState{}, domain.TransientStorage(errConnReset)).Times(3)

	// Act
	_, err := o.GetQueueState(context.Background(), "cold")

	// Assert
	require.ErrorIs(t, err, domain.ErrUnavailable)
	code, msg := domain.Public(err)
	require.Equal(t, "unavailable", code)
	require.NotContains(t, msg, "connection reset")
}

func Test_Unexpected_Storage_Errors_Are_Not_Leaked(t *testing.T) {
	o, st := newMockOrchestrator(t)
	st.EXPECT().GetSession(gomock.Any(), gomock.Any()).
		Return(domain.Session{}, errors.New("pq: relation \"sessions\" does not exist")).Times(1)

	_, err := o.FindSessionByID(context.Background(), "sess-1")

	require.Error(t, err)
	code, msg := domain.Public(err)
	require.Equal(t, "internal", code)
	require.Equal(t, "internal error", msg)
}

func Test_Store_Version_Conflict_Is_Not_Retried(t *testing.T) {
	// Arrange
	ctx := context.Background()
	o, st := newMockOrchestrator(t)
	existing := domain.Session{ID: testSession, BoardPath: testBoard, Status: domain.StatusActive}
	st.EXPECT().GetSession(gomock.Any(), testSession).Return(existing, nil)
	stored := domain.QueueState{Queue: []domain.QueueItem{}, Sequence: 1, StateHash: "other"}
	gomock.InOrder(
		st.EXPECT().ReadQueue(gomock.Any(), testSession).Return(domain.QueueState{Queue: []domain.QueueItem{}}, nil),
		st.EXPECT().ReadQueue(gomock.Any(), testSession).Return(stored, nil),
	)
	st.EXPECT().UpsertClient(gomock.Any(), gomock.Any()).Return(nil)
	st.EXPECT().TouchSession(gomock.Any(), testSession, gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	st.EXPECT().ReplaceQueue(gomock.Any(), testSession, gomock.Any(), uint64(0)).
		Return(domain.VersionConflict(testSession, 0, 1)).Times(1)

	c := o.RegisterClient(nopConn{}, "", func() {})
	_, err := o.JoinSession(ctx, c.ID, JoinRequest{SessionID: testSession, BoardPath: testBoard})
	require.NoError(t, err)

	// Act
	_, err = o.MutateQueue(ctx, c.ID, testSession, mutation(item("c1")))

	// Assert
	require.ErrorIs(t, err, domain.ErrVersionConflict)
	state, err := o.GetQueueState(ctx, testSession)
	require.NoError(t, err)
	require.Equal(t, uint64(1), state.Sequence)
	require.Equal(t, "other", state.StateHash)
}

func Test_Join_Storage_Failure_Leaves_No_Membership(t *testing.T) {
	// Arrange
	ctx := context.Background()
	o, st := newMockOrchestrator(t)
	st.EXPECT().GetSession(gomock.Any(), testSession).Return(domain.Session{}, domain.NotFound("missing"))
	st.EXPECT().UpsertSession(gomock.Any(), gomock.Any()).Return(nil)
	st.EXPECT().UpsertClient(gomock.Any(), gomock.Any()).
		Return(domain.TransientStorage(errConnReset)).Times(3)
	c := o.RegisterClient(nopConn{}, "", func() {})

	// Act
	_, err := o.JoinSession(ctx, c.ID, JoinRequest{SessionID: testSession, BoardPath: testBoard})

	// Assert
	require.ErrorIs(t, err, domain.ErrUnavailable)
	require.Empty(t, o.Registry.SessionOf(c.ID))
	_, ok := o.Rooms.Get(testSession)
	require.False(t, ok)
}
