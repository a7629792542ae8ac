package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func queueItem() QueueItem {
	return QueueItem{UUID: uuid.NewString(), Climb: Climb{UUID: "climb", Angle: 40}}
}

func Test_ValidateQueue_Requires_Current_In_Queue(t *testing.T) {
	// Arrange
	a, b := queueItem(), queueItem()

	// Act
	inQueue := ValidateQueue([]QueueItem{a, b}, &b)
	outside := ValidateQueue([]QueueItem{a}, &b)

	// Assert
	require.NoError(t, inQueue)
	require.ErrorIs(t, outside, ErrValidation)
}

func Test_ValidateQueue_Current_Must_Match_Queued_Climb(t *testing.T) {
	// Arrange
	a := queueItem()
	sameID := a
	sameID.Climb.UUID = "another-climb"
	otherAngle := a
	otherAngle.Climb.Angle = a.Climb.Angle + 5
	renamed := a
	renamed.Climb.Name = "display only"

	// Act
	climbErr := ValidateQueue([]QueueItem{a}, &sameID)
	angleErr := ValidateQueue([]QueueItem{a}, &otherAngle)
	displayErr := ValidateQueue([]QueueItem{a}, &renamed)

	// Assert
	require.ErrorIs(t, climbErr, ErrValidation)
	require.ErrorIs(t, angleErr, ErrValidation)
	require.NoError(t, displayErr)
}

func Test_ValidateQueue_Rejects_Duplicates_And_Bad_Items(t *testing.T) {
	a := queueItem()
	require.ErrorIs(t, ValidateQueue([]QueueItem{a, a}, nil), ErrValidation)

	bad := queueItem()
	bad.UUID = "not-a-uuid"
	require.ErrorIs(t, ValidateQueue([]QueueItem{bad}, nil), ErrValidation)

	steep := queueItem()
	steep.Climb.Angle = 95
	require.ErrorIs(t, ValidateQueue([]QueueItem{steep}, nil), ErrValidation)

	require.ErrorIs(t, ValidateQueue(make([]QueueItem, MaxQueueLen+1), nil), ErrValidation)
}

func Test_Mutation_Normalize_Appends_Current(t *testing.T) {
	// Arrange
	a, cur := queueItem(), queueItem()
	queue := []QueueItem{a}
	m := Mutation{Queue: queue, CurrentItem: &cur, AddCurrentToQueue: true}

	// Act
	got, err := m.Normalize()

	// Assert
	require.NoError(t, err)
	require.Equal(t, []QueueItem{a, cur}, got.Queue)
	require.Len(t, queue, 1)
}

func Test_Mutation_Normalize_Empty_Queue_Is_Not_Nil(t *testing.T) {
	got, err := Mutation{}.Normalize()

	require.NoError(t, err)
	require.NotNil(t, got.Queue)
	require.Empty(t, got.Queue)
}

func Test_QueueState_Clone_Is_Deep(t *testing.T) {
	it := queueItem()
	it.TickedBy = []string{"u1"}
	s := QueueState{Queue: []QueueItem{it}, CurrentItem: &it}

	c := s.Clone()
	c.Queue[0].TickedBy[0] = "x"
	c.CurrentItem.TickedBy[0] = "y"

	require.Equal(t, "u1", s.Queue[0].TickedBy[0])
	require.Equal(t, "u1", s.CurrentItem.TickedBy[0])
}
