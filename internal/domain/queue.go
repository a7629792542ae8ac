package domain

import (
	"github.com/google/uuid"
)

const (
	MaxQueueLen     = 500
	MaxClimbUUIDLen = 50
	MaxTickedBy     = 100
)

// Climb is the catalog reference carried by a queue item. Display fields
// may be filled in from the catalog.
type Climb struct {
	UUID       string `json:"uuid"`
	Name       string `json:"name,omitempty"`
	Setter     string `json:"setter_username,omitempty"`
	Difficulty string `json:"difficulty,omitempty"`
	Angle      int    `json:"angle"`
	Mirrored   bool   `json:"mirrored,omitempty"`
}

type QueueItem struct {
	UUID     string   `json:"uuid"`
	Climb    Climb    `json:"climb"`
	AddedBy  ClientID `json:"addedBy,omitempty"`
	TickedBy []string `json:"tickedBy,omitempty"`
}

// QueueState is one committed snapshot of a session's queue.
// If CurrentItem is set, an item with the same UUID and climb is in Queue.
type QueueState struct {
	Queue       []QueueItem `json:"queue"`
	CurrentItem *QueueItem  `json:"currentClimbQueueItem"`
	Sequence    uint64      `json:"sequence"`
	StateHash   string      `json:"stateHash"`
}

func (s QueueState) ItemIDs() []string {
	ids := make([]string, len(s.Queue))
	for i, it := range s.Queue {
		ids[i] = it.UUID
	}
	return ids
}

func (s QueueState) CurrentID() *string {
	if s.CurrentItem == nil {
		return nil
	}
	id := s.CurrentItem.UUID
	return &id
}

// Clone deep-copies the slices so snapshots can be handed out freely.
func (s QueueState) Clone() QueueState {
	out := s
	out.Queue = make([]QueueItem, len(s.Queue))
	for i, it := range s.Queue {
		out.Queue[i] = it.clone()
	}
	if s.CurrentItem != nil {
		cur := s.CurrentItem.clone()
		out.CurrentItem = &cur
	}
	return out
}

func (it QueueItem) clone() QueueItem {
	if it.TickedBy != nil {
		it.TickedBy = append([]string(nil), it.TickedBy...)
	}
	return it
}

func (it QueueItem) Validate() error {
	if _, err := uuid.Parse(it.UUID); err != nil {
		return Validation("queue item uuid %q is not a valid uuid", it.UUID)
	}
	if it.Climb.UUID == "" {
		return Validation("climb uuid cannot be empty")
	}
	if len(it.Climb.UUID) > MaxClimbUUIDLen {
		return Validation("climb uuid too long")
	}
	if it.Climb.Angle < 0 || it.Climb.Angle > MaxAngle {
		return Validation("climb angle must be between 0 and %d", MaxAngle)
	}
	if len(it.TickedBy) > MaxTickedBy {
		return Validation("too many ticks on queue item")
	}
	return nil
}

// ValidateQueue checks items and id uniqueness, and that current, when set,
// is one of the queue's items.
func ValidateQueue(queue []QueueItem, current *QueueItem) error {
	if len(queue) > MaxQueueLen {
		return Validation("queue too large")
	}
	seen := make(map[string]Climb, len(queue))
	for _, it := range queue {
		if err := it.Validate(); err != nil {
			return err
		}
		if _, dup := seen[it.UUID]; dup {
			return Validation("duplicate queue item %s", it.UUID)
		}
		seen[it.UUID] = it.Climb
	}
	if current == nil {
		return nil
	}
	if err := current.Validate(); err != nil {
		return err
	}
	queued, ok := seen[current.UUID]
	if !ok {
		return Validation("current item %s is not in the queue", current.UUID)
	}
	if !current.Climb.Same(queued) {
		return Validation("current item %s does not match its queue entry", current.UUID)
	}
	return nil
}

// Same reports whether c and other name the same climb at the same angle.
// Display fields are ignored.
func (c Climb) Same(other Climb) bool {
	return c.UUID == other.UUID && c.Angle == other.Angle && c.Mirrored == other.Mirrored
}

// Mutation is a whole-state replacement request for a session's queue.
type Mutation struct {
	Queue       []QueueItem `json:"queue"`
	CurrentItem *QueueItem  `json:"currentItem"`
	// AddCurrentToQueue appends CurrentItem when it is not already queued.
	AddCurrentToQueue bool `json:"addCurrentToQueue,omitempty"`
	// ExpectedSequence, when set, must equal the committed sequence.
	ExpectedSequence *uint64 `json:"expectedSequence,omitempty"`
	CorrelationID    string  `json:"correlationId,omitempty"`
}

// Normalize applies AddCurrentToQueue and validates the result.
func (m Mutation) Normalize() (Mutation, error) {
	if m.Queue == nil {
		m.Queue = []QueueItem{}
	}
	if m.AddCurrentToQueue && m.CurrentItem != nil {
		found := false
		for _, it := range m.Queue {
			if it.UUID == m.CurrentItem.UUID {
				found = true
				break
			}
		}
		if !found {
			m.Queue = append(append([]QueueItem(nil), m.Queue...), *m.CurrentItem)
		}
	}
	if err := ValidateQueue(m.Queue, m.CurrentItem); err != nil {
		return Mutation{}, err
	}
	return m, nil
}
