// Package catalog resolves climb display data for queue items.
package catalog

import (
	"context"
	"os"
	"sync"

	"github.com/dkeye/seshd/internal/domain"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Catalog looks up climbs by uuid. Unknown uuids are simply absent from the
// result.
type Catalog interface {
	Climbs(ctx context.Context, uuids []string) (map[string]domain.Climb, error)
}

// Memory is a Catalog over a fixed set of climbs.
type Memory struct {
	mu     sync.RWMutex
	climbs map[string]domain.Climb
}

var _ Catalog = (*Memory)(nil)

func NewMemory(climbs ...domain.Climb) *Memory {
	m := &Memory{climbs: make(map[string]domain.Climb, len(climbs))}
	for _, c := range climbs {
		m.climbs[c.UUID] = c
	}
	return m
}

func (m *Memory) Put(c domain.Climb) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.climbs[c.UUID] = c
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.climbs)
}

func (m *Memory) Climbs(ctx context.Context, uuids []string) (map[string]domain.Climb, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]domain.Climb, len(uuids))
	for _, id := range uuids {
		if c, ok := m.climbs[id]; ok {
			out[id] = c
		}
	}
	return out, nil
}

type fileClimb struct {
	UUID       string `yaml:"uuid"`
	Name       string `yaml:"name"`
	Setter     string `yaml:"setter"`
	Difficulty string `yaml:"difficulty"`
	Angle      int    `yaml:"angle"`
}

// LoadFile reads a yaml list of climbs.
func LoadFile(path string) (*Memory, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read catalog %s", path)
	}
	var rows []fileClimb
	if err := yaml.Unmarshal(raw, &rows); err != nil {
		return nil, errors.Wrapf(err, "parse catalog %s", path)
	}
	m := NewMemory()
	for _, r := range rows {
		if r.UUID == "" {
			continue
		}
		m.Put(domain.Climb{
			UUID:       r.UUID,
			Name:       r.Name,
			Setter:     r.Setter,
			Difficulty: r.Difficulty,
			Angle:      r.Angle,
		})
	}
	return m, nil
}

// Enrich fills empty display fields of every item from found. Angle and
// Mirrored stay as the client sent them.
func Enrich(queue []domain.QueueItem, found map[string]domain.Climb) {
	for i := range queue {
		fill(&queue[i].Climb, found)
	}
}

// EnrichItem is Enrich for a single optional item.
func EnrichItem(item *domain.QueueItem, found map[string]domain.Climb) {
	if item != nil {
		fill(&item.Climb, found)
	}
}

func fill(c *domain.Climb, found map[string]domain.Climb) {
	ref, ok := found[c.UUID]
	if !ok {
		return
	}
	if c.Name == "" {
		c.Name = ref.Name
	}
	if c.Setter == "" {
		c.Setter = ref.Setter
	}
	if c.Difficulty == "" {
		c.Difficulty = ref.Difficulty
	}
}
