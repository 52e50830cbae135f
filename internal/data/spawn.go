package data

import (
	"fmt"
	"math/rand"
	"os"

	"github.com/l1jgo/nety/internal/component"
	"github.com/l1jgo/nety/internal/protocol"
	"gopkg.in/yaml.v3"
)

// SpawnEntry describes a group of entities created when a server starts.
type SpawnEntry struct {
	Name   string `yaml:"name"`
	Count  int    `yaml:"count"`
	X      *int32 `yaml:"x"`
	Y      *int32 `yaml:"y"`
	Spread int32  `yaml:"spread"` // random offset in [-spread, spread] per axis
}

// Positioned reports whether the group is placed on the grid.
func (e SpawnEntry) Positioned() bool { return e.X != nil && e.Y != nil }

// SpawnList is the parsed spawn file.
type SpawnList struct {
	Entries []SpawnEntry
}

// Creator makes a networked entity, optionally at a position.
type Creator interface {
	Create(pos *component.Position) protocol.NetworkEntity
}

// LoadSpawnList loads a YAML list of spawn entries.
func LoadSpawnList(path string) (*SpawnList, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read spawn list: %w", err)
	}
	var entries []SpawnEntry
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse spawn list: %w", err)
	}
	for i, e := range entries {
		if e.Count < 0 {
			return nil, fmt.Errorf("spawn list entry %d (%s): negative count", i, e.Name)
		}
		if e.Spread < 0 {
			return nil, fmt.Errorf("spawn list entry %d (%s): negative spread", i, e.Name)
		}
		if (e.X == nil) != (e.Y == nil) {
			return nil, fmt.Errorf("spawn list entry %d (%s): x and y must be set together", i, e.Name)
		}
	}
	return &SpawnList{Entries: entries}, nil
}

// Count returns the total number of entities the list creates.
func (l *SpawnList) Count() int {
	n := 0
	for _, e := range l.Entries {
		n += e.Count
	}
	return n
}

// Spawn creates every entity in the list.
func (l *SpawnList) Spawn(c Creator, rng *rand.Rand) []protocol.NetworkEntity {
	out := make([]protocol.NetworkEntity, 0, l.Count())
	for _, e := range l.Entries {
		for i := 0; i < e.Count; i++ {
			if !e.Positioned() {
				out = append(out, c.Create(nil))
				continue
			}
			pos := component.Position{X: *e.X, Y: *e.Y}
			if e.Spread > 0 {
				pos.X += rng.Int31n(2*e.Spread+1) - e.Spread
				pos.Y += rng.Int31n(2*e.Spread+1) - e.Spread
			}
			out = append(out, c.Create(&pos))
		}
	}
	return out
}
