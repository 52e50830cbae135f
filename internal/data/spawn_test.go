package data

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/l1jgo/nety/internal/world"
	"go.uber.org/zap/zaptest"
)

func writeSpawnList(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "spawns.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAndSpawn(t *testing.T) {
	path := writeSpawnList(t, `
- name: crates
  count: 3
- name: guards
  count: 4
  x: 100
  y: -50
  spread: 5
`)
	list, err := LoadSpawnList(path)
	if err != nil {
		t.Fatalf("LoadSpawnList: %v", err)
	}
	if list.Count() != 7 || len(list.Entries) != 2 {
		t.Fatalf("count = %d entries = %d", list.Count(), len(list.Entries))
	}

	store := world.NewStore(zaptest.NewLogger(t))
	created := list.Spawn(store, rand.New(rand.NewSource(1)))
	if len(created) != 7 || store.Len() != 7 {
		t.Fatalf("created %d, store has %d", len(created), store.Len())
	}

	positioned := 0
	for _, ne := range created {
		p, ok := store.Position(ne)
		if !ok {
			continue
		}
		positioned++
		if p.X < 95 || p.X > 105 || p.Y < -55 || p.Y > -45 {
			t.Fatalf("position %+v outside spread", p)
		}
	}
	if positioned != 4 {
		t.Fatalf("positioned = %d", positioned)
	}
}

func TestLoadSpawnListRejectsBadEntries(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"negative count", "- name: a\n  count: -1\n"},
		{"negative spread", "- name: a\n  count: 1\n  x: 0\n  y: 0\n  spread: -2\n"},
		{"half position", "- name: a\n  count: 1\n  x: 3\n"},
		{"not a list", "name: a\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadSpawnList(writeSpawnList(t, tt.body)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
