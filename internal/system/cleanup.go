package system

import (
	"time"

	coresys "github.com/l1jgo/nety/internal/core/system"
	"github.com/l1jgo/nety/internal/world"
	"go.uber.org/zap"
)

// CleanupSystem destroys the host entities despawned during the tick.
// Phase 11 (Cleanup).
type CleanupSystem struct {
	store *world.Store
	log   *zap.Logger
}

func NewCleanupSystem(store *world.Store, log *zap.Logger) *CleanupSystem {
	return &CleanupSystem{store: store, log: log}
}

func (s *CleanupSystem) Phase() coresys.Phase { return coresys.PhaseCleanup }

func (s *CleanupSystem) Update(_ time.Duration) {
	if n := s.store.FlushDestroyQueue(); n > 0 {
		s.log.Debug("destroyed entities", zap.Int("count", n))
	}
}
