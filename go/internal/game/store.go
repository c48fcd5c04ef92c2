package game

import (
	"context"
	"sync"
	"time"

	"github.com/mcdev12/colortap/go/internal/models"
)

const (
	StoreModeMemory   = "memory"
	StoreModeFallback = "memory-fallback"
	StoreModePostgres = "postgres"
)

// Store holds the canonical session. Load returns a snapshot the caller may
// keep. Update runs fn against a working copy under the store's exclusion and
// persists it only if fn returns nil; every field fn touches commits together.
// fn may be invoked more than once by stores that retry on a lost race, so it
// must not have side effects outside the session it is handed.
type Store interface {
	Load(ctx context.Context) (*models.Session, error)
	Update(ctx context.Context, fn func(s *models.Session) error) (*models.Session, error)
	Mode() string
}

// MemoryStore is the in-process Store: one mutex guards the whole session.
type MemoryStore struct {
	mu       sync.Mutex
	session  *models.Session
	fallback bool
}

// NewMemoryStore creates an in-process store with a fresh session.
func NewMemoryStore(sessionID string, now time.Time) *MemoryStore {
	return &MemoryStore{session: models.NewSession(sessionID, now)}
}

// NewFallbackStore creates an in-process store standing in for an unreachable
// shared store. It behaves like MemoryStore but reports a degraded mode.
func NewFallbackStore(sessionID string, now time.Time) *MemoryStore {
	s := NewMemoryStore(sessionID, now)
	s.fallback = true
	return s
}

func (m *MemoryStore) Load(ctx context.Context) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session.Clone(), nil
}

func (m *MemoryStore) Update(ctx context.Context, fn func(s *models.Session) error) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	work := m.session.Clone()
	if err := fn(work); err != nil {
		return nil, err
	}
	work.Generation = m.session.Generation + 1
	m.session = work
	return work.Clone(), nil
}

func (m *MemoryStore) Mode() string {
	if m.fallback {
		return StoreModeFallback
	}
	return StoreModeMemory
}
