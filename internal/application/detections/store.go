package detections

import (
	"context"
	"sync"
	"time"

	domain "github.com/bryanwahyu/wildlife-dashboard/internal/domain/detections"
)

// Snapshot is one cached asset listing together with the time it was fetched.
// Stores keep both fields as one value.
type Snapshot struct {
	Assets    []domain.RawAsset `json:"assets"`
	FetchedAt time.Time         `json:"fetched_at"`
}

// SnapshotStore port (interface untuk penyimpanan cache)
type SnapshotStore interface {
	Load(ctx context.Context, key string) (Snapshot, bool, error)
	Save(ctx context.Context, key string, snap Snapshot, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// MemoryStore keeps snapshots in process.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*Snapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*Snapshot)}
}

func (s *MemoryStore) Load(_ context.Context, key string) (Snapshot, bool, error) {
	s.mu.RLock()
	snap, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return Snapshot{}, false, nil
	}
	return Snapshot{Assets: cloneAssets(snap.Assets), FetchedAt: snap.FetchedAt}, true, nil
}

// Save replaces the entry. Freshness is decided by the cache, so ttl is unused here.
func (s *MemoryStore) Save(_ context.Context, key string, snap Snapshot, _ time.Duration) error {
	stored := &Snapshot{Assets: cloneAssets(snap.Assets), FetchedAt: snap.FetchedAt}
	s.mu.Lock()
	s.entries[key] = stored
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

func cloneAssets(in []domain.RawAsset) []domain.RawAsset {
	out := make([]domain.RawAsset, len(in))
	copy(out, in)
	return out
}
