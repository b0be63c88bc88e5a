package categorization

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Association is a learned merchant to category mapping
type Association struct {
	Key       string
	Category  string
	Count     int
	UpdatedAt time.Time
}

// AssociationStore persists learned associations
type AssociationStore interface {
	// Get returns the association for a key, or nil when none exists.
	Get(ctx context.Context, key string) (*Association, error)
	// Upsert increments the counter for key and stores category.
	Upsert(ctx context.Context, key, category string) (*Association, error)
	List(ctx context.Context) ([]Association, error)
	Delete(ctx context.Context, key string) error
}

// MemoryStore is an in-process AssociationStore
type MemoryStore struct {
	mu   sync.RWMutex
	rows map[string]Association
	now  func() time.Time
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[string]Association), now: time.Now}
}

// Get implements AssociationStore
func (s *MemoryStore) Get(_ context.Context, key string) (*Association, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.rows[key]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

// Upsert implements AssociationStore
func (s *MemoryStore) Upsert(_ context.Context, key, category string) (*Association, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := s.rows[key]
	a.Key = key
	a.Category = category
	a.Count++
	a.UpdatedAt = s.now()
	s.rows[key] = a
	return &a, nil
}

// List implements AssociationStore
func (s *MemoryStore) List(_ context.Context) ([]Association, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Association, 0, len(s.rows))
	for _, a := range s.rows {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	return out, nil
}

// Delete implements AssociationStore
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, key)
	return nil
}
