package recurring

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Repository persists derived series
type Repository interface {
	// ReplaceAll atomically swaps the stored series for the given set. A
	// stored IsActive=false is kept for series with the same ID, and the
	// given series are updated in place to match what was stored.
	ReplaceAll(ctx context.Context, series []*Series) error
	List(ctx context.Context) ([]*Series, error)
	Get(ctx context.Context, id uuid.UUID) (*Series, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
}

// MemoryRepository is an in-process Repository
type MemoryRepository struct {
	mu   sync.RWMutex
	rows map[uuid.UUID]*Series
}

// NewMemoryRepository creates an empty repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{rows: make(map[uuid.UUID]*Series)}
}

// ReplaceAll implements Repository
func (r *MemoryRepository) ReplaceAll(_ context.Context, series []*Series) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	inactive := make(map[uuid.UUID]bool)
	for id, s := range r.rows {
		if !s.IsActive {
			inactive[id] = true
		}
	}
	carryInactive(series, inactive)

	rows := make(map[uuid.UUID]*Series, len(series))
	for _, s := range series {
		rows[s.ID] = s.clone()
	}
	r.rows = rows
	return nil
}

func carryInactive(series []*Series, inactive map[uuid.UUID]bool) {
	for _, s := range series {
		if inactive[s.ID] {
			s.IsActive = false
		}
	}
}

// List implements Repository
func (r *MemoryRepository) List(_ context.Context) ([]*Series, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Series, 0, len(r.rows))
	for _, s := range r.rows {
		out = append(out, s.clone())
	}
	sortSeries(out)
	return out, nil
}

// Get implements Repository
func (r *MemoryRepository) Get(_ context.Context, id uuid.UUID) (*Series, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.clone(), nil
}

// SetActive implements Repository
func (r *MemoryRepository) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.rows[id]
	if !ok {
		return ErrNotFound
	}
	s.IsActive = active
	return nil
}

func sortSeries(s []*Series) {
	sort.Slice(s, func(i, j int) bool {
		if s[i].Merchant != s[j].Merchant {
			return s[i].Merchant < s[j].Merchant
		}
		return s[i].Category < s[j].Category
	})
}
