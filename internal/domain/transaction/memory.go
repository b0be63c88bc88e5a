package transaction

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MemoryRepository is an in-process Repository used by embedders without a
// database and by tests. Reads return deep copies, so a QueryAll result is a
// consistent snapshot.
type MemoryRepository struct {
	mu   sync.RWMutex
	rows map[uuid.UUID]*Transaction
	now  func() time.Time
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		rows: make(map[uuid.UUID]*Transaction),
		now:  time.Now,
	}
}

// Append stores a new transaction, assigning an ID when missing
func (r *MemoryRepository) Append(_ context.Context, tx *Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	if _, exists := r.rows[tx.ID]; exists {
		return &StorageError{Op: "append", Err: errDuplicateID(tx.ID)}
	}

	now := r.now()
	tx.CreatedAt = now
	tx.UpdatedAt = now
	r.rows[tx.ID] = tx.Clone()
	return nil
}

// Update replaces an existing transaction
func (r *MemoryRepository) Update(_ context.Context, tx *Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.rows[tx.ID]
	if !ok {
		return ErrNotFound
	}
	tx.CreatedAt = existing.CreatedAt
	tx.UpdatedAt = r.now()
	r.rows[tx.ID] = tx.Clone()
	return nil
}

// Delete removes a transaction
func (r *MemoryRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rows[id]; !ok {
		return ErrNotFound
	}
	delete(r.rows, id)
	return nil
}

// DeleteByMonth removes every transaction whose timestamp falls in the given
// UTC month
func (r *MemoryRepository) DeleteByMonth(_ context.Context, year int, month time.Month) (int64, error) {
	start, end := MonthRange(year, month)

	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, tx := range r.rows {
		if !tx.Timestamp.Before(start) && tx.Timestamp.Before(end) {
			delete(r.rows, id)
			n++
		}
	}
	return n, nil
}

// DeleteAll clears the ledger
func (r *MemoryRepository) DeleteAll(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := int64(len(r.rows))
	r.rows = make(map[uuid.UUID]*Transaction)
	return n, nil
}

// Get retrieves a transaction by ID
func (r *MemoryRepository) Get(_ context.Context, id uuid.UUID) (*Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tx, ok := r.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return tx.Clone(), nil
}

// QueryAll returns every transaction ordered by timestamp
func (r *MemoryRepository) QueryAll(_ context.Context) ([]*Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Transaction, 0, len(r.rows))
	for _, tx := range r.rows {
		out = append(out, tx.Clone())
	}
	sortByTimestamp(out)
	return out, nil
}

// QueryWindow returns transactions in [start, end] that share the account suffix.
// A nil account matches transactions without one.
func (r *MemoryRepository) QueryWindow(_ context.Context, account *string, start, end time.Time) ([]*Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Transaction
	for _, tx := range r.rows {
		if !sameAccount(tx.AccountLastDigits, account) {
			continue
		}
		if tx.Timestamp.Before(start) || tx.Timestamp.After(end) {
			continue
		}
		out = append(out, tx.Clone())
	}
	sortByTimestamp(out)
	return out, nil
}

// QueryByCategory sums debit amounts for a category within [start, end)
func (r *MemoryRepository) QueryByCategory(_ context.Context, category string, start, end time.Time) (decimal.Decimal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sum := decimal.Zero
	for _, tx := range r.rows {
		if tx.Category != category || tx.Type != TypeDebit || tx.Amount == nil {
			continue
		}
		if tx.Timestamp.Before(start) || !tx.Timestamp.Before(end) {
			continue
		}
		sum = sum.Add(*tx.Amount)
	}
	return sum, nil
}

// QueryDistinctAccounts counts transactions per account suffix
func (r *MemoryRepository) QueryDistinctAccounts(_ context.Context) (map[string]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]int)
	for _, tx := range r.rows {
		if tx.AccountLastDigits == nil {
			continue
		}
		out[*tx.AccountLastDigits]++
	}
	return out, nil
}

// Len returns the number of stored transactions
func (r *MemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rows)
}

func sameAccount(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func sortByTimestamp(txs []*Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		if txs[i].Timestamp.Equal(txs[j].Timestamp) {
			return txs[i].CreatedAt.Before(txs[j].CreatedAt)
		}
		return txs[i].Timestamp.Before(txs[j].Timestamp)
	})
}

type duplicateIDError uuid.UUID

func (e duplicateIDError) Error() string {
	return "duplicate id " + uuid.UUID(e).String()
}

func errDuplicateID(id uuid.UUID) error {
	return duplicateIDError(id)
}
