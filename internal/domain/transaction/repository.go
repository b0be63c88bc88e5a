package transaction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a transaction does not exist.
var ErrNotFound = errors.New("transaction not found")

// StorageError wraps a failure reported by the underlying store. It is fatal
// to the current operation only.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func storageErr(op string, err error) error {
	if err == nil || errors.Is(err, ErrNotFound) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// Repository defines the persistence contract the core relies on
type Repository interface {
	// Writes
	Append(ctx context.Context, tx *Transaction) error
	Update(ctx context.Context, tx *Transaction) error
	Delete(ctx context.Context, id uuid.UUID) error
	// DeleteByMonth removes transactions with a timestamp in [MonthRange).
	DeleteByMonth(ctx context.Context, year int, month time.Month) (int64, error)
	DeleteAll(ctx context.Context) (int64, error)

	// Reads
	Get(ctx context.Context, id uuid.UUID) (*Transaction, error)
	QueryAll(ctx context.Context) ([]*Transaction, error)
	QueryWindow(ctx context.Context, account *string, start, end time.Time) ([]*Transaction, error)

	// Aggregates
	QueryByCategory(ctx context.Context, category string, start, end time.Time) (decimal.Decimal, error)
	QueryDistinctAccounts(ctx context.Context) (map[string]int, error)
}

// MonthRange returns the half-open UTC bounds of a calendar month
func MonthRange(year int, month time.Month) (time.Time, time.Time) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}
