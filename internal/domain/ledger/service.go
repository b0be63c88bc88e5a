// Package ledger exposes the user-facing operations over stored
// transactions: category edits, deletes, aggregates, search and export.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/echo-ledger/internal/domain/export"
	"github.com/FACorreiaa/echo-ledger/internal/domain/search"
	"github.com/FACorreiaa/echo-ledger/internal/domain/transaction"
	"github.com/FACorreiaa/echo-ledger/internal/events"
)

// ErrEmptyCategory is returned when a category edit names no category
var ErrEmptyCategory = errors.New("category is empty")

// Format selects an export encoding
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// CategoryEditor learns from manual category edits
type CategoryEditor interface {
	RecordUserEdit(ctx context.Context, merchant, category string) error
}

// Indexer is the full-text index kept in step with the ledger
type Indexer interface {
	IndexAll(txs []*transaction.Transaction) error
	Upsert(tx *transaction.Transaction) error
	Remove(id uuid.UUID) error
	Clear() error
	Search(text string, limit int) ([]search.Hit, error)
}

// Service implements ledger maintenance and reporting
type Service struct {
	repo    transaction.Repository
	learner CategoryEditor
	index   Indexer
	logger  *slog.Logger
}

// NewService creates a ledger service. learner and index may be nil.
func NewService(repo transaction.Repository, learner CategoryEditor, index Indexer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, learner: learner, index: index, logger: logger}
}

// EditCategory records the user's category for a transaction and teaches the
// learner the merchant association.
func (s *Service) EditCategory(ctx context.Context, id uuid.UUID, category string) (*transaction.Transaction, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return nil, ErrEmptyCategory
	}

	tx, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load transaction %s: %w", id, err)
	}

	tx.Category = category
	tx.AutoCategorized = false
	if err := s.repo.Update(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to update transaction %s: %w", id, err)
	}

	if s.learner != nil && strings.TrimSpace(tx.Merchant) != "" {
		if err := s.learner.RecordUserEdit(ctx, tx.Merchant, category); err != nil {
			s.logger.Warn("failed to learn category",
				slog.String("merchant", tx.Merchant),
				slog.Any("error", err),
			)
		}
	}
	s.reindexOne(tx)
	return tx, nil
}

// Delete removes one transaction
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete transaction %s: %w", id, err)
	}
	if s.index != nil {
		if err := s.index.Remove(id); err != nil {
			s.logger.Warn("failed to remove from index", slog.String("id", id.String()), slog.Any("error", err))
		}
	}
	return nil
}

// DeleteByMonth removes every transaction in the given month
func (s *Service) DeleteByMonth(ctx context.Context, year int, month time.Month) (int64, error) {
	n, err := s.repo.DeleteByMonth(ctx, year, month)
	if err != nil {
		return 0, fmt.Errorf("failed to delete %d-%02d: %w", year, month, err)
	}
	if n > 0 {
		s.logger.Info("deleted month", slog.Int("year", year), slog.Int("month", int(month)), slog.Int64("count", n))
		if err := s.Reindex(ctx); err != nil {
			s.logger.Warn("failed to rebuild index", slog.Any("error", err))
		}
	}
	return n, nil
}

// DeleteAll empties the ledger
func (s *Service) DeleteAll(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to delete all transactions: %w", err)
	}
	if s.index != nil {
		if err := s.index.Clear(); err != nil {
			s.logger.Warn("failed to clear index", slog.Any("error", err))
		}
	}
	s.logger.Info("ledger cleared", slog.Int64("count", n))
	return n, nil
}

// CategoryTotal sums debits in category over [start, end)
func (s *Service) CategoryTotal(ctx context.Context, category string, start, end time.Time) (decimal.Decimal, error) {
	total, err := s.repo.QueryByCategory(ctx, category, start, end)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to total %q: %w", category, err)
	}
	return total, nil
}

// MonthlyCategoryTotals sums debits per category for one calendar month
func (s *Service) MonthlyCategoryTotals(ctx context.Context, year int, month time.Month, loc *time.Location) (map[string]decimal.Decimal, error) {
	if loc == nil {
		loc = time.UTC
	}
	start := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	end := start.AddDate(0, 1, 0)

	txs, err := s.repo.QueryAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read transactions: %w", err)
	}

	totals := make(map[string]decimal.Decimal)
	for _, tx := range txs {
		if tx.Type != transaction.TypeDebit || tx.Amount == nil {
			continue
		}
		if tx.Timestamp.Before(start) || !tx.Timestamp.Before(end) {
			continue
		}
		totals[tx.Category] = totals[tx.Category].Add(*tx.Amount)
	}
	return totals, nil
}

// AccountUsage counts transactions per account suffix
func (s *Service) AccountUsage(ctx context.Context) (map[string]int, error) {
	usage, err := s.repo.QueryDistinctAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count accounts: %w", err)
	}
	return usage, nil
}

// Search finds transactions by merchant or message text
func (s *Service) Search(ctx context.Context, text string, limit int) ([]*transaction.Transaction, error) {
	if s.index == nil {
		return nil, errors.New("search index not configured")
	}
	hits, err := s.index.Search(text, limit)
	if err != nil {
		return nil, err
	}

	out := make([]*transaction.Transaction, 0, len(hits))
	for _, h := range hits {
		tx, err := s.repo.Get(ctx, h.ID)
		if errors.Is(err, transaction.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load search hit %s: %w", h.ID, err)
		}
		out = append(out, tx)
	}
	return out, nil
}

// Reindex rebuilds the search index from the repository
func (s *Service) Reindex(ctx context.Context) error {
	if s.index == nil {
		return nil
	}
	txs, err := s.repo.QueryAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to read transactions: %w", err)
	}
	if err := s.index.Clear(); err != nil {
		return err
	}
	return s.index.IndexAll(txs)
}

// HandleEvent keeps the index current as transactions are ingested or
// re-parsed. It is meant to be subscribed to the event bus.
func (s *Service) HandleEvent(ctx context.Context, ev events.Event) {
	if s.index == nil {
		return
	}
	var id uuid.UUID
	switch p := ev.Payload.(type) {
	case events.TransactionIngested:
		id = p.TransactionID
	case events.TransactionReparsed:
		id = p.TransactionID
	default:
		return
	}
	tx, err := s.repo.Get(ctx, id)
	if err != nil {
		s.logger.Warn("failed to load transaction for indexing",
			slog.String("kind", string(ev.Kind)),
			slog.String("id", id.String()),
			slog.Any("error", err))
		return
	}
	s.reindexOne(tx)
}

// Export writes the whole ledger in the requested format
func (s *Service) Export(ctx context.Context, w io.Writer, format Format) error {
	txs, err := s.repo.QueryAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to read transactions: %w", err)
	}

	switch format {
	case FormatCSV:
		return export.WriteCSV(w, txs)
	case FormatXLSX:
		return export.WriteXLSX(w, txs)
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}

func (s *Service) reindexOne(tx *transaction.Transaction) {
	if s.index == nil {
		return
	}
	if err := s.index.Upsert(tx); err != nil {
		s.logger.Warn("failed to index transaction", slog.String("id", tx.ID.String()), slog.Any("error", err))
	}
}
