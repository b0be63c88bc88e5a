package recurring

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/echo-ledger/internal/domain/transaction"
)

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	db transaction.Querier
}

// NewPostgresRepository creates a new PostgreSQL series repository
func NewPostgresRepository(db transaction.Querier) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const seriesColumns = `id, merchant, category, type, frequency, average_amount::text,
	occurrence_count, first_occurrence, last_occurrence, next_expected_date,
	confidence_score, is_active, updated_at`

// ReplaceAll deletes every series and inserts the new set in one transaction.
// The table is locked against writers first, so an IsActive=false stored by a
// concurrent SetActive is either read here and carried over or applied after
// the swap.
func (r *PostgresRepository) ReplaceAll(ctx context.Context, series []*Series) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `LOCK TABLE recurring_series IN EXCLUSIVE MODE`); err != nil {
		return fmt.Errorf("failed to lock series: %w", err)
	}

	inactive, err := inactiveIDs(ctx, tx)
	if err != nil {
		return err
	}
	carryInactive(series, inactive)

	if _, err := tx.Exec(ctx, `DELETE FROM recurring_series`); err != nil {
		return fmt.Errorf("failed to clear series: %w", err)
	}

	query := `
		INSERT INTO recurring_series (id, merchant, category, type, frequency, average_amount,
			occurrence_count, first_occurrence, last_occurrence, next_expected_date,
			confidence_score, is_active, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
	`
	for _, s := range series {
		_, err := tx.Exec(ctx, query,
			s.ID,
			s.Merchant,
			s.Category,
			string(s.Type),
			string(s.Frequency),
			s.AverageAmount,
			s.OccurrenceCount,
			s.FirstOccurrence,
			s.LastOccurrence,
			s.NextExpectedDate,
			s.ConfidenceScore,
			s.IsActive,
		)
		if err != nil {
			return fmt.Errorf("failed to insert series %s: %w", s.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit series: %w", err)
	}
	return nil
}

func inactiveIDs(ctx context.Context, tx pgx.Tx) (map[uuid.UUID]bool, error) {
	rows, err := tx.Query(ctx, `SELECT id FROM recurring_series WHERE NOT is_active`)
	if err != nil {
		return nil, fmt.Errorf("failed to read inactive series: %w", err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID]bool)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan inactive series: %w", err)
		}
		out[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read inactive series: %w", err)
	}
	return out, nil
}

// List returns all stored series
func (r *PostgresRepository) List(ctx context.Context) ([]*Series, error) {
	query := `SELECT ` + seriesColumns + ` FROM recurring_series ORDER BY merchant, category`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list series: %w", err)
	}
	defer rows.Close()

	var out []*Series
	for rows.Next() {
		s, err := scanSeries(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate series: %w", err)
	}
	return out, nil
}

// Get retrieves one series
func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (*Series, error) {
	query := `SELECT ` + seriesColumns + ` FROM recurring_series WHERE id = $1`

	s, err := scanSeries(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return s, err
}

// SetActive marks a series active or inactive
func (r *PostgresRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE recurring_series SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("failed to update series: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanSeries(row pgx.Row) (*Series, error) {
	var (
		s         Series
		typ, freq string
		average   string
		next      *time.Time
	)
	err := row.Scan(
		&s.ID,
		&s.Merchant,
		&s.Category,
		&typ,
		&freq,
		&average,
		&s.OccurrenceCount,
		&s.FirstOccurrence,
		&s.LastOccurrence,
		&next,
		&s.ConfidenceScore,
		&s.IsActive,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan series: %w", err)
	}

	amount, err := decimal.NewFromString(average)
	if err != nil {
		return nil, fmt.Errorf("failed to parse average amount %q: %w", average, err)
	}
	s.AverageAmount = amount
	s.Type = transaction.Type(typ)
	s.Frequency = Frequency(freq)
	s.NextExpectedDate = next
	return &s, nil
}
