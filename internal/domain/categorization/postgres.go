package categorization

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/FACorreiaa/echo-ledger/internal/domain/transaction"
)

// PostgresStore implements AssociationStore using PostgreSQL
type PostgresStore struct {
	db transaction.Querier
}

// NewPostgresStore creates a new PostgreSQL association store
func NewPostgresStore(db transaction.Querier) *PostgresStore {
	return &PostgresStore{db: db}
}

// Get fetches the association for a normalized merchant key
func (s *PostgresStore) Get(ctx context.Context, key string) (*Association, error) {
	query := `
		SELECT merchant_key, category, count, updated_at
		FROM category_associations
		WHERE merchant_key = $1
	`

	var a Association
	err := s.db.QueryRow(ctx, query, key).Scan(&a.Key, &a.Category, &a.Count, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get association: %w", err)
	}
	return &a, nil
}

// Upsert reinforces an association, replacing the category when it differs
func (s *PostgresStore) Upsert(ctx context.Context, key, category string) (*Association, error) {
	query := `
		INSERT INTO category_associations (merchant_key, category, count, updated_at)
		VALUES ($1, $2, 1, NOW())
		ON CONFLICT (merchant_key) DO UPDATE
		SET category = EXCLUDED.category,
			count = category_associations.count + 1,
			updated_at = NOW()
		RETURNING merchant_key, category, count, updated_at
	`

	var a Association
	if err := s.db.QueryRow(ctx, query, key, category).Scan(&a.Key, &a.Category, &a.Count, &a.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to upsert association: %w", err)
	}
	return &a, nil
}

// List returns all associations, strongest first
func (s *PostgresStore) List(ctx context.Context) ([]Association, error) {
	query := `
		SELECT merchant_key, category, count, updated_at
		FROM category_associations
		ORDER BY count DESC, merchant_key
	`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list associations: %w", err)
	}
	defer rows.Close()

	var out []Association
	for rows.Next() {
		var a Association
		if err := rows.Scan(&a.Key, &a.Category, &a.Count, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan association: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Delete forgets an association
func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM category_associations WHERE merchant_key = $1`, key); err != nil {
		return fmt.Errorf("failed to delete association: %w", err)
	}
	return nil
}
