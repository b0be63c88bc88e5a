package transaction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// Querier is the subset of pgxpool.Pool used by the Postgres repositories.
// pgxmock pools satisfy it as well.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	db Querier
}

// NewPostgresRepository creates a new PostgreSQL transaction repository
func NewPostgresRepository(db Querier) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectColumns = `
	id, raw_message, fingerprint, source, source_account_id, received_at, occurred_at,
	amount::text, type, merchant, category, account_last_digits, balance::text,
	parser_type, parser_confidence, parse_time, parsing_error, auto_categorized,
	original_currency, original_amount::text, created_at, updated_at`

// Append inserts a new transaction
func (r *PostgresRepository) Append(ctx context.Context, tx *Transaction) error {
	query := `
		INSERT INTO transactions (
			id, raw_message, fingerprint, source, source_account_id, received_at, occurred_at,
			amount, type, merchant, category, account_last_digits, balance,
			parser_type, parser_confidence, parse_time, parsing_error, auto_categorized,
			original_currency, original_amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		RETURNING created_at, updated_at`

	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}

	err := r.db.QueryRow(ctx, query,
		tx.ID,
		tx.RawMessage,
		tx.Fingerprint,
		string(tx.Source),
		tx.SourceAccountID,
		tx.ReceivedAt,
		tx.Timestamp,
		nullDecimal(tx.Amount),
		string(tx.Type),
		tx.Merchant,
		tx.Category,
		tx.AccountLastDigits,
		nullDecimal(tx.Balance),
		tx.ParserType.nullable(),
		tx.ParserConfidence,
		tx.ParseTime,
		tx.ParsingError,
		tx.AutoCategorized,
		tx.OriginalCurrency,
		nullDecimal(tx.OriginalAmount),
	).Scan(&tx.CreatedAt, &tx.UpdatedAt)
	if err != nil {
		return storageErr("append", fmt.Errorf("failed to insert transaction: %w", err))
	}
	return nil
}

// Update rewrites every mutable column of an existing transaction
func (r *PostgresRepository) Update(ctx context.Context, tx *Transaction) error {
	query := `
		UPDATE transactions
		SET occurred_at = $2, amount = $3, type = $4, merchant = $5, category = $6,
			account_last_digits = $7, balance = $8, parser_type = $9, parser_confidence = $10,
			parse_time = $11, parsing_error = $12, auto_categorized = $13,
			original_currency = $14, original_amount = $15, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.QueryRow(ctx, query,
		tx.ID,
		tx.Timestamp,
		nullDecimal(tx.Amount),
		string(tx.Type),
		tx.Merchant,
		tx.Category,
		tx.AccountLastDigits,
		nullDecimal(tx.Balance),
		tx.ParserType.nullable(),
		tx.ParserConfidence,
		tx.ParseTime,
		tx.ParsingError,
		tx.AutoCategorized,
		tx.OriginalCurrency,
		nullDecimal(tx.OriginalAmount),
	).Scan(&tx.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return storageErr("update", fmt.Errorf("failed to update transaction: %w", err))
	}
	return nil
}

// Delete removes a transaction
func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	if err != nil {
		return storageErr("delete", fmt.Errorf("failed to delete transaction: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByMonth removes all transactions that occurred in the given UTC month
func (r *PostgresRepository) DeleteByMonth(ctx context.Context, year int, month time.Month) (int64, error) {
	start, end := MonthRange(year, month)

	tag, err := r.db.Exec(ctx,
		`DELETE FROM transactions WHERE occurred_at >= $1 AND occurred_at < $2`, start, end)
	if err != nil {
		return 0, storageErr("delete_by_month", fmt.Errorf("failed to delete transactions for %d-%02d: %w", year, month, err))
	}
	return tag.RowsAffected(), nil
}

// DeleteAll removes every transaction
func (r *PostgresRepository) DeleteAll(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM transactions`)
	if err != nil {
		return 0, storageErr("delete_all", fmt.Errorf("failed to delete transactions: %w", err))
	}
	return tag.RowsAffected(), nil
}

// Get retrieves a transaction by ID
func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	query := `SELECT` + selectColumns + ` FROM transactions WHERE id = $1`

	tx, err := scanTransaction(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storageErr("get", fmt.Errorf("failed to get transaction: %w", err))
	}
	return tx, nil
}

// QueryAll returns every transaction ordered by occurrence
func (r *PostgresRepository) QueryAll(ctx context.Context) ([]*Transaction, error) {
	query := `SELECT` + selectColumns + ` FROM transactions ORDER BY occurred_at, created_at`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, storageErr("query_all", fmt.Errorf("failed to query transactions: %w", err))
	}
	defer rows.Close()

	return collect("query_all", rows)
}

// QueryWindow returns transactions for one account suffix within [start, end]
func (r *PostgresRepository) QueryWindow(ctx context.Context, account *string, start, end time.Time) ([]*Transaction, error) {
	query := `SELECT` + selectColumns + `
		FROM transactions
		WHERE account_last_digits IS NOT DISTINCT FROM $1
			AND occurred_at BETWEEN $2 AND $3
		ORDER BY occurred_at`

	rows, err := r.db.Query(ctx, query, account, start, end)
	if err != nil {
		return nil, storageErr("query_window", fmt.Errorf("failed to query transaction window: %w", err))
	}
	defer rows.Close()

	return collect("query_window", rows)
}

// QueryByCategory sums debit amounts for a category within [start, end)
func (r *PostgresRepository) QueryByCategory(ctx context.Context, category string, start, end time.Time) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)::text
		FROM transactions
		WHERE category = $1 AND type = 'debit' AND amount IS NOT NULL
			AND occurred_at >= $2 AND occurred_at < $3`

	var raw string
	if err := r.db.QueryRow(ctx, query, category, start, end).Scan(&raw); err != nil {
		return decimal.Zero, storageErr("query_by_category", fmt.Errorf("failed to sum category %q: %w", category, err))
	}

	sum, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, storageErr("query_by_category", fmt.Errorf("failed to parse category sum: %w", err))
	}
	return sum, nil
}

// QueryDistinctAccounts counts transactions per account suffix
func (r *PostgresRepository) QueryDistinctAccounts(ctx context.Context) (map[string]int, error) {
	query := `
		SELECT account_last_digits, COUNT(*)
		FROM transactions
		WHERE account_last_digits IS NOT NULL
		GROUP BY account_last_digits`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, storageErr("query_distinct_accounts", fmt.Errorf("failed to query accounts: %w", err))
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var (
			account string
			count   int64
		)
		if err := rows.Scan(&account, &count); err != nil {
			return nil, storageErr("query_distinct_accounts", fmt.Errorf("failed to scan account: %w", err))
		}
		out[account] = int(count)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("query_distinct_accounts", err)
	}
	return out, nil
}

func collect(op string, rows pgx.Rows) ([]*Transaction, error) {
	var out []*Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, storageErr(op, fmt.Errorf("failed to scan transaction: %w", err))
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(op, err)
	}
	return out, nil
}

func scanTransaction(row pgx.Row) (*Transaction, error) {
	var (
		tx             Transaction
		source, typ    string
		amount         *string
		balance        *string
		originalAmount *string
		parserType     *string
	)

	err := row.Scan(
		&tx.ID,
		&tx.RawMessage,
		&tx.Fingerprint,
		&source,
		&tx.SourceAccountID,
		&tx.ReceivedAt,
		&tx.Timestamp,
		&amount,
		&typ,
		&tx.Merchant,
		&tx.Category,
		&tx.AccountLastDigits,
		&balance,
		&parserType,
		&tx.ParserConfidence,
		&tx.ParseTime,
		&tx.ParsingError,
		&tx.AutoCategorized,
		&tx.OriginalCurrency,
		&originalAmount,
		&tx.CreatedAt,
		&tx.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	tx.Source = Source(source)
	tx.Type = Type(typ)
	if parserType != nil {
		tx.ParserType = ParseParserType(*parserType)
	}
	if tx.Amount, err = parseDecimal(amount); err != nil {
		return nil, err
	}
	if tx.Balance, err = parseDecimal(balance); err != nil {
		return nil, err
	}
	if tx.OriginalAmount, err = parseDecimal(originalAmount); err != nil {
		return nil, err
	}
	return &tx, nil
}

func parseDecimal(raw *string) (*decimal.Decimal, error) {
	if raw == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*raw)
	if err != nil {
		return nil, fmt.Errorf("invalid numeric %q: %w", *raw, err)
	}
	return &d, nil
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}
