package transaction

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var transactionColumns = []string{
	"id", "raw_message", "fingerprint", "source", "source_account_id", "received_at", "occurred_at",
	"amount", "type", "merchant", "category", "account_last_digits", "balance",
	"parser_type", "parser_confidence", "parse_time", "parsing_error", "auto_categorized",
	"original_currency", "original_amount", "created_at", "updated_at",
}

func TestPostgresRepository_Append(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Now()
	tx := &Transaction{
		RawMessage: "Rs.499.00 debited from A/c XX1234",
		Source:     SourceSMS,
		ReceivedAt: now,
		Timestamp:  now,
		Amount:     DecimalPtr(decimal.RequireFromString("499.00")),
		Type:       TypeDebit,
		Merchant:   "Swiggy",
		Category:   Uncategorized,
		ParserType: Pattern(),
	}

	mock.ExpectQuery(`INSERT INTO transactions`).
		WithArgs(pgxmock.AnyArg(), tx.RawMessage, "", "sms", "", now, now,
			pgxmock.AnyArg(), "debit", "Swiggy", Uncategorized, pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), 0.0, pgxmock.AnyArg(), pgxmock.AnyArg(), false, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	repo := NewPostgresRepository(mock)
	require.NoError(t, repo.Append(context.Background(), tx))

	assert.NotEqual(t, uuid.Nil, tx.ID)
	assert.Equal(t, now, tx.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_AppendWrapsStorageError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`INSERT INTO transactions`).WillReturnError(errors.New("connection reset"))

	repo := NewPostgresRepository(mock)
	err = repo.Append(context.Background(), &Transaction{Type: TypeDebit})

	var storage *StorageError
	require.True(t, errors.As(err, &storage))
	assert.Equal(t, "append", storage.Op)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestPostgresRepository_Get(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	now := time.Now()
	amount := "499.00"
	account := "1234"
	parser := "model:gemini-2.5-flash"

	mock.ExpectQuery(`SELECT(.|\n)+FROM transactions WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(transactionColumns).AddRow(
			id, "raw", "fp", "sms", "acct-1", now, now,
			&amount, "debit", "Swiggy", "Food", &account, nil,
			&parser, 0.8, nil, nil, true,
			nil, nil, now, now,
		))

	repo := NewPostgresRepository(mock)
	tx, err := repo.Get(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, id, tx.ID)
	require.NotNil(t, tx.Amount)
	assert.True(t, tx.Amount.Equal(decimal.RequireFromString("499")))
	assert.Nil(t, tx.Balance)
	assert.Equal(t, "1234", tx.Account())
	assert.Equal(t, Model("gemini-2.5-flash"), tx.ParserType)
	assert.True(t, tx.AutoCategorized)
	assert.True(t, tx.IsParsed())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_GetNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectQuery(`SELECT`).WithArgs(id).WillReturnError(pgx.ErrNoRows)

	repo := NewPostgresRepository(mock)
	_, err = repo.Get(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresRepository_Delete(t *testing.T) {
	tests := []struct {
		name    string
		rows    int64
		wantErr error
	}{
		{"deleted", 1, nil},
		{"missing", 0, ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			id := uuid.New()
			mock.ExpectExec(`DELETE FROM transactions WHERE id = \$1`).
				WithArgs(id).
				WillReturnResult(pgxmock.NewResult("DELETE", tt.rows))

			repo := NewPostgresRepository(mock)
			err = repo.Delete(context.Background(), id)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPostgresRepository_DeleteByMonth(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	start := time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(`DELETE FROM transactions WHERE occurred_at >= \$1 AND occurred_at < \$2`).
		WithArgs(start, start.AddDate(0, 1, 0)).
		WillReturnResult(pgxmock.NewResult("DELETE", 7))

	repo := NewPostgresRepository(mock)
	n, err := repo.DeleteByMonth(context.Background(), 2025, time.February)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
}

func TestPostgresRepository_QueryByCategory(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	mock.ExpectQuery(`SELECT COALESCE\(SUM\(amount\), 0\)::text`).
		WithArgs("Food", start, end).
		WillReturnRows(pgxmock.NewRows([]string{"sum"}).AddRow("1249.50"))

	repo := NewPostgresRepository(mock)
	sum, err := repo.QueryByCategory(context.Background(), "Food", start, end)
	require.NoError(t, err)
	assert.True(t, sum.Equal(decimal.RequireFromString("1249.5")))
}

func TestPostgresRepository_QueryDistinctAccounts(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT account_last_digits, COUNT\(\*\)`).
		WillReturnRows(pgxmock.NewRows([]string{"account_last_digits", "count"}).
			AddRow("1234", int64(12)).
			AddRow("UPI", int64(3)))

	repo := NewPostgresRepository(mock)
	got, err := repo.QueryDistinctAccounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"1234": 12, "UPI": 3}, got)
}
