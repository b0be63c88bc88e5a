package recurring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/echo-ledger/internal/domain/transaction"
)

var seriesRowColumns = []string{
	"id", "merchant", "category", "type", "frequency", "average_amount",
	"occurrence_count", "first_occurrence", "last_occurrence", "next_expected_date",
	"confidence_score", "is_active", "updated_at",
}

func sampleSeries() *Series {
	next := onDays(93)[0]
	return &Series{
		ID:               SeriesID("NETFLIX", "Entertainment"),
		Merchant:         "NETFLIX",
		Category:         "Entertainment",
		Type:             transaction.TypeDebit,
		Frequency:        FrequencyMonthly,
		AverageAmount:    decimal.NewFromInt(499),
		OccurrenceCount:  3,
		FirstOccurrence:  onDays(1)[0],
		LastOccurrence:   onDays(62)[0],
		NextExpectedDate: &next,
		ConfidenceScore:  0.98,
		IsActive:         true,
	}
}

func TestPostgresRepository_ReplaceAll(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := sampleSeries()
	mock.ExpectBegin()
	expectLockAndInactive(mock)
	mock.ExpectExec(`DELETE FROM recurring_series`).
		WillReturnResult(pgxmock.NewResult("DELETE", 4))
	mock.ExpectExec(`INSERT INTO recurring_series`).
		WithArgs(s.ID, "NETFLIX", "Entertainment", "debit", "monthly", s.AverageAmount,
			3, s.FirstOccurrence, s.LastOccurrence, s.NextExpectedDate, 0.98, true).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	repo := NewPostgresRepository(mock)
	require.NoError(t, repo.ReplaceAll(context.Background(), []*Series{s}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func expectLockAndInactive(mock pgxmock.PgxPoolIface, inactive ...uuid.UUID) {
	mock.ExpectExec(`LOCK TABLE recurring_series IN EXCLUSIVE MODE`).
		WillReturnResult(pgxmock.NewResult("LOCK TABLE", 0))
	rows := pgxmock.NewRows([]string{"id"})
	for _, id := range inactive {
		rows.AddRow(id)
	}
	mock.ExpectQuery(`SELECT id FROM recurring_series WHERE NOT is_active`).WillReturnRows(rows)
}

func TestPostgresRepository_ReplaceAllKeepsInactive(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := sampleSeries()
	mock.ExpectBegin()
	expectLockAndInactive(mock, s.ID)
	mock.ExpectExec(`DELETE FROM recurring_series`).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`INSERT INTO recurring_series`).
		WithArgs(s.ID, "NETFLIX", "Entertainment", "debit", "monthly", s.AverageAmount,
			3, s.FirstOccurrence, s.LastOccurrence, s.NextExpectedDate, 0.98, false).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	repo := NewPostgresRepository(mock)
	require.NoError(t, repo.ReplaceAll(context.Background(), []*Series{s}))
	assert.False(t, s.IsActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_ReplaceAllRollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	expectLockAndInactive(mock)
	mock.ExpectExec(`DELETE FROM recurring_series`).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`INSERT INTO recurring_series`).
		WillReturnError(errors.New("check constraint violated"))
	mock.ExpectRollback()

	repo := NewPostgresRepository(mock)
	err = repo.ReplaceAll(context.Background(), []*Series{sampleSeries()})
	assert.ErrorContains(t, err, "failed to insert series")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_List(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := sampleSeries()
	now := time.Now()
	mock.ExpectQuery(`SELECT id, merchant, category`).
		WillReturnRows(pgxmock.NewRows(seriesRowColumns).
			AddRow(s.ID, s.Merchant, s.Category, "debit", "monthly", "499.00",
				3, s.FirstOccurrence, s.LastOccurrence, s.NextExpectedDate, 0.98, true, now).
			AddRow(SeriesID("BIGBASKET", "Groceries"), "BIGBASKET", "Groceries", "debit", "irregular", "1200.00",
				3, s.FirstOccurrence, s.LastOccurrence, nil, 0.4, false, now))

	repo := NewPostgresRepository(mock)
	list, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Equal(t, FrequencyMonthly, list[0].Frequency)
	assert.True(t, decimal.NewFromInt(499).Equal(list[0].AverageAmount))
	require.NotNil(t, list[0].NextExpectedDate)
	assert.Nil(t, list[1].NextExpectedDate)
	assert.False(t, list[1].IsActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_SetActive(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		wantErr  error
	}{
		{"updated", 1, nil},
		{"missing", 0, ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			id := SeriesID("GYM", "Health")
			mock.ExpectExec(`UPDATE recurring_series SET is_active`).
				WithArgs(id, false).
				WillReturnResult(pgxmock.NewResult("UPDATE", tt.affected))

			err = NewPostgresRepository(mock).SetActive(context.Background(), id, false)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
