package categorization

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var associationColumns = []string{"merchant_key", "category", "count", "updated_at"}

func TestPostgresStore_Get(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Now()
	mock.ExpectQuery(`SELECT merchant_key, category, count, updated_at`).
		WithArgs("bigbasket").
		WillReturnRows(pgxmock.NewRows(associationColumns).AddRow("bigbasket", "Groceries", 2, now))

	store := NewPostgresStore(mock)
	a, err := store.Get(context.Background(), "bigbasket")
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, "Groceries", a.Category)
	assert.Equal(t, 2, a.Count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetMissing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT merchant_key`).
		WithArgs("nobody").
		WillReturnError(pgx.ErrNoRows)

	store := NewPostgresStore(mock)
	a, err := store.Get(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, a)
}

func TestPostgresStore_Upsert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Now()
	mock.ExpectQuery(`INSERT INTO category_associations`).
		WithArgs("uber", "Transport").
		WillReturnRows(pgxmock.NewRows(associationColumns).AddRow("uber", "Transport", 4, now))

	store := NewPostgresStore(mock)
	a, err := store.Upsert(context.Background(), "uber", "Transport")
	require.NoError(t, err)
	assert.Equal(t, 4, a.Count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`INSERT INTO category_associations`).
		WithArgs("uber", "Transport").
		WillReturnError(errors.New("deadlock detected"))

	store := NewPostgresStore(mock)
	_, err = store.Upsert(context.Background(), "uber", "Transport")
	assert.ErrorContains(t, err, "failed to upsert association")
}

func TestPostgresStore_List(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Now()
	mock.ExpectQuery(`ORDER BY count DESC`).
		WillReturnRows(pgxmock.NewRows(associationColumns).
			AddRow("zomato", "Food", 5, now).
			AddRow("airtel", "Utilities", 1, now))

	store := NewPostgresStore(mock)
	list, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "zomato", list[0].Key)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Delete(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`DELETE FROM category_associations`).
		WithArgs("zomato").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	store := NewPostgresStore(mock)
	require.NoError(t, store.Delete(context.Background(), "zomato"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
