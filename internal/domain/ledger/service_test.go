package ledger

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/echo-ledger/internal/domain/categorization"
	"github.com/FACorreiaa/echo-ledger/internal/domain/extraction"
	"github.com/FACorreiaa/echo-ledger/internal/domain/extraction/pattern"
	"github.com/FACorreiaa/echo-ledger/internal/domain/search"
	"github.com/FACorreiaa/echo-ledger/internal/domain/transaction"
	"github.com/FACorreiaa/echo-ledger/internal/events"
)

type fixture struct {
	repo    *transaction.MemoryRepository
	learner *categorization.Learner
	index   *search.Index
	svc     *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	idx, err := search.NewIndex("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	repo := transaction.NewMemoryRepository()
	learner := categorization.NewLearner(categorization.NewMemoryStore(), nil)
	return &fixture{
		repo:    repo,
		learner: learner,
		index:   idx,
		svc:     NewService(repo, learner, idx, nil),
	}
}

func (f *fixture) add(t *testing.T, merchant, category, amount string, at time.Time, account *string) *transaction.Transaction {
	t.Helper()
	tx := &transaction.Transaction{
		ID:                uuid.New(),
		RawMessage:        "Rs." + amount + " debited at " + merchant,
		Merchant:          merchant,
		Category:          category,
		Type:              transaction.TypeDebit,
		Amount:            transaction.DecimalPtr(decimal.RequireFromString(amount)),
		Timestamp:         at,
		ReceivedAt:        at,
		AccountLastDigits: account,
		ParserType:        transaction.Pattern(),
	}
	require.NoError(t, f.repo.Append(context.Background(), tx))
	require.NoError(t, f.index.Upsert(tx))
	return tx
}

var jan = time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)

func TestEditCategory_TeachesLearner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.learner.RecordUserEdit(ctx, "SWIGGY", "Food"))
	swiggy := f.add(t, "SWIGGY", "Food", "250", jan, nil)
	swiggy.AutoCategorized = true
	require.NoError(t, f.repo.Update(ctx, swiggy))

	basket := f.add(t, "BIGBASKET", transaction.Uncategorized, "1200", jan, nil)

	edited, err := f.svc.EditCategory(ctx, basket.ID, "Groceries")
	require.NoError(t, err)
	assert.Equal(t, "Groceries", edited.Category)
	assert.False(t, edited.AutoCategorized)

	got, ok := f.learner.Suggest(ctx, "BIGBASKET")
	require.True(t, ok)
	assert.Equal(t, "Groceries", got)

	got, ok = f.learner.Suggest(ctx, "SWIGGY")
	require.True(t, ok)
	assert.Equal(t, "Food", got)

	stored, err := f.repo.Get(ctx, swiggy.ID)
	require.NoError(t, err)
	assert.Equal(t, "Food", stored.Category)
	assert.True(t, stored.AutoCategorized)

	hits, err := f.index.ByCategory("Groceries", 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, basket.ID, hits[0].ID)
}

func TestEditCategory_NextMessageAutoCategorized(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	basket := f.add(t, "BIGBASKET", transaction.Uncategorized, "1200", jan, nil)
	_, err := f.svc.EditCategory(ctx, basket.ID, "Groceries")
	require.NoError(t, err)

	coord := extraction.NewCoordinator(f.repo, []extraction.Strategy{pattern.New()},
		extraction.WithSuggester(f.learner))
	out := coord.Extract(ctx, extraction.Message{
		Raw:        "Rs.800 debited from A/c XX1234 at BIGBASKET on 12-01-2024",
		ReceivedAt: jan.AddDate(0, 0, 2),
	})

	assert.Equal(t, "Groceries", out.Transaction.Category)
	assert.True(t, out.Transaction.AutoCategorized)
}

func TestEditCategory_Errors(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.EditCategory(context.Background(), uuid.New(), "Food")
	assert.ErrorIs(t, err, transaction.ErrNotFound)

	_, err = f.svc.EditCategory(context.Background(), uuid.New(), "  ")
	assert.ErrorIs(t, err, ErrEmptyCategory)
}

func TestAggregates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	card := transaction.StringPtr("1234")

	f.add(t, "BIGBASKET", "Groceries", "1200", jan, card)
	f.add(t, "DMART", "Groceries", "800.50", jan.AddDate(0, 0, 5), card)
	f.add(t, "BIGBASKET", "Groceries", "999", jan.AddDate(0, 1, 0), nil)
	f.add(t, "UBER", "Travel", "300", jan, transaction.StringPtr("5678"))

	total, err := f.svc.CategoryTotal(ctx, "Groceries", jan.AddDate(0, 0, -9), jan.AddDate(0, 0, 22))
	require.NoError(t, err)
	assert.Equal(t, "2000.5", total.String())

	monthly, err := f.svc.MonthlyCategoryTotals(ctx, 2024, time.January, nil)
	require.NoError(t, err)
	assert.Equal(t, "2000.5", monthly["Groceries"].String())
	assert.Equal(t, "300", monthly["Travel"].String())

	usage, err := f.svc.AccountUsage(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"1234": 2, "5678": 1}, usage)
}

func TestDeletes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	a := f.add(t, "AMAZON", "Shopping", "500", jan, nil)
	f.add(t, "NETFLIX", "Entertainment", "499", jan.AddDate(0, 0, 1), nil)
	f.add(t, "NETFLIX", "Entertainment", "499", jan.AddDate(0, 1, 0), nil)

	require.NoError(t, f.svc.Delete(ctx, a.ID))
	assert.Equal(t, 2, f.repo.Len())

	n, err := f.svc.DeleteByMonth(ctx, 2024, time.January)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	count, err := f.index.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)

	n, err = f.svc.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Zero(t, f.repo.Len())
}

func TestSearchAndIngestEvents(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	tx := &transaction.Transaction{
		ID: uuid.New(), Merchant: "ZOMATO", Category: "Food", Type: transaction.TypeDebit,
		Amount: transaction.DecimalPtr(decimal.NewFromInt(420)), Timestamp: jan,
		RawMessage: "Rs.420 spent at ZOMATO",
	}
	require.NoError(t, f.repo.Append(ctx, tx))

	bus := events.NewBus(nil)
	bus.Subscribe(f.svc.HandleEvent, events.KindTransactionIngested)
	bus.Emit(ctx, events.Event{
		Kind:    events.KindTransactionIngested,
		Payload: events.TransactionIngested{TransactionID: tx.ID, Parsed: true},
	})

	found, err := f.svc.Search(ctx, "zomatoo", 5)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, tx.ID, found[0].ID)
}

func TestReparsedEventReindexes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tx := f.add(t, "UNKNOWN SHOP", transaction.Uncategorized, "649", jan, nil)

	found, err := f.svc.Search(ctx, "netflix", 5)
	require.NoError(t, err)
	assert.Empty(t, found)

	tx.Merchant = "NETFLIX"
	require.NoError(t, f.repo.Update(ctx, tx))

	bus := events.NewBus(nil)
	bus.Subscribe(f.svc.HandleEvent, events.KindTransactionIngested, events.KindTransactionReparsed)
	bus.Emit(ctx, events.Event{
		Kind:    events.KindTransactionReparsed,
		Payload: events.TransactionReparsed{TransactionID: tx.ID, Parsed: true, ParserType: "model:m"},
	})

	found, err = f.svc.Search(ctx, "netflix", 5)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "NETFLIX", found[0].Merchant)
}

func TestExport(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.add(t, "AMAZON", "Shopping", "500", jan, nil)

	var csvBuf, xlsxBuf bytes.Buffer
	require.NoError(t, f.svc.Export(ctx, &csvBuf, FormatCSV))
	assert.Contains(t, csvBuf.String(), "AMAZON")

	require.NoError(t, f.svc.Export(ctx, &xlsxBuf, FormatXLSX))
	assert.NotZero(t, xlsxBuf.Len())

	assert.Error(t, f.svc.Export(ctx, &csvBuf, Format("pdf")))
}
