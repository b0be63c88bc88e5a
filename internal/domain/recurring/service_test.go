package recurring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/echo-ledger/internal/domain/transaction"
	"github.com/FACorreiaa/echo-ledger/internal/events"
)

type staticSource []*transaction.Transaction

func (s staticSource) QueryAll(context.Context) ([]*transaction.Transaction, error) {
	return s, nil
}

type errSource struct{}

func (errSource) QueryAll(context.Context) ([]*transaction.Transaction, error) {
	return nil, errors.New("connection refused")
}

type lastEvent struct{ ev events.Event }

func (l *lastEvent) Emit(_ context.Context, ev events.Event) { l.ev = ev }

func history() staticSource {
	day := func(n int) time.Time { return onDays(n)[0] }
	return staticSource{
		// monthly, next expected day 93
		debit("NETFLIX", "Entertainment", 499, day(1)),
		debit("NETFLIX", "Entertainment", 499, day(31)),
		debit("NETFLIX", "Entertainment", 499, day(62)),
		// irregular
		debit("BIGBASKET", "Groceries", 1200, day(1)),
		debit("BIGBASKET", "Groceries", 900, day(10)),
		debit("BIGBASKET", "Groceries", 1500, day(40)),
		// weekly, next expected day 64
		debit("GYM", "Health", 300, day(50)),
		debit("GYM", "Health", 300, day(57)),
	}
}

func TestService_Rebuild(t *testing.T) {
	repo := NewMemoryRepository()
	rec := &lastEvent{}
	svc := NewService(history(), repo, WithEmitter(rec))

	now := onDays(90)[0]
	res, err := svc.Rebuild(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, res.Series, 3)
	assert.Zero(t, res.Skipped)

	byMerchant := map[string]*Series{}
	for _, s := range res.Series {
		byMerchant[s.Merchant] = s
		assert.GreaterOrEqual(t, s.OccurrenceCount, 2)
		assert.False(t, s.FirstOccurrence.After(s.LastOccurrence))
	}

	netflix := byMerchant["NETFLIX"]
	assert.Equal(t, FrequencyMonthly, netflix.Frequency)
	require.NotNil(t, netflix.NextExpectedDate)
	assert.Equal(t, onDays(93)[0], *netflix.NextExpectedDate)
	assert.Equal(t, StatusUpcoming, netflix.Status)
	assert.Equal(t, SeriesID("NETFLIX", "Entertainment"), netflix.ID)

	grocery := byMerchant["BIGBASKET"]
	assert.Equal(t, FrequencyIrregular, grocery.Frequency)
	assert.Nil(t, grocery.NextExpectedDate)
	assert.Equal(t, StatusQuiet, grocery.Status)
	assert.Equal(t, "1200", grocery.AverageAmount.String())

	assert.Equal(t, StatusOverdue, byMerchant["GYM"].Status)
	assert.Equal(t, 1, res.Overdue)
	assert.Equal(t, 1, res.Upcoming)

	assert.Equal(t, events.KindSeriesRebuilt, rec.ev.Kind)
	payload := rec.ev.Payload.(events.SeriesRebuilt)
	assert.Equal(t, 1, payload.OverdueCount)
	assert.Equal(t, 1, payload.UpcomingCount)

	stored, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, stored, 3)
}

func TestService_InactiveSurvivesRebuild(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	svc := NewService(history(), repo)
	now := onDays(90)[0]

	_, err := svc.Rebuild(ctx, now)
	require.NoError(t, err)

	id := SeriesID("GYM", "Health")
	require.NoError(t, svc.SetActive(ctx, id, false))

	overdue, err := svc.ListOverdue(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, overdue)

	res, err := svc.Rebuild(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, res.Overdue)

	gym, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, gym.IsActive)

	all, err := svc.List(ctx, now)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	upcoming, err := svc.ListUpcoming(ctx, now)
	require.NoError(t, err)
	require.Len(t, upcoming, 1)
	assert.Equal(t, "NETFLIX", upcoming[0].Merchant)
}

func TestService_RebuildReplacesWholesale(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	now := onDays(90)[0]

	_, err := NewService(history(), repo).Rebuild(ctx, now)
	require.NoError(t, err)

	_, err = NewService(history()[:3], repo).Rebuild(ctx, now)
	require.NoError(t, err)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "NETFLIX", all[0].Merchant)
}

func TestService_SetActiveUnknown(t *testing.T) {
	svc := NewService(history(), NewMemoryRepository())
	err := svc.SetActive(context.Background(), SeriesID("x", "y"), false)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_RebuildSourceError(t *testing.T) {
	svc := NewService(errSource{}, NewMemoryRepository())
	_, err := svc.Rebuild(context.Background(), time.Now())
	assert.ErrorContains(t, err, "failed to read transactions")
}

// togglingSource pauses a series while the rebuild is reading the ledger.
type togglingSource struct {
	staticSource
	repo Repository
	id   uuid.UUID
}

func (s togglingSource) QueryAll(ctx context.Context) ([]*transaction.Transaction, error) {
	if err := s.repo.SetActive(ctx, s.id, false); err != nil {
		return nil, err
	}
	return s.staticSource, nil
}

func TestService_SetActiveDuringRebuildIsKept(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	now := onDays(90)[0]

	_, err := NewService(history(), repo).Rebuild(ctx, now)
	require.NoError(t, err)

	id := SeriesID("GYM", "Health")
	svc := NewService(togglingSource{staticSource: history(), repo: repo, id: id}, repo)
	res, err := svc.Rebuild(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, res.Overdue)

	gym, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, gym.IsActive)

	for _, s := range res.Series {
		if s.ID == id {
			assert.False(t, s.IsActive)
		}
	}
}
