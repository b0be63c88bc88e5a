package recurring

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/echo-ledger/internal/domain/transaction"
	"github.com/FACorreiaa/echo-ledger/internal/events"
)

// Snapshotter reads the full transaction history
type Snapshotter interface {
	QueryAll(ctx context.Context) ([]*transaction.Transaction, error)
}

// RebuildObserver receives the outcome of each rebuild
type RebuildObserver interface {
	ObserveRebuild(series, skipped int, elapsed time.Duration)
}

// RebuildResult summarizes a rebuild
type RebuildResult struct {
	Series   []*Series
	Skipped  int
	Overdue  int
	Upcoming int
}

// Service rebuilds and lists recurring series
type Service struct {
	source    Snapshotter
	repo      Repository
	bands     []Band
	predictor *Predictor
	emitter   events.Emitter
	observer  RebuildObserver
	logger    *slog.Logger
	tracer    trace.Tracer
}

// Option configures a Service
type Option func(*Service)

// WithBands overrides the frequency bands
func WithBands(bands []Band) Option {
	return func(s *Service) {
		if len(bands) > 0 {
			s.bands = bands
		}
	}
}

// WithPredictor overrides the schedule predictor
func WithPredictor(p *Predictor) Option {
	return func(s *Service) { s.predictor = p }
}

// WithEmitter sets where rebuild events go
func WithEmitter(e events.Emitter) Option {
	return func(s *Service) { s.emitter = e }
}

// WithObserver registers a rebuild observer
func WithObserver(o RebuildObserver) Option {
	return func(s *Service) { s.observer = o }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a new recurring series service
func NewService(source Snapshotter, repo Repository, opts ...Option) *Service {
	s := &Service{
		source:    source,
		repo:      repo,
		bands:     DefaultBands(),
		predictor: NewPredictor(DefaultUpcomingDays),
		emitter:   events.Nop{},
		tracer:    otel.Tracer("github.com/FACorreiaa/echo-ledger/recurring"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Rebuild recomputes every series from a snapshot of the ledger and replaces
// the stored set. A user's IsActive=false choice is carried over by ID by the
// repository inside the swap, so a SetActive racing the rebuild is not lost.
func (s *Service) Rebuild(ctx context.Context, now time.Time) (*RebuildResult, error) {
	ctx, span := s.tracer.Start(ctx, "recurring.Rebuild")
	defer span.End()
	start := time.Now()

	txs, err := s.source.QueryAll(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to read transactions: %w", err)
	}

	candidates, skipped := BuildSeries(txs)
	result := &RebuildResult{Skipped: skipped, Series: make([]*Series, 0, len(candidates))}

	for _, c := range candidates {
		cls := Classify(c.Dates, c.Amounts, s.bands)
		last := c.Dates[len(c.Dates)-1]

		result.Series = append(result.Series, &Series{
			ID:               SeriesID(c.Merchant, c.Category),
			Merchant:         c.Merchant,
			Category:         c.Category,
			Type:             transaction.TypeDebit,
			Frequency:        cls.Frequency,
			AverageAmount:    cls.AverageAmount,
			OccurrenceCount:  len(c.Dates),
			FirstOccurrence:  c.Dates[0],
			LastOccurrence:   last,
			NextExpectedDate: s.predictor.NextExpected(last, cls.Frequency),
			ConfidenceScore:  cls.Confidence,
			IsActive:         true,
			UpdatedAt:        now,
		})
	}

	if err := s.repo.ReplaceAll(ctx, result.Series); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to store series: %w", err)
	}

	for _, series := range result.Series {
		series.Status = s.predictor.StatusAt(series, now)
		if !series.IsActive {
			continue
		}
		switch series.Status {
		case StatusOverdue:
			result.Overdue++
		case StatusUpcoming:
			result.Upcoming++
		}
	}

	span.SetAttributes(
		attribute.Int("series", len(result.Series)),
		attribute.Int("skipped", skipped),
	)
	if s.observer != nil {
		s.observer.ObserveRebuild(len(result.Series), skipped, time.Since(start))
	}
	s.emitter.Emit(ctx, events.Event{
		Kind: events.KindSeriesRebuilt,
		Payload: events.SeriesRebuilt{
			SeriesCount:   len(result.Series),
			OverdueCount:  result.Overdue,
			UpcomingCount: result.Upcoming,
		},
	})

	if skipped > 0 {
		s.logger.Warn("skipped corrupt transactions during rebuild", slog.Int("skipped", skipped))
	}
	s.logger.Info("recurring series rebuilt",
		slog.Int("series", len(result.Series)),
		slog.Int("overdue", result.Overdue),
		slog.Int("upcoming", result.Upcoming),
	)
	return result, nil
}

// List returns every series with its status at now, inactive ones included
func (s *Service) List(ctx context.Context, now time.Time) ([]*Series, error) {
	series, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list series: %w", err)
	}
	for _, sr := range series {
		sr.Status = s.predictor.StatusAt(sr, now)
	}
	return series, nil
}

// ListOverdue returns active series whose next date has passed
func (s *Service) ListOverdue(ctx context.Context, now time.Time) ([]*Series, error) {
	return s.listByStatus(ctx, now, StatusOverdue)
}

// ListUpcoming returns active series expected within the upcoming window
func (s *Service) ListUpcoming(ctx context.Context, now time.Time) ([]*Series, error) {
	return s.listByStatus(ctx, now, StatusUpcoming)
}

func (s *Service) listByStatus(ctx context.Context, now time.Time, status Status) ([]*Series, error) {
	all, err := s.List(ctx, now)
	if err != nil {
		return nil, err
	}
	out := make([]*Series, 0, len(all))
	for _, sr := range all {
		if sr.IsActive && sr.Status == status {
			out = append(out, sr)
		}
	}
	return out, nil
}

// SetActive lets the user hide a series without losing its history
func (s *Service) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		return fmt.Errorf("failed to set series %s active=%t: %w", id, active, err)
	}
	return nil
}
