package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/FACorreiaa/echo-ledger/internal/domain/extraction"
	"github.com/FACorreiaa/echo-ledger/internal/domain/transaction"
	"github.com/FACorreiaa/echo-ledger/internal/events"
)

// DefaultSyncWorkers bounds concurrent extractions within one batch
const DefaultSyncWorkers = 4

// Extractor turns a raw message into a transaction. *extraction.Coordinator
// satisfies it.
type Extractor interface {
	Extract(ctx context.Context, msg extraction.Message) *extraction.Outcome
}

// SyncObserver receives the outcome of each batch
type SyncObserver interface {
	ObserveSync(newCount, duplicateCount, failedCount int, elapsed time.Duration)
}

// SyncResult summarizes a batch sync
type SyncResult struct {
	NewCount       int
	DuplicateCount int
	FailedCount    int
	Errors         []error
}

func (r *SyncResult) add(o *SyncResult) {
	r.NewCount += o.NewCount
	r.DuplicateCount += o.DuplicateCount
	r.FailedCount += o.FailedCount
	r.Errors = append(r.Errors, o.Errors...)
}

// Service runs batch syncs
type Service struct {
	extractor Extractor
	repo      transaction.Repository
	gate      *Gate
	workers   int
	emitter   events.Emitter
	observer  SyncObserver
	logger    *slog.Logger
	tracer    trace.Tracer
}

// Option configures a Service
type Option func(*Service)

// WithGate replaces the default dedup gate
func WithGate(g *Gate) Option {
	return func(s *Service) { s.gate = g }
}

// WithWorkers sets the extraction pool size
func WithWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithEmitter sets where ingest events go
func WithEmitter(e events.Emitter) Option {
	return func(s *Service) { s.emitter = e }
}

// WithObserver registers a sync observer
func WithObserver(o SyncObserver) Option {
	return func(s *Service) { s.observer = o }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a new ingest service
func NewService(extractor Extractor, repo transaction.Repository, opts ...Option) *Service {
	s := &Service{
		extractor: extractor,
		repo:      repo,
		gate:      NewGate(DefaultWindowDays, DefaultMerchantSimilarity),
		workers:   DefaultSyncWorkers,
		emitter:   events.Nop{},
		tracer:    otel.Tracer("github.com/FACorreiaa/echo-ledger/ingest"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// SyncBatch extracts and stores a batch of messages. Messages are processed
// oldest first; extraction runs in parallel but commits, and therefore
// deduplication, happen strictly in that order against persisted rows.
// Nothing is rolled back when a commit fails midway.
func (s *Service) SyncBatch(ctx context.Context, msgs []extraction.Message) (*SyncResult, error) {
	ctx, span := s.tracer.Start(ctx, "ingest.SyncBatch",
		trace.WithAttributes(attribute.Int("messages", len(msgs))))
	defer span.End()

	start := time.Now()
	ordered := make([]extraction.Message, len(msgs))
	copy(ordered, msgs)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].ReceivedAt.Before(ordered[j].ReceivedAt)
	})

	outcomes := make([]*extraction.Outcome, len(ordered))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, msg := range ordered {
		g.Go(func() error {
			outcomes[i] = s.extractor.Extract(gctx, msg)
			return nil
		})
	}
	_ = g.Wait()

	result := &SyncResult{}
	var err error
	for i, out := range outcomes {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
			break
		}
		if out == nil || out.Transaction == nil {
			result.FailedCount++
			result.Errors = append(result.Errors, fmt.Errorf("message %d produced no transaction", i))
			continue
		}
		s.commit(ctx, out.Transaction, result)
	}

	span.SetAttributes(
		attribute.Int("new", result.NewCount),
		attribute.Int("duplicates", result.DuplicateCount),
		attribute.Int("failed", result.FailedCount),
	)
	if s.observer != nil {
		s.observer.ObserveSync(result.NewCount, result.DuplicateCount, result.FailedCount, time.Since(start))
	}
	s.emitter.Emit(ctx, events.Event{
		Kind: events.KindSyncCompleted,
		Payload: events.SyncCompleted{
			NewCount:       result.NewCount,
			DuplicateCount: result.DuplicateCount,
			FailedCount:    result.FailedCount,
		},
	})

	s.logger.Info("sync batch completed",
		slog.Int("messages", len(msgs)),
		slog.Int("new", result.NewCount),
		slog.Int("duplicates", result.DuplicateCount),
		slog.Int("failed", result.FailedCount),
	)
	return result, err
}

func (s *Service) commit(ctx context.Context, tx *transaction.Transaction, result *SyncResult) {
	start, end := s.gate.Window(tx)
	window, err := s.repo.QueryWindow(ctx, tx.AccountLastDigits, start, end)
	if err != nil {
		s.fail(result, tx, fmt.Errorf("failed to load dedup window: %w", err))
		return
	}

	if dup, reason := s.gate.IsDuplicate(tx, window); dup {
		result.DuplicateCount++
		s.logger.Debug("duplicate message skipped",
			slog.String("reason", string(reason)),
			slog.String("fingerprint", tx.Fingerprint),
		)
		return
	}

	if err := s.repo.Append(ctx, tx); err != nil {
		s.fail(result, tx, fmt.Errorf("failed to store transaction: %w", err))
		return
	}

	result.NewCount++
	s.emitter.Emit(ctx, events.Event{
		Kind: events.KindTransactionIngested,
		Payload: events.TransactionIngested{
			TransactionID: tx.ID,
			Parsed:        tx.IsParsed(),
			ParserType:    tx.ParserType.String(),
		},
	})
}

func (s *Service) fail(result *SyncResult, tx *transaction.Transaction, err error) {
	result.FailedCount++
	result.Errors = append(result.Errors, err)
	s.logger.Error("sync commit failed",
		slog.String("transaction_id", tx.ID.String()),
		slog.Any("error", err),
	)
}

// SyncFrom drains a connector, syncing messages in batches of batchSize.
// Connector errors are collected in the result.
func (s *Service) SyncFrom(ctx context.Context, conn Connector, batchSize int) (*SyncResult, error) {
	if batchSize <= 0 {
		batchSize = 100
	}

	msgs, errs := conn.Messages(ctx)
	total := &SyncResult{}
	batch := make([]extraction.Message, 0, batchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		res, err := s.SyncBatch(ctx, batch)
		if res != nil {
			total.add(res)
		}
		batch = batch[:0]
		return err
	}

	for msgs != nil || errs != nil {
		select {
		case <-ctx.Done():
			return total, ctx.Err()
		case m, ok := <-msgs:
			if !ok {
				msgs = nil
				continue
			}
			batch = append(batch, m)
			if len(batch) >= batchSize {
				if err := flush(); err != nil {
					return total, err
				}
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				s.logger.Warn("connector error", slog.Any("error", err))
				total.Errors = append(total.Errors, err)
			}
		}
	}

	if err := flush(); err != nil {
		return total, err
	}
	return total, nil
}
