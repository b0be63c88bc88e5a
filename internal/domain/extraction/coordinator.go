package extraction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/FACorreiaa/echo-ledger/internal/domain/extraction/normalizer"
	"github.com/FACorreiaa/echo-ledger/internal/domain/transaction"
	"github.com/FACorreiaa/echo-ledger/internal/events"
	"github.com/FACorreiaa/echo-ledger/pkg/money"
)

const (
	// DefaultConfidenceFloor is the minimum confidence accepted from a
	// strategy that is not last in the chain.
	DefaultConfidenceFloor = 0.5

	noPatternMessage = "no matching pattern"
	noModelMessage   = "model found no transaction"
)

// CategorySuggester proposes a category for a merchant. Suggest must not
// modify learned state.
type CategorySuggester interface {
	Suggest(ctx context.Context, merchant string) (string, bool)
}

// Observer receives per-message extraction measurements.
type Observer interface {
	ObserveExtraction(parser string, parsed bool, elapsed time.Duration)
}

// Outcome is the result of extracting one message. The transaction is always
// present; Err holds the last strategy error for unparsed records.
type Outcome struct {
	Transaction *transaction.Transaction
	Strategy    string
	Err         error
}

// BulkResult summarizes a bulk re-parse
type BulkResult struct {
	Processed int
	Succeeded int
	Failed    int
	Canceled  bool
}

// Diagnostics is the extraction state shown on the settings screen
type Diagnostics struct {
	FallbackEnabled bool
	Model           string
	Calls           int64
	LastError       string
}

// ProgressFunc is invoked after each transaction of a bulk re-parse.
type ProgressFunc func(done, total int)

// Coordinator runs the strategy chain and owns the provenance rules.
type Coordinator struct {
	mu              sync.RWMutex
	strategies      []Strategy
	fallbackEnabled bool

	floor        float64
	homeCurrency string

	repo      transaction.Repository
	suggester CategorySuggester
	observer  Observer
	emitter   events.Emitter
	limiter   *rate.Limiter
	tracer    trace.Tracer
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithConfidenceFloor overrides DefaultConfidenceFloor
func WithConfidenceFloor(floor float64) Option {
	return func(c *Coordinator) { c.floor = floor }
}

// WithFallbackEnabled toggles the model fallback at construction time
func WithFallbackEnabled(enabled bool) Option {
	return func(c *Coordinator) { c.fallbackEnabled = enabled }
}

// WithSuggester sets the category suggester used for auto-categorization
func WithSuggester(s CategorySuggester) Option {
	return func(c *Coordinator) { c.suggester = s }
}

// WithObserver sets the metrics observer
func WithObserver(o Observer) Option {
	return func(c *Coordinator) { c.observer = o }
}

// WithEmitter sets the destination of re-parse events
func WithEmitter(e events.Emitter) Option {
	return func(c *Coordinator) { c.emitter = e }
}

// WithReparseDelay spaces model calls during bulk re-parse
func WithReparseDelay(d time.Duration) Option {
	return func(c *Coordinator) {
		if d <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// WithHomeCurrency sets the currency amounts are assumed to be in. Amounts in
// any other currency keep their original currency recorded.
func WithHomeCurrency(code string) Option {
	return func(c *Coordinator) { c.homeCurrency = strings.ToUpper(code) }
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// NewCoordinator builds a coordinator over an ordered chain, typically
// [pattern, model]. Fallback strategies are enabled by default.
func NewCoordinator(repo transaction.Repository, strategies []Strategy, opts ...Option) *Coordinator {
	c := &Coordinator{
		strategies:      strategies,
		fallbackEnabled: true,
		floor:           DefaultConfidenceFloor,
		homeCurrency:    money.INR,
		repo:            repo,
		tracer:          otel.Tracer("github.com/FACorreiaa/echo-ledger/extraction"),
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.emitter == nil {
		c.emitter = events.Nop{}
	}
	return c
}

// SetFallbackEnabled turns the model fallback on or off
func (c *Coordinator) SetFallbackEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fallbackEnabled = enabled
}

// SetModel switches the model used by every fallback strategy
func (c *Coordinator) SetModel(name string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, s := range c.strategies {
		if fb, ok := s.(Fallback); ok {
			fb.SetModel(name)
		}
	}
}

// Diagnostics reports the fallback state and model call statistics
func (c *Coordinator) Diagnostics() Diagnostics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	d := Diagnostics{FallbackEnabled: c.fallbackEnabled}
	for _, s := range c.strategies {
		fb, ok := s.(Fallback)
		if !ok {
			continue
		}
		d.Model = fb.ModelName()
		if src, ok := s.(interface{ CallDiagnostics() (int64, string) }); ok {
			d.Calls, d.LastError = src.CallDiagnostics()
		}
		break
	}
	return d
}

func (c *Coordinator) chain() []Strategy {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Strategy, 0, len(c.strategies))
	for _, s := range c.strategies {
		if _, ok := s.(Fallback); ok && !c.fallbackEnabled {
			continue
		}
		out = append(out, s)
	}
	return out
}

// Extract normalizes and extracts one message. It never fails: messages that
// yield nothing come back as unparsed transactions.
func (c *Coordinator) Extract(ctx context.Context, msg Message) *Outcome {
	ctx, span := c.tracer.Start(ctx, "extraction.Extract",
		trace.WithAttributes(attribute.String("source", string(msg.Source))))
	defer span.End()

	source := msg.Source
	if source == "" {
		source = transaction.SourceSMS
	}
	receivedAt := msg.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = c.now()
	}

	norm := normalizer.Normalize(msg.Raw, receivedAt)
	tx := &transaction.Transaction{
		ID:              uuid.New(),
		RawMessage:      msg.Raw,
		Fingerprint:     norm.Fingerprint,
		Source:          source,
		SourceAccountID: msg.SourceAccountID,
		ReceivedAt:      receivedAt,
		Timestamp:       receivedAt,
		Type:            transaction.TypeDebit,
		Category:        transaction.Uncategorized,
	}

	out := c.run(ctx, tx, norm, nil)
	span.SetAttributes(
		attribute.String("parser", tx.ParserType.String()),
		attribute.Bool("parsed", tx.IsParsed()),
	)
	if out.Err != nil && !errors.Is(out.Err, ErrNoMatch) {
		span.SetStatus(codes.Error, out.Err.Error())
	}
	return out
}

// Reparse re-runs extraction on a stored transaction and persists the new
// extraction fields. Identity, raw message, receipt metadata and a
// user-chosen category are kept.
func (c *Coordinator) Reparse(ctx context.Context, id uuid.UUID) (*Outcome, error) {
	ctx, span := c.tracer.Start(ctx, "extraction.Reparse")
	defer span.End()

	tx, err := c.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load transaction %s: %w", id, err)
	}

	out := c.reparse(ctx, tx, nil)
	if err := c.repo.Update(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to store re-parsed transaction %s: %w", id, err)
	}
	c.emitReparsed(ctx, tx)
	return out, nil
}

// BulkReparse re-parses the given transactions one at a time. Every model
// request, including both steps of a long email, is spaced by the configured
// delay. Cancellation is checked between transactions and a storage failure
// stops the run.
func (c *Coordinator) BulkReparse(ctx context.Context, ids []uuid.UUID, progress ProgressFunc) (*BulkResult, error) {
	ctx, span := c.tracer.Start(ctx, "extraction.BulkReparse",
		trace.WithAttributes(attribute.Int("count", len(ids))))
	defer span.End()

	res := &BulkResult{}
	wait := func(ctx context.Context) error {
		if c.limiter == nil {
			return nil
		}
		return c.limiter.Wait(ctx)
	}

	for i, id := range ids {
		if ctx.Err() != nil {
			res.Canceled = true
			break
		}

		tx, err := c.repo.Get(ctx, id)
		if errors.Is(err, transaction.ErrNotFound) {
			c.logger.Warn("skipping missing transaction during bulk re-parse", slog.String("id", id.String()))
			res.Processed++
			res.Failed++
			c.report(progress, i+1, len(ids))
			continue
		}
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return res, fmt.Errorf("bulk re-parse stopped at transaction %s: %w", id, err)
		}

		c.reparse(ctx, tx, wait)
		if ctx.Err() != nil {
			// The interrupted attempt is not persisted.
			res.Canceled = true
			break
		}

		if err := c.repo.Update(ctx, tx); err != nil {
			span.SetStatus(codes.Error, err.Error())
			return res, fmt.Errorf("bulk re-parse stopped at transaction %s: %w", id, err)
		}
		c.emitReparsed(ctx, tx)

		res.Processed++
		if tx.IsParsed() {
			res.Succeeded++
		} else {
			res.Failed++
		}
		c.report(progress, i+1, len(ids))
	}

	c.logger.Info("bulk re-parse finished",
		slog.Int("processed", res.Processed),
		slog.Int("succeeded", res.Succeeded),
		slog.Int("failed", res.Failed),
		slog.Bool("canceled", res.Canceled),
	)
	return res, nil
}

func (c *Coordinator) emitReparsed(ctx context.Context, tx *transaction.Transaction) {
	c.emitter.Emit(ctx, events.Event{
		Kind: events.KindTransactionReparsed,
		Payload: events.TransactionReparsed{
			TransactionID: tx.ID,
			Parsed:        tx.IsParsed(),
			ParserType:    tx.ParserType.String(),
		},
	})
}

func (c *Coordinator) report(progress ProgressFunc, done, total int) {
	if progress != nil {
		progress(done, total)
	}
}

func (c *Coordinator) reparse(ctx context.Context, tx *transaction.Transaction, pace func(context.Context) error) *Outcome {
	userCategory := tx.Category != transaction.Uncategorized && !tx.AutoCategorized
	category := tx.Category

	tx.ResetExtraction()
	if !userCategory {
		// A learned category belongs to the old merchant.
		tx.Category = transaction.Uncategorized
		tx.AutoCategorized = false
	}
	norm := normalizer.Normalize(tx.RawMessage, tx.ReceivedAt)
	out := c.run(ctx, tx, norm, pace)

	if userCategory {
		tx.Category = category
		tx.AutoCategorized = false
	}
	return out
}

// run walks the strategy chain and writes the outcome into tx. pace is handed
// to the strategies and gates every model request.
func (c *Coordinator) run(ctx context.Context, tx *transaction.Transaction, norm normalizer.Normalized, pace func(context.Context) error) *Outcome {
	start := c.now()
	in := Input{
		Canonical:  norm.Canonical,
		Raw:        tx.RawMessage,
		Source:     tx.Source,
		ReceivedAt: tx.ReceivedAt,
		Pace:       pace,
	}
	if tx.Source == transaction.SourceEmail {
		in.Headers = norm.Headers
	}

	var (
		accepted         *Result
		acceptedBy       Strategy
		candidate        *Result
		candidateBy      Strategy
		lastErr          error
		fallbackTried    bool
		fallbackErr      error
		fallbackNoResult bool
	)

	chain := c.chain()
	for i, s := range chain {
		_, isFallback := s.(Fallback)
		if isFallback {
			fallbackTried = true
		}

		res, err := s.TryExtract(ctx, in)
		if err != nil {
			lastErr = err
			switch {
			case errors.Is(err, ErrNoMatch):
				c.logger.Debug("strategy found no transaction", slog.String("strategy", s.Name()))
				if isFallback {
					fallbackNoResult = true
				}
			default:
				c.logger.Warn("strategy failed", slog.String("strategy", s.Name()), slog.Any("error", err))
				if isFallback {
					fallbackErr = err
				}
			}
			continue
		}

		if res.Confidence >= c.floor || i == len(chain)-1 {
			accepted, acceptedBy = res, s
			break
		}
		if candidate == nil {
			candidate, candidateBy = res, s
		}
	}

	if accepted == nil && candidate != nil {
		accepted, acceptedBy = candidate, candidateBy
	}

	out := &Outcome{Transaction: tx}
	switch {
	case accepted != nil:
		c.applyResult(ctx, tx, accepted, acceptedBy)
		out.Strategy = acceptedBy.Name()
	case fallbackTried && (fallbackErr != nil || fallbackNoResult):
		tx.ParserType = transaction.ModelFailed()
		msg := noModelMessage
		if fallbackErr != nil {
			msg = fallbackErr.Error()
		}
		tx.ParsingError = &msg
		out.Err = lastErr
	default:
		tx.ParserType = transaction.ParserType{}
		tx.ParsingError = transaction.StringPtr(noPatternMessage)
		out.Err = lastErr
		if out.Err == nil {
			out.Err = ErrNoMatch
		}
	}

	elapsed := c.now().Sub(start)
	seconds := elapsed.Seconds()
	tx.ParseTime = &seconds

	if c.observer != nil {
		c.observer.ObserveExtraction(parserLabel(tx.ParserType), tx.IsParsed(), elapsed)
	}
	return out
}

func (c *Coordinator) applyResult(ctx context.Context, tx *transaction.Transaction, res *Result, by Strategy) {
	amount := res.Amount
	tx.Amount = &amount
	tx.Type = res.Type
	if !tx.Type.Valid() {
		tx.Type = transaction.TypeDebit
	}
	tx.Merchant = strings.TrimSpace(res.Merchant)
	tx.AccountLastDigits = res.AccountLastDigits
	tx.Balance = res.Balance
	tx.ParserConfidence = res.Confidence
	tx.ParsingError = nil

	if fb, ok := by.(Fallback); ok {
		if tx.Source == transaction.SourceEmail {
			tx.ParserType = transaction.EmailModel(fb.ModelName())
		} else {
			tx.ParserType = transaction.Model(fb.ModelName())
		}
	} else {
		tx.ParserType = transaction.Pattern()
	}

	if res.Date != nil {
		tx.Timestamp = occurredAt(*res.Date, tx.ReceivedAt)
	}

	if res.Currency != "" && !strings.EqualFold(res.Currency, c.homeCurrency) {
		currency := strings.ToUpper(res.Currency)
		tx.OriginalCurrency = &currency
		tx.OriginalAmount = transaction.DecimalPtr(amount)
	}

	if tx.Category == transaction.Uncategorized || tx.AutoCategorized {
		tx.Category = transaction.Uncategorized
		tx.AutoCategorized = false
		if c.suggester != nil && tx.Merchant != "" {
			if category, ok := c.suggester.Suggest(ctx, tx.Merchant); ok {
				tx.Category = category
				tx.AutoCategorized = true
			}
		}
	}
}

// occurredAt places the extracted date at the receipt time of day. Dates
// after the receipt day are treated as misreads and ignored.
func occurredAt(date, receivedAt time.Time) time.Time {
	ry, rm, rd := receivedAt.Date()
	dy, dm, dd := date.Date()
	if dy == ry && dm == rm && dd == rd {
		return receivedAt
	}
	t := time.Date(dy, dm, dd, receivedAt.Hour(), receivedAt.Minute(), receivedAt.Second(), 0, receivedAt.Location())
	if t.After(receivedAt) {
		return receivedAt
	}
	return t
}

func parserLabel(p transaction.ParserType) string {
	switch p.Kind {
	case transaction.ParserPattern:
		return "pattern"
	case transaction.ParserModel:
		return "model"
	case transaction.ParserEmailModel:
		return "email"
	case transaction.ParserModelFailed:
		return "model_failed"
	default:
		return "none"
	}
}
