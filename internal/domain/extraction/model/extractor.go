// Package model implements the remote-model fallback extraction strategy.
package model

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/FACorreiaa/echo-ledger/internal/domain/extraction"
	"github.com/FACorreiaa/echo-ledger/internal/domain/extraction/pattern"
	"github.com/FACorreiaa/echo-ledger/internal/domain/transaction"
)

// Name is the strategy name of the model extractor.
const Name = "model"

const (
	// DefaultConfidence is used when the model omits a confidence value.
	DefaultConfidence = 0.7
	// DefaultEmailTwoStepThreshold is the body length above which emails are
	// reduced to an excerpt before extraction.
	DefaultEmailTwoStepThreshold = 1500
)

// Submitter sends one prompt to a hosted model and returns its text answer.
type Submitter interface {
	Submit(ctx context.Context, model, prompt string) (string, error)
}

// SubmitterFunc adapts a function to Submitter
type SubmitterFunc func(ctx context.Context, model, prompt string) (string, error)

// Submit implements Submitter
func (f SubmitterFunc) Submit(ctx context.Context, model, prompt string) (string, error) {
	return f(ctx, model, prompt)
}

// Extractor is the fallback strategy backed by a remote model.
type Extractor struct {
	submitter Submitter
	schema    *jsonschema.Schema
	stats     *CallStats
	logger    *slog.Logger

	emailThreshold int

	mu    sync.RWMutex
	model string
}

var _ extraction.Fallback = (*Extractor)(nil)

// Option configures an Extractor
type Option func(*Extractor)

// WithStats injects the process-wide call statistics handle
func WithStats(stats *CallStats) Option {
	return func(e *Extractor) { e.stats = stats }
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) { e.logger = logger }
}

// WithEmailTwoStepThreshold sets the body length that triggers two-step email extraction
func WithEmailTwoStepThreshold(chars int) Option {
	return func(e *Extractor) { e.emailThreshold = chars }
}

// New creates a model extractor
func New(submitter Submitter, modelName string, opts ...Option) (*Extractor, error) {
	schema, err := compileSchema()
	if err != nil {
		return nil, fmt.Errorf("failed to compile response schema: %w", err)
	}

	e := &Extractor{
		submitter:      submitter,
		schema:         schema,
		model:          modelName,
		emailThreshold: DefaultEmailTwoStepThreshold,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.stats == nil {
		e.stats = NewCallStats()
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e, nil
}

// Name implements extraction.Strategy
func (e *Extractor) Name() string { return Name }

// ModelName returns the model currently in use
func (e *Extractor) ModelName() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.model
}

// SetModel switches the model used by subsequent calls
func (e *Extractor) SetModel(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.model = name
}

// Stats returns the call statistics handle
func (e *Extractor) Stats() *CallStats {
	return e.stats
}

// CallDiagnostics returns the call count and last error for diagnostics.
func (e *Extractor) CallDiagnostics() (int64, string) {
	snap := e.stats.Snapshot()
	return snap.Calls, snap.LastError
}

// TryExtract asks the model for a transaction. Long email bodies are first
// reduced to a transaction excerpt. in.Pace, when set, runs before every
// request. The outcome is recorded in the call statistics once the answer is
// decoded, so a malformed answer is reported as the last error.
func (e *Extractor) TryExtract(ctx context.Context, in extraction.Input) (*extraction.Result, error) {
	var submitted bool
	res, err := e.extract(ctx, in, &submitted)
	if submitted {
		if errors.Is(err, extraction.ErrNoMatch) {
			e.stats.Settle(nil)
		} else {
			e.stats.Settle(err)
		}
	}
	return res, err
}

func (e *Extractor) extract(ctx context.Context, in extraction.Input, submitted *bool) (*extraction.Result, error) {
	text := strings.TrimSpace(in.Canonical)
	if text == "" {
		return nil, extraction.ErrNoMatch
	}

	var headers string
	if in.Source == transaction.SourceEmail {
		headers = strings.TrimSpace(in.Headers)
	}

	if in.Source == transaction.SourceEmail && e.emailThreshold > 0 && len(text) > e.emailThreshold {
		excerpt, err := e.submit(ctx, in.Pace, BuildExcerptPrompt(headers, text), submitted)
		if err != nil {
			return nil, err
		}
		excerpt = strings.TrimSpace(excerpt)
		if excerpt == "" || strings.EqualFold(excerpt, NoExcerpt) {
			e.logger.Debug("email carries no transaction excerpt", slog.Int("body_len", len(text)))
			return nil, extraction.ErrNoMatch
		}
		text = excerpt
	}

	raw, err := e.submit(ctx, in.Pace, BuildPrompt(headers, text), submitted)
	if err != nil {
		return nil, err
	}

	p, err := decodeResponse(e.schema, raw)
	if err != nil {
		return nil, err
	}
	if !p.IsTransaction {
		return nil, extraction.ErrNoMatch
	}

	amount, err := decimalField(p.Amount)
	if err != nil {
		return nil, &SchemaError{Raw: raw, Err: fmt.Errorf("amount: %w", err)}
	}
	if amount == nil {
		return nil, extraction.ErrNoMatch
	}
	balance, err := decimalField(p.Balance)
	if err != nil {
		e.logger.Debug("ignoring unparseable balance", slog.String("error", err.Error()))
		balance = nil
	}

	res := &extraction.Result{
		Amount:            amount.Abs(),
		Type:              transaction.TypeDebit,
		Balance:           balance,
		AccountLastDigits: p.accountDigits(),
		Confidence:        DefaultConfidence,
	}
	if p.Type != nil && strings.EqualFold(*p.Type, string(transaction.TypeCredit)) {
		res.Type = transaction.TypeCredit
	}
	if p.Merchant != nil {
		res.Merchant = pattern.CleanMerchant(*p.Merchant)
	}
	if p.Currency != nil {
		res.Currency = strings.ToUpper(strings.TrimSpace(*p.Currency))
	}
	if p.Confidence != nil {
		res.Confidence = clamp(*p.Confidence)
	}
	if p.Date != nil {
		if d, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(*p.Date), location(in.ReceivedAt)); err == nil {
			res.Date = &d
		}
	}
	return res, nil
}

func (e *Extractor) submit(ctx context.Context, pace func(context.Context) error, prompt string, submitted *bool) (string, error) {
	if pace != nil {
		if err := pace(ctx); err != nil {
			return "", err
		}
	}

	model := e.ModelName()
	*submitted = true
	e.stats.Count()

	raw, err := e.submitter.Submit(ctx, model, prompt)
	if err == nil && strings.TrimSpace(raw) == "" {
		err = ErrEmptyResponse
	}
	if err != nil {
		return "", &ModelError{Model: model, Err: err}
	}
	return raw, nil
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func location(t time.Time) *time.Location {
	if t.IsZero() {
		return time.UTC
	}
	return t.Location()
}
