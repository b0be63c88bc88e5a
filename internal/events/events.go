// Package events carries pipeline notifications to the host (notification
// UI, widgets, metrics) without the core knowing who listens.
package events

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind names an event
type Kind string

const (
	KindTransactionIngested Kind = "transactionIngested"
	KindTransactionReparsed Kind = "transactionReparsed"
	KindSyncCompleted       Kind = "syncCompleted"
	KindSeriesRebuilt       Kind = "seriesRebuilt"
)

// Event is a single notification. Payload is one of the payload types below.
type Event struct {
	Kind    Kind
	At      time.Time
	Payload any
}

// TransactionIngested is emitted once per newly stored transaction
type TransactionIngested struct {
	TransactionID uuid.UUID
	Parsed        bool
	ParserType    string
}

// TransactionReparsed is emitted after a re-parsed transaction is stored
type TransactionReparsed struct {
	TransactionID uuid.UUID
	Parsed        bool
	ParserType    string
}

// SyncCompleted is emitted at the end of every batch sync
type SyncCompleted struct {
	NewCount       int
	DuplicateCount int
	FailedCount    int
}

// SeriesRebuilt is emitted after the recurring series are replaced
type SeriesRebuilt struct {
	SeriesCount   int
	OverdueCount  int
	UpcomingCount int
}

// Emitter publishes events
type Emitter interface {
	Emit(ctx context.Context, ev Event)
}

// Handler consumes events
type Handler func(ctx context.Context, ev Event)

// Nop discards everything
type Nop struct{}

// Emit implements Emitter
func (Nop) Emit(context.Context, Event) {}

// Bus fans events out to subscribers synchronously, in subscription order.
// A panicking handler is logged and does not affect the others.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]subscription
	nextID int
	logger *slog.Logger
	now    func() time.Time
}

type subscription struct {
	kinds   map[Kind]bool
	handler Handler
}

// NewBus creates an event bus
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subs:   make(map[int]subscription),
		logger: logger,
		now:    time.Now,
	}
}

// Subscribe registers h for the given kinds, or for every kind when none are
// given. The returned func removes the subscription.
func (b *Bus) Subscribe(h Handler, kinds ...Kind) func() {
	sub := subscription{handler: h}
	if len(kinds) > 0 {
		sub.kinds = make(map[Kind]bool, len(kinds))
		for _, k := range kinds {
			sub.kinds[k] = true
		}
	}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = sub
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// Emit implements Emitter
func (b *Bus) Emit(ctx context.Context, ev Event) {
	if ev.At.IsZero() {
		ev.At = b.now()
	}

	b.mu.RLock()
	ids := make([]int, 0, len(b.subs))
	for id := range b.subs {
		ids = append(ids, id)
	}
	subs := make([]subscription, 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		subs = append(subs, b.subs[id])
	}
	b.mu.RUnlock()

	for _, sub := range subs {
		if sub.kinds != nil && !sub.kinds[ev.Kind] {
			continue
		}
		b.deliver(ctx, sub.handler, ev)
	}
}

func (b *Bus) deliver(ctx context.Context, h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				slog.String("kind", string(ev.Kind)),
				slog.Any("panic", r),
			)
		}
	}()
	h(ctx, ev)
}
