package categorization

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ErrEmptyMerchant is returned when an edit names no merchant
var ErrEmptyMerchant = errors.New("merchant is empty")

// Learner records user category edits and suggests categories for merchants
// it has seen. Only explicit user edits change what it has learned.
type Learner struct {
	store  AssociationStore
	logger *slog.Logger
}

// NewLearner creates a new category learner
func NewLearner(store AssociationStore, logger *slog.Logger) *Learner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Learner{store: store, logger: logger}
}

// RecordUserEdit reinforces the association between merchant and category.
func (l *Learner) RecordUserEdit(ctx context.Context, merchant, category string) error {
	key := NormalizeKey(merchant)
	if key == "" {
		return ErrEmptyMerchant
	}
	category = strings.TrimSpace(category)

	a, err := l.store.Upsert(ctx, key, category)
	if err != nil {
		return fmt.Errorf("failed to record category edit: %w", err)
	}

	l.logger.Debug("learned category association",
		slog.String("merchant_key", key),
		slog.String("category", a.Category),
		slog.Int("count", a.Count),
	)
	return nil
}

// Suggest returns the learned category for merchant. It never writes.
func (l *Learner) Suggest(ctx context.Context, merchant string) (string, bool) {
	key := NormalizeKey(merchant)
	if key == "" {
		return "", false
	}

	a, err := l.store.Get(ctx, key)
	if err != nil {
		l.logger.Warn("category lookup failed", slog.String("merchant_key", key), slog.Any("error", err))
		return "", false
	}
	if a == nil || a.Category == "" {
		return "", false
	}
	return a.Category, true
}

// Associations lists everything the learner knows
func (l *Learner) Associations(ctx context.Context) ([]Association, error) {
	return l.store.List(ctx)
}

// Forget removes the association for merchant
func (l *Learner) Forget(ctx context.Context, merchant string) error {
	return l.store.Delete(ctx, NormalizeKey(merchant))
}
