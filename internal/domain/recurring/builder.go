package recurring

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/echo-ledger/internal/domain/transaction"
)

// Candidate is a group of debits sharing merchant and category, with
// occurrences sorted ascending.
type Candidate struct {
	Merchant string
	Category string
	Dates    []time.Time
	Amounts  []decimal.Decimal
}

type groupKey struct {
	merchant string
	category string
}

type occurrence struct {
	at     time.Time
	amount decimal.Decimal
}

// BuildSeries groups parsed debits by exact (merchant, category). Groups with
// a single occurrence are dropped. Corrupt rows are excluded and counted in
// skipped.
func BuildSeries(txs []*transaction.Transaction) (candidates []Candidate, skipped int) {
	groups := make(map[groupKey][]occurrence)

	for _, tx := range txs {
		if tx == nil {
			skipped++
			continue
		}
		if corrupt(tx) {
			skipped++
			continue
		}
		if tx.Type != transaction.TypeDebit || !tx.IsParsed() {
			continue
		}
		k := groupKey{merchant: tx.Merchant, category: tx.Category}
		groups[k] = append(groups[k], occurrence{at: tx.Timestamp, amount: *tx.Amount})
	}

	for k, occ := range groups {
		if len(occ) < 2 {
			continue
		}
		sort.SliceStable(occ, func(i, j int) bool { return occ[i].at.Before(occ[j].at) })

		c := Candidate{
			Merchant: k.merchant,
			Category: k.category,
			Dates:    make([]time.Time, len(occ)),
			Amounts:  make([]decimal.Decimal, len(occ)),
		}
		for i, o := range occ {
			c.Dates[i] = o.at
			c.Amounts[i] = o.amount
		}
		candidates = append(candidates, c)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Merchant != candidates[j].Merchant {
			return candidates[i].Merchant < candidates[j].Merchant
		}
		return candidates[i].Category < candidates[j].Category
	})
	return candidates, skipped
}

// corrupt reports rows that cannot be placed on a timeline or summed.
func corrupt(tx *transaction.Transaction) bool {
	if tx.Timestamp.IsZero() {
		return true
	}
	if tx.Amount != nil && tx.Amount.IsNegative() {
		return true
	}
	// a successful provenance with no amount means the row was damaged in storage
	if tx.Amount == nil && tx.ParsingError == nil && isSuccess(tx.ParserType) {
		return true
	}
	return false
}

func isSuccess(p transaction.ParserType) bool {
	switch p.Kind {
	case transaction.ParserPattern, transaction.ParserModel, transaction.ParserEmailModel:
		return true
	}
	return false
}
