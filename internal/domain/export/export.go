// Package export writes the ledger to CSV and XLSX.
package export

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/FACorreiaa/echo-ledger/internal/domain/transaction"
)

const (
	transactionsSheet = "Transactions"
	summarySheet      = "By Category"
	dateLayout        = "2006-01-02 15:04"
)

// Row is one exported transaction
type Row struct {
	ID               string `csv:"id"`
	Date             string `csv:"date"`
	Type             string `csv:"type"`
	Amount           string `csv:"amount"`
	Merchant         string `csv:"merchant"`
	Category         string `csv:"category"`
	Account          string `csv:"account"`
	Balance          string `csv:"balance"`
	OriginalCurrency string `csv:"original_currency"`
	OriginalAmount   string `csv:"original_amount"`
	Parser           string `csv:"parser"`
	Confidence       string `csv:"confidence"`
	Parsed           bool   `csv:"parsed"`
	ParsingError     string `csv:"parsing_error"`
	RawMessage       string `csv:"raw_message"`
}

var headers = []string{
	"id", "date", "type", "amount", "merchant", "category", "account", "balance",
	"original_currency", "original_amount", "parser", "confidence", "parsed",
	"parsing_error", "raw_message",
}

// Rows converts transactions to export rows, oldest first
func Rows(txs []*transaction.Transaction) []*Row {
	sorted := make([]*transaction.Transaction, len(txs))
	copy(sorted, txs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })

	rows := make([]*Row, 0, len(sorted))
	for _, tx := range sorted {
		rows = append(rows, toRow(tx))
	}
	return rows
}

func toRow(tx *transaction.Transaction) *Row {
	r := &Row{
		ID:             tx.ID.String(),
		Date:           tx.Timestamp.Format(dateLayout),
		Type:           string(tx.Type),
		Amount:         decimalString(tx.Amount),
		Merchant:       tx.Merchant,
		Category:       tx.Category,
		Account:        tx.Account(),
		Balance:        decimalString(tx.Balance),
		OriginalAmount: decimalString(tx.OriginalAmount),
		Parser:         tx.ParserType.String(),
		Confidence:     strconv.FormatFloat(tx.ParserConfidence, 'f', 2, 64),
		Parsed:         tx.IsParsed(),
		RawMessage:     tx.RawMessage,
	}
	if tx.OriginalCurrency != nil {
		r.OriginalCurrency = *tx.OriginalCurrency
	}
	if tx.ParsingError != nil {
		r.ParsingError = *tx.ParsingError
	}
	return r
}

// WriteCSV writes the ledger as CSV with a header row
func WriteCSV(w io.Writer, txs []*transaction.Transaction) error {
	rows := Rows(txs)
	if err := gocsv.Marshal(&rows, w); err != nil {
		return fmt.Errorf("failed to write CSV: %w", err)
	}
	return nil
}

// WriteXLSX writes the ledger workbook: one sheet of transactions and one of
// debit totals per category.
func WriteXLSX(w io.Writer, txs []*transaction.Transaction) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", transactionsSheet); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}

	for col, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(transactionsSheet, cell, h); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}

	sorted := make([]*transaction.Transaction, len(txs))
	copy(sorted, txs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })

	for i, tx := range sorted {
		row := toRow(tx)
		values := []any{
			row.ID, tx.Timestamp, row.Type, floatOrEmpty(tx.Amount), row.Merchant, row.Category,
			row.Account, floatOrEmpty(tx.Balance), row.OriginalCurrency, floatOrEmpty(tx.OriginalAmount),
			row.Parser, tx.ParserConfidence, row.Parsed, row.ParsingError, row.RawMessage,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(transactionsSheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := writeSummary(f, sorted); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeSummary(f *excelize.File, txs []*transaction.Transaction) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("failed to add summary sheet: %w", err)
	}

	totals := CategoryTotals(txs)
	categories := make([]string, 0, len(totals))
	for c := range totals {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	if err := f.SetSheetRow(summarySheet, "A1", &[]any{"category", "total"}); err != nil {
		return fmt.Errorf("failed to write summary header: %w", err)
	}
	for i, c := range categories {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(summarySheet, cell, &[]any{c, totals[c].InexactFloat64()}); err != nil {
			return fmt.Errorf("failed to write summary row: %w", err)
		}
	}
	return nil
}

// CategoryTotals sums parsed debits per category
func CategoryTotals(txs []*transaction.Transaction) map[string]decimal.Decimal {
	totals := make(map[string]decimal.Decimal)
	for _, tx := range txs {
		if tx.Type != transaction.TypeDebit || tx.Amount == nil {
			continue
		}
		totals[tx.Category] = totals[tx.Category].Add(*tx.Amount)
	}
	return totals
}

// FileName suggests an export file name for the given extension
func FileName(now time.Time, ext string) string {
	return fmt.Sprintf("ledger-%s.%s", now.Format("20060102-150405"), ext)
}

func decimalString(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.String()
}

func floatOrEmpty(d *decimal.Decimal) any {
	if d == nil {
		return ""
	}
	return d.InexactFloat64()
}
