// Package search keeps a full-text index of the ledger for merchant and
// message lookup.
package search

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/google/uuid"

	"github.com/FACorreiaa/echo-ledger/internal/domain/transaction"
)

const defaultLimit = 10

// Document is the indexed projection of a transaction
type Document struct {
	ID         string    `json:"id"`
	Merchant   string    `json:"merchant"`
	Category   string    `json:"category"`
	RawMessage string    `json:"raw_message"`
	Type       string    `json:"type"`
	Account    string    `json:"account"`
	Amount     float64   `json:"amount"`
	Timestamp  time.Time `json:"timestamp"`
}

// Hit is a search result
type Hit struct {
	ID       uuid.UUID
	Merchant string
	Category string
	Score    float64
}

// Index is a bleve index over transactions. An empty path keeps it in memory.
type Index struct {
	index bleve.Index
	mu    sync.RWMutex
	path  string
}

// NewIndex creates or opens an index at path
func NewIndex(path string) (*Index, error) {
	var (
		idx bleve.Index
		err error
	)

	m := buildMapping()
	switch {
	case path == "":
		idx, err = bleve.NewMemOnly(m)
	default:
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			if mkdirErr := os.MkdirAll(filepath.Dir(path), 0o755); mkdirErr != nil {
				return nil, fmt.Errorf("failed to create index directory: %w", mkdirErr)
			}
			idx, err = bleve.New(path, m)
		} else {
			idx, err = bleve.Open(path)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create/open index: %w", err)
	}

	return &Index{index: idx, path: path}, nil
}

func buildMapping() mapping.IndexMapping {
	text := bleve.NewTextFieldMapping()
	text.Analyzer = simple.Name

	kw := bleve.NewTextFieldMapping()
	kw.Analyzer = keyword.Name

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("merchant", text)
	doc.AddFieldMappingsAt("raw_message", text)
	doc.AddFieldMappingsAt("category", kw)
	doc.AddFieldMappingsAt("type", kw)
	doc.AddFieldMappingsAt("account", kw)
	doc.AddFieldMappingsAt("amount", bleve.NewNumericFieldMapping())
	doc.AddFieldMappingsAt("timestamp", bleve.NewDateTimeFieldMapping())

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	m.DefaultAnalyzer = simple.Name
	return m
}

func toDocument(tx *transaction.Transaction) Document {
	d := Document{
		ID:         tx.ID.String(),
		Merchant:   tx.Merchant,
		Category:   tx.Category,
		RawMessage: tx.RawMessage,
		Type:       string(tx.Type),
		Account:    tx.Account(),
		Timestamp:  tx.Timestamp,
	}
	if tx.Amount != nil {
		d.Amount = tx.Amount.InexactFloat64()
	}
	return d
}

// IndexAll adds or replaces many transactions in one batch
func (i *Index) IndexAll(txs []*transaction.Transaction) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	batch := i.index.NewBatch()
	for _, tx := range txs {
		d := toDocument(tx)
		if err := batch.Index(d.ID, d); err != nil {
			return fmt.Errorf("failed to index transaction %s: %w", tx.ID, err)
		}
	}
	if err := i.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to execute batch index: %w", err)
	}
	return nil
}

// Upsert indexes a single transaction
func (i *Index) Upsert(tx *transaction.Transaction) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	d := toDocument(tx)
	return i.index.Index(d.ID, d)
}

// Remove drops a transaction from the index
func (i *Index) Remove(id uuid.UUID) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	return i.index.Delete(id.String())
}

// Search runs a match query with one edit of typo tolerance
func (i *Index) Search(text string, limit int) ([]Hit, error) {
	q := bleve.NewMatchQuery(text)
	q.SetFuzziness(1)
	return i.run(q, limit, "search")
}

// SearchPrefix is an autocomplete-style lookup
func (i *Index) SearchPrefix(prefix string, limit int) ([]Hit, error) {
	return i.run(bleve.NewPrefixQuery(strings.ToLower(prefix)), limit, "prefix search")
}

// SearchAdvanced accepts query-string syntax such as "+uber -eats"
func (i *Index) SearchAdvanced(queryString string, limit int) ([]Hit, error) {
	return i.run(bleve.NewQueryStringQuery(queryString), limit, "advanced search")
}

// ByCategory finds transactions with exactly this category
func (i *Index) ByCategory(category string, limit int) ([]Hit, error) {
	q := bleve.NewTermQuery(category)
	q.SetField("category")
	if limit <= 0 {
		limit = 100
	}
	return i.run(q, limit, "category search")
}

func (i *Index) run(q query.Query, limit int, op string) ([]Hit, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if limit <= 0 {
		limit = defaultLimit
	}
	req := bleve.NewSearchRequest(q)
	req.Size = limit
	req.Fields = []string{"merchant", "category"}

	res, err := i.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w", op, err)
	}
	return convertResults(res), nil
}

func convertResults(res *bleve.SearchResult) []Hit {
	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		id, err := uuid.Parse(h.ID)
		if err != nil {
			continue
		}
		hit := Hit{ID: id, Score: h.Score}
		if v, ok := h.Fields["merchant"].(string); ok {
			hit.Merchant = v
		}
		if v, ok := h.Fields["category"].(string); ok {
			hit.Category = v
		}
		hits = append(hits, hit)
	}
	return hits
}

// Clear removes every document
func (i *Index) Clear() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	count, err := i.index.DocCount()
	if err != nil {
		return fmt.Errorf("failed to count documents: %w", err)
	}
	req := bleve.NewSearchRequest(bleve.NewMatchAllQuery())
	req.Size = int(count)

	res, err := i.index.Search(req)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	batch := i.index.NewBatch()
	for _, h := range res.Hits {
		batch.Delete(h.ID)
	}
	if err := i.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to delete documents: %w", err)
	}
	return nil
}

// Count returns the number of indexed transactions
func (i *Index) Count() (uint64, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.index.DocCount()
}

// Close releases the index
func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.index != nil {
		return i.index.Close()
	}
	return nil
}
