// Package connector provides message sources for batch sync.
package connector

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/FACorreiaa/echo-ledger/internal/domain/extraction"
	"github.com/FACorreiaa/echo-ledger/internal/domain/transaction"
)

const maxLineBytes = 1 << 20

// Record is one line of a JSONL export
type Record struct {
	Raw        string    `json:"raw"`
	ReceivedAt time.Time `json:"received_at"`
	Source     string    `json:"source,omitempty"`
	Account    string    `json:"account,omitempty"`
}

// JSONL streams messages from newline-delimited JSON. Malformed lines are
// reported on the error channel and skipped.
type JSONL struct {
	open func() (io.ReadCloser, error)
	name string
}

// NewJSONLFile reads messages from a file on disk
func NewJSONLFile(path string) *JSONL {
	return &JSONL{
		name: path,
		open: func() (io.ReadCloser, error) { return os.Open(path) },
	}
}

// NewJSONL reads messages from r
func NewJSONL(r io.Reader) *JSONL {
	return &JSONL{
		name: "reader",
		open: func() (io.ReadCloser, error) { return io.NopCloser(r), nil },
	}
}

// Messages implements ingest.Connector
func (c *JSONL) Messages(ctx context.Context) (<-chan extraction.Message, <-chan error) {
	out := make(chan extraction.Message)
	errs := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errs)

		rc, err := c.open()
		if err != nil {
			errs <- fmt.Errorf("failed to open %s: %w", c.name, err)
			return
		}
		defer rc.Close()

		scanner := bufio.NewScanner(rc)
		scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

		line := 0
		for scanner.Scan() {
			line++
			text := strings.TrimSpace(scanner.Text())
			if text == "" {
				continue
			}

			msg, err := decodeLine(text)
			if err != nil {
				select {
				case errs <- fmt.Errorf("%s:%d: %w", c.name, line, err):
				case <-ctx.Done():
					return
				}
				continue
			}

			select {
			case out <- msg:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			select {
			case errs <- fmt.Errorf("failed to read %s: %w", c.name, err):
			case <-ctx.Done():
			}
		}
	}()

	return out, errs
}

func decodeLine(text string) (extraction.Message, error) {
	var rec Record
	if err := json.Unmarshal([]byte(text), &rec); err != nil {
		return extraction.Message{}, fmt.Errorf("invalid record: %w", err)
	}
	if strings.TrimSpace(rec.Raw) == "" {
		return extraction.Message{}, fmt.Errorf("record has no raw message")
	}

	source := transaction.SourceSMS
	if strings.EqualFold(rec.Source, string(transaction.SourceEmail)) {
		source = transaction.SourceEmail
	}
	return extraction.Message{
		Raw:             rec.Raw,
		ReceivedAt:      rec.ReceivedAt,
		Source:          source,
		SourceAccountID: rec.Account,
	}, nil
}
