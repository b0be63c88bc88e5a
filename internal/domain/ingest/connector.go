package ingest

import (
	"context"

	"github.com/FACorreiaa/echo-ledger/internal/domain/extraction"
)

// Connector streams raw messages from a source such as an SMS inbox or a
// mailbox. Both channels are closed when the source is exhausted. Errors on
// the error channel are reported and do not end the stream.
type Connector interface {
	Messages(ctx context.Context) (<-chan extraction.Message, <-chan error)
}
