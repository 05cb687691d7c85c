// Package eventbus delivers ledger events to external subscribers. The ledger
// only guarantees what is recorded in its event log; sinks are best-effort
// transports fed by the relay, which retries until a sink accepts a batch.
package eventbus

import (
	"context"
	"encoding/json"

	"github.com/fastygo/taskledger/domain"
)

// Sink publishes events in log order.
type Sink interface {
	Name() string
	Publish(ctx context.Context, events []domain.Event) error
	Ping(ctx context.Context) error
	Close() error
}

func encode(event domain.Event) ([]byte, error) {
	return json.Marshal(event)
}
