package eventbus

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/fastygo/taskledger/domain"
)

// NATS publishes events to JetStream under <prefix>.<EventName>. The event id
// is used as the message id so redelivered batches are deduplicated.
type NATS struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	prefix string
}

// ConnectNATS dials the server and ensures the stream exists.
func ConnectNATS(ctx context.Context, url, stream, prefix string) (*NATS, error) {
	if prefix == "" {
		prefix = "ledger"
	}
	nc, err := nats.Connect(url, nats.Name("taskledger"))
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}
	if _, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     stream,
		Subjects: []string{prefix + ".>"},
	}); err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream stream create: %w", err)
	}
	return &NATS{nc: nc, js: js, prefix: prefix}, nil
}

func (n *NATS) Name() string { return "nats" }

func (n *NATS) Publish(ctx context.Context, events []domain.Event) error {
	for _, event := range events {
		data, err := encode(event)
		if err != nil {
			return err
		}
		subject := n.prefix + "." + event.Name
		if _, err := n.js.Publish(ctx, subject, data, jetstream.WithMsgID(event.ID)); err != nil {
			return fmt.Errorf("nats publish %s: %w", subject, err)
		}
	}
	return nil
}

func (n *NATS) Ping(ctx context.Context) error {
	return n.nc.FlushWithContext(ctx)
}

func (n *NATS) Close() error {
	n.nc.Close()
	return nil
}
