package eventbus

import (
	"context"

	"go.uber.org/zap"

	"github.com/fastygo/taskledger/domain"
)

// Log writes events to the application log. It is the sink used when no
// broker is configured.
type Log struct {
	logger *zap.Logger
}

func NewLog(logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{logger: logger.Named("events")}
}

func (l *Log) Name() string { return "log" }

func (l *Log) Publish(_ context.Context, events []domain.Event) error {
	for _, event := range events {
		l.logger.Info("ledger event",
			zap.Uint64("seq", event.Seq),
			zap.String("name", event.Name),
			zap.String("aggregate_id", event.AggregateID),
			zap.ByteString("payload", event.Payload),
		)
	}
	return nil
}

func (l *Log) Ping(context.Context) error { return nil }

func (l *Log) Close() error { return nil }
