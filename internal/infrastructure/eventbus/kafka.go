package eventbus

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	kgo "github.com/segmentio/kafka-go"

	"github.com/fastygo/taskledger/domain"
)

// Kafka writes events to a topic keyed by aggregate id, so events of one task
// land on one partition in order.
type Kafka struct {
	brokers []string
	writer  *kgo.Writer
	timeout time.Duration
}

func NewKafka(brokersCSV, topic string) (*Kafka, error) {
	brokers := splitCSV(brokersCSV)
	if len(brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	if topic == "" {
		return nil, errors.New("kafka: topic is required")
	}
	w := &kgo.Writer{
		Addr:                   kgo.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kgo.Hash{},
		RequiredAcks:           kgo.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Kafka{brokers: brokers, writer: w, timeout: 5 * time.Second}, nil
}

func (k *Kafka) Name() string { return "kafka" }

func (k *Kafka) Publish(ctx context.Context, events []domain.Event) error {
	msgs := make([]kgo.Message, 0, len(events))
	for _, event := range events {
		value, err := encode(event)
		if err != nil {
			return err
		}
		msgs = append(msgs, kgo.Message{
			Key:   []byte(event.AggregateID),
			Value: value,
			Time:  event.CreatedAt,
			Headers: []kgo.Header{
				{Key: "event", Value: []byte(event.Name)},
				{Key: "event_id", Value: []byte(event.ID)},
			},
		})
	}

	cctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()
	if err := k.writer.WriteMessages(cctx, msgs...); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	return nil
}

func (k *Kafka) Ping(ctx context.Context) error {
	var lastErr error
	for _, broker := range k.brokers {
		conn, err := kgo.DialContext(ctx, "tcp", broker)
		if err != nil {
			lastErr = err
			continue
		}
		return conn.Close()
	}
	return lastErr
}

func (k *Kafka) Close() error { return k.writer.Close() }

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
