package eventbus

import (
	"context"
	"fmt"
	"strconv"

	goRedis "github.com/redis/go-redis/v9"

	"github.com/fastygo/taskledger/domain"
)

// RedisStream appends events to a Redis stream with XADD.
type RedisStream struct {
	client *goRedis.Client
	stream string
	maxLen int64
}

func NewRedisStream(client *goRedis.Client, stream string, maxLen int64) *RedisStream {
	if stream == "" {
		stream = "ledger:events"
	}
	return &RedisStream{client: client, stream: stream, maxLen: maxLen}
}

func (r *RedisStream) Name() string { return "redis" }

func (r *RedisStream) Publish(ctx context.Context, events []domain.Event) error {
	pipe := r.client.TxPipeline()
	for _, event := range events {
		args := &goRedis.XAddArgs{
			Stream: r.stream,
			Values: map[string]interface{}{
				"seq":          strconv.FormatUint(event.Seq, 10),
				"id":           event.ID,
				"name":         event.Name,
				"aggregate_id": event.AggregateID,
				"payload":      string(event.Payload),
				"created_at":   event.CreatedAt.UnixMilli(),
			},
		}
		if r.maxLen > 0 {
			args.MaxLen = r.maxLen
			args.Approx = true
		}
		pipe.XAdd(ctx, args)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis xadd %s: %w", r.stream, err)
	}
	return nil
}

func (r *RedisStream) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close is a no-op; the client is owned by the caller.
func (r *RedisStream) Close() error { return nil }
