package postgres

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/fastygo/taskledger/domain"
	"github.com/fastygo/taskledger/repository"
)

type eventRepository struct {
	q    querier
	lock bool
}

const eventColumns = `seq, id, name, aggregate_id, payload, created_at, published_at`

func (r *eventRepository) Append(ctx context.Context, events ...*domain.Event) error {
	const query = `
	INSERT INTO ledger_events (id, name, aggregate_id, payload, created_at)
	VALUES ($1, $2, $3, $4, COALESCE($5, NOW()))
	RETURNING seq
	`
	for _, event := range events {
		var seq int64
		if err := r.q.QueryRow(ctx, query,
			event.ID,
			event.Name,
			event.AggregateID,
			[]byte(event.Payload),
			nullTime(event.CreatedAt),
		).Scan(&seq); err != nil {
			return fmt.Errorf("append event %s: %w", event.Name, err)
		}
		event.Seq = toUint64(seq)
	}
	return nil
}

func (r *eventRepository) Pending(ctx context.Context, limit int) ([]domain.Event, error) {
	// SKIP LOCKED keeps concurrent read-write drains off each other's rows.
	query := `SELECT ` + eventColumns + ` FROM ledger_events
	WHERE published_at IS NULL
	ORDER BY seq
	LIMIT $1` + forUpdate(r.lock, "FOR UPDATE SKIP LOCKED")
	return r.query(ctx, query, repository.ClampLimit(limit))
}

func (r *eventRepository) MarkPublished(ctx context.Context, seqs ...uint64) error {
	if len(seqs) == 0 {
		return nil
	}
	keys := make([]int64, 0, len(seqs))
	for _, seq := range seqs {
		key, err := toInt64(seq)
		if err != nil {
			return err
		}
		keys = append(keys, key)
	}
	_, err := r.q.Exec(ctx,
		`UPDATE ledger_events SET published_at = $2 WHERE seq = ANY($1) AND published_at IS NULL`,
		keys, time.Now().UTC(),
	)
	return err
}

func (r *eventRepository) List(ctx context.Context, filter repository.EventFilter) ([]domain.Event, error) {
	if filter.AfterSeq > math.MaxInt64 {
		return nil, nil
	}
	after := int64(filter.AfterSeq)
	query := `SELECT ` + eventColumns + ` FROM ledger_events
	WHERE seq > $1
	  AND ($2::text = '' OR name = $2::text)
	  AND ($3::text = '' OR aggregate_id = $3::text)
	ORDER BY seq
	LIMIT $4`
	return r.query(ctx, query, after, filter.Name, filter.AggregateID, repository.ClampLimit(filter.Limit))
}

func (r *eventRepository) query(ctx context.Context, query string, args ...any) ([]domain.Event, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var (
			event   domain.Event
			seq     int64
			payload []byte
		)
		if err := rows.Scan(&seq, &event.ID, &event.Name, &event.AggregateID, &payload, &event.CreatedAt, &event.PublishedAt); err != nil {
			return nil, err
		}
		event.Seq = toUint64(seq)
		event.Payload = make([]byte, len(payload))
		copy(event.Payload, payload)
		events = append(events, event)
	}
	return events, rows.Err()
}
