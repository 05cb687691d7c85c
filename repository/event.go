package repository

import (
	"context"

	"github.com/fastygo/taskledger/domain"
)

type EventFilter struct {
	AfterSeq    uint64
	Name        string
	AggregateID string
	Limit       int
}

// Matches reports whether event passes the filter.
func (f EventFilter) Matches(event *domain.Event) bool {
	if event == nil || event.Seq <= f.AfterSeq {
		return false
	}
	if f.Name != "" && event.Name != f.Name {
		return false
	}
	if f.AggregateID != "" && event.AggregateID != f.AggregateID {
		return false
	}
	return true
}

// EventRepository is the append-only event log and doubles as the outbox the
// relay drains. Append assigns Seq to each event in order.
type EventRepository interface {
	Append(ctx context.Context, events ...*domain.Event) error
	Pending(ctx context.Context, limit int) ([]domain.Event, error)
	MarkPublished(ctx context.Context, seqs ...uint64) error
	List(ctx context.Context, filter EventFilter) ([]domain.Event, error)
}
