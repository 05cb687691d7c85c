package usecase

import (
	"context"

	"github.com/fastygo/taskledger/domain"
)

// EventNotifier is told about events right after the unit of work that
// recorded them has committed. Delivery itself is the relay's job; a notifier
// only shortens the wait until the next drain.
type EventNotifier interface {
	Notify(ctx context.Context, events []domain.Event)
}

// NopNotifier ignores every notification.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, []domain.Event) {}
