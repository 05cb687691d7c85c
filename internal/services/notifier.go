package services

import (
	"context"

	"github.com/fastygo/taskledger/domain"
	"github.com/fastygo/taskledger/usecase"
)

// RelayNotifier wakes the relay whenever a unit of work committed events.
type RelayNotifier struct {
	relay *Relay
}

func NewRelayNotifier(relay *Relay) *RelayNotifier {
	return &RelayNotifier{relay: relay}
}

func (n *RelayNotifier) Notify(_ context.Context, events []domain.Event) {
	if n == nil || len(events) == 0 {
		return
	}
	n.relay.Kick()
}

var _ usecase.EventNotifier = (*RelayNotifier)(nil)
