package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fastygo/taskledger/domain"
	"github.com/fastygo/taskledger/repository"
	"github.com/fastygo/taskledger/repository/memory"
)

type fakeSink struct {
	name string

	mu      sync.Mutex
	fail    error
	batches [][]domain.Event
}

func (s *fakeSink) Name() string { return s.name }

func (s *fakeSink) Publish(_ context.Context, events []domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.batches = append(s.batches, append([]domain.Event(nil), events...))
	return nil
}

func (s *fakeSink) seqs() []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []uint64
	for _, batch := range s.batches {
		for _, e := range batch {
			out = append(out, e.Seq)
		}
	}
	return out
}

func (s *fakeSink) setFail(err error) {
	s.mu.Lock()
	s.fail = err
	s.mu.Unlock()
}

type staticHealth bool

func (h staticHealth) IsOnline() bool { return bool(h) }

func appendEvents(t *testing.T, store repository.Store, n int) {
	t.Helper()
	err := store.Atomically(context.Background(), func(tx repository.Tx) error {
		for i := 0; i < n; i++ {
			event, err := domain.NewEvent(domain.EventTaskCreated, domain.TaskAggregateID(uint64(i)), domain.TaskCreated{TaskID: uint64(i)})
			if err != nil {
				return err
			}
			if err := tx.Events().Append(context.Background(), &event); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("append events: %v", err)
	}
}

func pendingCount(t *testing.T, store repository.Store) int {
	t.Helper()
	var n int
	err := store.Atomically(context.Background(), func(tx repository.Tx) error {
		pending, err := tx.Events().Pending(context.Background(), 100)
		n = len(pending)
		return err
	})
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	return n
}

func TestDrainDeliversInOrderInBatches(t *testing.T) {
	store := memory.New()
	appendEvents(t, store, 5)
	a, b := &fakeSink{name: "a"}, &fakeSink{name: "b"}

	relay := NewRelay(store, []Sink{a, b}, staticHealth(true), nil, RelayConfig{Interval: time.Hour, BatchSize: 2})
	if err := relay.Drain(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}

	for _, sink := range []*fakeSink{a, b} {
		got := sink.seqs()
		if len(got) != 5 {
			t.Fatalf("sink %s: expected 5 events, got %v", sink.name, got)
		}
		for i, seq := range got {
			if seq != uint64(i+1) {
				t.Fatalf("sink %s: expected seq %d at %d, got %d", sink.name, i+1, i, seq)
			}
		}
		if len(sink.batches) != 3 {
			t.Fatalf("sink %s: expected 3 batches, got %d", sink.name, len(sink.batches))
		}
	}
	if n := pendingCount(t, store); n != 0 {
		t.Fatalf("expected empty outbox, got %d", n)
	}
	if relay.Backlog() != 0 {
		t.Fatalf("expected zero backlog, got %d", relay.Backlog())
	}
}

func TestDrainFailureKeepsEventsPending(t *testing.T) {
	store := memory.New()
	appendEvents(t, store, 3)
	ok, broken := &fakeSink{name: "ok"}, &fakeSink{name: "broken", fail: errors.New("broker down")}

	relay := NewRelay(store, []Sink{ok, broken}, nil, nil, RelayConfig{Interval: time.Hour, BatchSize: 10})
	if err := relay.Drain(context.Background()); err == nil {
		t.Fatalf("expected drain error")
	}
	if n := pendingCount(t, store); n != 3 {
		t.Fatalf("expected 3 pending after failure, got %d", n)
	}
	if relay.Backlog() != 3 {
		t.Fatalf("expected backlog 3, got %d", relay.Backlog())
	}

	broken.setFail(nil)
	if err := relay.Drain(context.Background()); err != nil {
		t.Fatalf("drain after recovery: %v", err)
	}
	if n := pendingCount(t, store); n != 0 {
		t.Fatalf("expected empty outbox, got %d", n)
	}
	if got := len(broken.seqs()); got != 3 {
		t.Fatalf("expected recovered sink to get 3 events, got %d", got)
	}
	if got := len(ok.seqs()); got != 6 {
		t.Fatalf("expected healthy sink to see the batch twice, got %d", got)
	}
}

func TestDrainSkippedWhileOffline(t *testing.T) {
	store := memory.New()
	appendEvents(t, store, 1)
	sink := &fakeSink{name: "a"}

	relay := NewRelay(store, []Sink{sink}, staticHealth(false), nil, RelayConfig{Interval: time.Hour})
	if err := relay.Drain(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(sink.seqs()) != 0 {
		t.Fatalf("expected nothing published while offline")
	}
	if n := pendingCount(t, store); n != 1 {
		t.Fatalf("expected event still pending, got %d", n)
	}
}

func TestNotifierKicksRelay(t *testing.T) {
	store := memory.New()
	sink := &fakeSink{name: "a"}
	relay := NewRelay(store, []Sink{sink}, nil, nil, RelayConfig{Interval: time.Hour})
	relay.Start()
	defer relay.Stop(context.Background())

	appendEvents(t, store, 2)
	NewRelayNotifier(relay).Notify(context.Background(), []domain.Event{{Seq: 1}, {Seq: 2}})

	deadline := time.Now().Add(2 * time.Second)
	for len(sink.seqs()) < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("expected kicked drain to publish 2 events, got %v", sink.seqs())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestNotifierIgnoresEmptyBatches(t *testing.T) {
	relay := NewRelay(memory.New(), nil, nil, nil, RelayConfig{Interval: time.Hour})
	NewRelayNotifier(relay).Notify(context.Background(), nil)
	select {
	case <-relay.kick:
		t.Fatalf("expected no kick for an empty batch")
	default:
	}
}

type gatedSink struct {
	entered chan struct{}
	release chan struct{}
}

func (s *gatedSink) Name() string { return "gated" }

func (s *gatedSink) Publish(ctx context.Context, _ []domain.Event) error {
	close(s.entered)
	select {
	case <-s.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestSlowSinkDoesNotBlockWriters(t *testing.T) {
	store := memory.New()
	appendEvents(t, store, 1)
	sink := &gatedSink{entered: make(chan struct{}), release: make(chan struct{})}
	relay := NewRelay(store, []Sink{sink}, nil, nil, RelayConfig{Interval: time.Hour})

	drained := make(chan error, 1)
	go func() { drained <- relay.Drain(context.Background()) }()

	select {
	case <-sink.entered:
	case <-time.After(2 * time.Second):
		t.Fatalf("sink never received the batch")
	}

	written := make(chan struct{})
	go func() {
		appendEvents(t, store, 1)
		close(written)
	}()
	select {
	case <-written:
	case <-time.After(2 * time.Second):
		close(sink.release)
		t.Fatalf("write blocked while a sink was publishing")
	}

	close(sink.release)
	if err := <-drained; err != nil {
		t.Fatalf("drain: %v", err)
	}
	if n := pendingCount(t, store); n != 1 {
		t.Fatalf("expected only the event written during publish to stay pending, got %d", n)
	}
}
