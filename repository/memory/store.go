// Package memory provides an in-process Store. Units of work are serialized by
// one lock and stage their writes, which are applied only when the unit of
// work returns nil. Views share a read lock and never apply anything.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/fastygo/taskledger/domain"
	"github.com/fastygo/taskledger/repository"
)

type Store struct {
	mu       sync.RWMutex
	tasks    []*domain.Task
	progress map[string]*domain.UserProgress
	events   []*domain.Event
	grant    *repository.CapabilityGrant
}

// New returns an empty Store.
func New() *Store {
	return &Store{progress: make(map[string]*domain.UserProgress)}
}

func (s *Store) Atomically(ctx context.Context, fn func(tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := s.begin()
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (s *Store) View(ctx context.Context, fn func(tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.begin())
}

func (s *Store) begin() *tx {
	return &tx{
		store:     s,
		updated:   make(map[uint64]*domain.Task),
		progress:  make(map[string]*domain.UserProgress),
		published: make(map[uint64]time.Time),
	}
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

type tx struct {
	store     *Store
	inserted  []*domain.Task
	updated   map[uint64]*domain.Task
	progress  map[string]*domain.UserProgress
	events    []*domain.Event
	published map[uint64]time.Time
	grant     *repository.CapabilityGrant
}

func (t *tx) Tasks() repository.TaskRepository             { return taskRepo{t} }
func (t *tx) Progress() repository.ProgressRepository       { return progressRepo{t} }
func (t *tx) Events() repository.EventRepository            { return eventRepo{t} }
func (t *tx) Capabilities() repository.CapabilityRepository { return capabilityRepo{t} }

func (t *tx) commit() {
	s := t.store
	for id, task := range t.updated {
		if id < uint64(len(s.tasks)) {
			s.tasks[id] = task
		}
	}
	for _, task := range t.inserted {
		if staged, ok := t.updated[task.ID]; ok {
			task = staged
		}
		s.tasks = append(s.tasks, task)
	}
	for id, p := range t.progress {
		s.progress[id] = p
	}
	base := uint64(len(s.events))
	for seq, at := range t.published {
		if seq <= base {
			at := at
			published := *s.events[seq-1]
			published.PublishedAt = &at
			s.events[seq-1] = &published
		}
	}
	for _, e := range t.events {
		if at, ok := t.published[e.Seq]; ok {
			at := at
			e.PublishedAt = &at
		}
	}
	s.events = append(s.events, t.events...)
	if t.grant != nil {
		s.grant = t.grant
	}
}

func (t *tx) taskCount() uint64 {
	return uint64(len(t.store.tasks) + len(t.inserted))
}

// task resolves the current view of id inside the transaction.
func (t *tx) task(id uint64) *domain.Task {
	if staged, ok := t.updated[id]; ok {
		return staged
	}
	base := uint64(len(t.store.tasks))
	switch {
	case id < base:
		return t.store.tasks[id]
	case id < t.taskCount():
		return t.inserted[id-base]
	}
	return nil
}

func (t *tx) event(seq uint64) *domain.Event {
	base := uint64(len(t.store.events))
	switch {
	case seq == 0:
		return nil
	case seq <= base:
		return t.store.events[seq-1]
	case seq <= base+uint64(len(t.events)):
		return t.events[seq-base-1]
	}
	return nil
}

func (t *tx) eventCount() uint64 {
	return uint64(len(t.store.events) + len(t.events))
}

func (t *tx) isPublished(e *domain.Event) bool {
	if e.PublishedAt != nil {
		return true
	}
	_, ok := t.published[e.Seq]
	return ok
}
