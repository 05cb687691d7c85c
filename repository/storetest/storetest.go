// Package storetest holds the behaviour every repository.Store backend must
// share. Backends call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/fastygo/taskledger/domain"
	"github.com/fastygo/taskledger/repository"
)

var errAbort = errors.New("abort unit of work")

// Run exercises store semantics against a fresh store per subtest.
func Run(t *testing.T, newStore func(t *testing.T) repository.Store) {
	t.Helper()
	tests := []struct {
		name string
		fn   func(t *testing.T, s repository.Store)
	}{
		{"dense task ids", testDenseTaskIDs},
		{"failed unit of work writes nothing", testRollback},
		{"reads see own writes", testReadYourWrites},
		{"task list filter", testTaskList},
		{"progress records", testProgress},
		{"event log and outbox", testEvents},
		{"admin capability minted once", testCapability},
		{"views read committed state only", testViews},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t))
		})
	}
}

func atomically(t *testing.T, s repository.Store, fn func(tx repository.Tx) error) {
	t.Helper()
	if err := s.Atomically(context.Background(), fn); err != nil {
		t.Fatalf("unit of work: %v", err)
	}
}

func insertTask(t *testing.T, s repository.Store, creator domain.Identity, reward uint64) *domain.Task {
	t.Helper()
	task, err := domain.NewTask("task", "", reward, creator)
	if err != nil {
		t.Fatalf("new task: %v", err)
	}
	atomically(t, s, func(tx repository.Tx) error {
		return tx.Tasks().Insert(context.Background(), task)
	})
	return task
}

func testDenseTaskIDs(t *testing.T, s repository.Store) {
	ctx := context.Background()
	for want := uint64(0); want < 3; want++ {
		task := insertTask(t, s, "alice", 10)
		if task.ID != want {
			t.Fatalf("expected id %d, got %d", want, task.ID)
		}
	}

	var count uint64
	atomically(t, s, func(tx repository.Tx) error {
		var err error
		count, err = tx.Tasks().Count(ctx)
		return err
	})
	if count != 3 {
		t.Fatalf("expected count 3, got %d", count)
	}

	err := s.Atomically(ctx, func(tx repository.Tx) error {
		_, err := tx.Tasks().GetByID(ctx, 3)
		return err
	})
	if !errors.Is(err, domain.ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound for id == count, got %v", err)
	}
}

func testRollback(t *testing.T, s repository.Store) {
	ctx := context.Background()
	existing := insertTask(t, s, "alice", 10)

	err := s.Atomically(ctx, func(tx repository.Tx) error {
		task, _ := domain.NewTask("doomed", "", 5, "alice")
		if err := tx.Tasks().Insert(ctx, task); err != nil {
			return err
		}
		stored, err := tx.Tasks().GetByID(ctx, existing.ID)
		if err != nil {
			return err
		}
		if err := stored.Assign("bob", "alice"); err != nil {
			return err
		}
		if err := tx.Tasks().Update(ctx, stored); err != nil {
			return err
		}
		if err := tx.Progress().Create(ctx, domain.NewUserProgress("bob")); err != nil {
			return err
		}
		event, err := domain.NewEvent(domain.EventTaskCreated, domain.TaskAggregateID(task.ID), domain.TaskCreated{TaskID: task.ID})
		if err != nil {
			return err
		}
		if err := tx.Events().Append(ctx, &event); err != nil {
			return err
		}
		return errAbort
	})
	if !errors.Is(err, errAbort) {
		t.Fatalf("expected abort error, got %v", err)
	}

	atomically(t, s, func(tx repository.Tx) error {
		count, err := tx.Tasks().Count(ctx)
		if err != nil {
			return err
		}
		if count != 1 {
			t.Fatalf("expected count 1 after rollback, got %d", count)
		}
		stored, err := tx.Tasks().GetByID(ctx, existing.ID)
		if err != nil {
			return err
		}
		if stored.HasAssignee() {
			t.Fatalf("expected assignment to be rolled back")
		}
		profiles, err := tx.Progress().ListByOwner(ctx, "bob")
		if err != nil {
			return err
		}
		if len(profiles) != 0 {
			t.Fatalf("expected no progress records, got %d", len(profiles))
		}
		events, err := tx.Events().List(ctx, repository.EventFilter{})
		if err != nil {
			return err
		}
		if len(events) != 0 {
			t.Fatalf("expected empty event log, got %d events", len(events))
		}
		return nil
	})

	next := insertTask(t, s, "alice", 10)
	if next.ID != 1 {
		t.Fatalf("expected rolled back id to be reused, got %d", next.ID)
	}
}

func testReadYourWrites(t *testing.T, s repository.Store) {
	ctx := context.Background()
	atomically(t, s, func(tx repository.Tx) error {
		task, _ := domain.NewTask("t", "", 10, "alice")
		if err := tx.Tasks().Insert(ctx, task); err != nil {
			return err
		}
		got, err := tx.Tasks().GetByID(ctx, task.ID)
		if err != nil {
			return err
		}
		if err := got.Assign("bob", "alice"); err != nil {
			return err
		}
		if err := tx.Tasks().Update(ctx, got); err != nil {
			return err
		}
		again, err := tx.Tasks().GetByID(ctx, task.ID)
		if err != nil {
			return err
		}
		if again.AssigneeOrNone() != "bob" {
			t.Fatalf("expected staged assignee bob, got %q", again.AssigneeOrNone())
		}
		return nil
	})

	atomically(t, s, func(tx repository.Tx) error {
		got, err := tx.Tasks().GetByID(ctx, 0)
		if err != nil {
			return err
		}
		if got.AssigneeOrNone() != "bob" || got.Status != domain.StatusPending {
			t.Fatalf("unexpected committed task %+v", got)
		}
		return nil
	})
}

func testTaskList(t *testing.T, s repository.Store) {
	ctx := context.Background()
	insertTask(t, s, "alice", 10)
	insertTask(t, s, "bob", 10)
	third := insertTask(t, s, "alice", 10)

	atomically(t, s, func(tx repository.Tx) error {
		task, err := tx.Tasks().GetByID(ctx, third.ID)
		if err != nil {
			return err
		}
		if err := task.Cancel(); err != nil {
			return err
		}
		return tx.Tasks().Update(ctx, task)
	})

	pending := domain.StatusPending
	tests := []struct {
		name   string
		filter repository.TaskFilter
		want   []uint64
	}{
		{"all", repository.TaskFilter{}, []uint64{0, 1, 2}},
		{"by creator", repository.TaskFilter{Creator: "alice"}, []uint64{0, 2}},
		{"by status", repository.TaskFilter{Status: &pending}, []uint64{0, 1}},
		{"offset and limit", repository.TaskFilter{Limit: 1, Offset: 1}, []uint64{1}},
	}
	for _, tt := range tests {
		atomically(t, s, func(tx repository.Tx) error {
			tasks, err := tx.Tasks().List(ctx, tt.filter)
			if err != nil {
				return err
			}
			if len(tasks) != len(tt.want) {
				t.Fatalf("%s: expected %d tasks, got %d", tt.name, len(tt.want), len(tasks))
			}
			for i, id := range tt.want {
				if tasks[i].ID != id {
					t.Fatalf("%s: expected id %d at %d, got %d", tt.name, id, i, tasks[i].ID)
				}
			}
			return nil
		})
	}
}

func testProgress(t *testing.T, s repository.Store) {
	ctx := context.Background()
	first := domain.NewUserProgress("bob")
	second := domain.NewUserProgress("bob")
	other := domain.NewUserProgress("carol")

	atomically(t, s, func(tx repository.Tx) error {
		for _, p := range []*domain.UserProgress{first, second, other} {
			if err := tx.Progress().Create(ctx, p); err != nil {
				return err
			}
		}
		return nil
	})

	atomically(t, s, func(tx repository.Tx) error {
		p, err := tx.Progress().GetByID(ctx, first.ID)
		if err != nil {
			return err
		}
		if _, err := p.Award(150); err != nil {
			return err
		}
		return tx.Progress().Update(ctx, p)
	})

	atomically(t, s, func(tx repository.Tx) error {
		p, err := tx.Progress().GetByID(ctx, first.ID)
		if err != nil {
			return err
		}
		if p.PointsEarned != 150 || p.TasksCompleted != 1 || p.Level != 1 {
			t.Fatalf("unexpected progress %+v", *p)
		}
		owned, err := tx.Progress().ListByOwner(ctx, "bob")
		if err != nil {
			return err
		}
		if len(owned) != 2 {
			t.Fatalf("expected two records for bob, got %d", len(owned))
		}
		return nil
	})

	err := s.Atomically(ctx, func(tx repository.Tx) error {
		_, err := tx.Progress().GetByID(ctx, "missing")
		return err
	})
	if !errors.Is(err, domain.ErrProfileNotFound) {
		t.Fatalf("expected ErrProfileNotFound, got %v", err)
	}
}

func testEvents(t *testing.T, s repository.Store) {
	ctx := context.Background()
	names := []string{domain.EventTaskCreated, domain.EventTaskAssigned, domain.EventTaskCompleted}

	atomically(t, s, func(tx repository.Tx) error {
		events := make([]*domain.Event, 0, len(names))
		for _, name := range names {
			event, err := domain.NewEvent(name, domain.TaskAggregateID(0), domain.TaskAssigned{TaskID: 0, Assignee: "bob"})
			if err != nil {
				return err
			}
			events = append(events, &event)
		}
		if err := tx.Events().Append(ctx, events...); err != nil {
			return err
		}
		for i, event := range events {
			if event.Seq != uint64(i+1) {
				t.Fatalf("expected seq %d, got %d", i+1, event.Seq)
			}
		}
		return nil
	})

	atomically(t, s, func(tx repository.Tx) error {
		pending, err := tx.Events().Pending(ctx, 2)
		if err != nil {
			return err
		}
		if len(pending) != 2 || pending[0].Seq != 1 || pending[1].Seq != 2 {
			t.Fatalf("expected first two events pending in order, got %+v", pending)
		}
		return tx.Events().MarkPublished(ctx, pending[0].Seq, pending[1].Seq)
	})

	atomically(t, s, func(tx repository.Tx) error {
		pending, err := tx.Events().Pending(ctx, 10)
		if err != nil {
			return err
		}
		if len(pending) != 1 || pending[0].Name != domain.EventTaskCompleted {
			t.Fatalf("expected only the third event pending, got %+v", pending)
		}

		all, err := tx.Events().List(ctx, repository.EventFilter{})
		if err != nil {
			return err
		}
		if len(all) != 3 {
			t.Fatalf("expected 3 events, got %d", len(all))
		}
		if all[0].PublishedAt == nil || all[1].PublishedAt == nil || all[2].PublishedAt != nil {
			t.Fatalf("unexpected published markers")
		}

		after, err := tx.Events().List(ctx, repository.EventFilter{AfterSeq: 1, Name: domain.EventTaskCompleted})
		if err != nil {
			return err
		}
		if len(after) != 1 || after[0].Seq != 3 {
			t.Fatalf("expected event 3 only, got %+v", after)
		}

		for _, cursor := range []uint64{3, 1000, math.MaxInt64, math.MaxUint64} {
			beyond, err := tx.Events().List(ctx, repository.EventFilter{AfterSeq: cursor})
			if err != nil {
				return err
			}
			if len(beyond) != 0 {
				t.Fatalf("expected no events after %d, got %+v", cursor, beyond)
			}
		}

		var payload domain.TaskAssigned
		if err := after[0].Decode(&payload); err != nil {
			return err
		}
		if payload.Assignee != "bob" {
			t.Fatalf("expected payload to survive storage, got %+v", payload)
		}
		return nil
	})
}

func testCapability(t *testing.T, s repository.Store) {
	ctx := context.Background()
	grant := &repository.CapabilityGrant{Holder: "root", SecretHash: []byte("hash")}

	err := s.Atomically(ctx, func(tx repository.Tx) error {
		if err := tx.Capabilities().Save(ctx, grant); err != nil {
			return err
		}
		return errAbort
	})
	if !errors.Is(err, errAbort) {
		t.Fatalf("expected abort, got %v", err)
	}

	atomically(t, s, func(tx repository.Tx) error {
		got, err := tx.Capabilities().Get(ctx)
		if err != nil {
			return err
		}
		if got != nil {
			t.Fatalf("expected no grant after rollback, got %+v", got)
		}
		return tx.Capabilities().Save(ctx, grant)
	})

	err = s.Atomically(ctx, func(tx repository.Tx) error {
		return tx.Capabilities().Save(ctx, grant)
	})
	if !errors.Is(err, domain.ErrCapabilityMinted) {
		t.Fatalf("expected ErrCapabilityMinted, got %v", err)
	}

	atomically(t, s, func(tx repository.Tx) error {
		got, err := tx.Capabilities().Get(ctx)
		if err != nil {
			return err
		}
		if got == nil || got.Holder != "root" || string(got.SecretHash) != "hash" {
			t.Fatalf("unexpected grant %+v", got)
		}
		return nil
	})
}

func testViews(t *testing.T, s repository.Store) {
	ctx := context.Background()
	existing := insertTask(t, s, "alice", 10)

	// a view may fail the write or drop it; either way nothing lands
	_ = s.View(ctx, func(tx repository.Tx) error {
		task, err := domain.NewTask("ghost", "", 5, "mallory")
		if err != nil {
			return err
		}
		return tx.Tasks().Insert(ctx, task)
	})

	err := s.View(ctx, func(tx repository.Tx) error {
		count, err := tx.Tasks().Count(ctx)
		if err != nil {
			return err
		}
		if count != 1 {
			t.Fatalf("expected view writes to be dropped, got count %d", count)
		}
		task, err := tx.Tasks().GetByID(ctx, existing.ID)
		if err != nil {
			return err
		}
		if task.Creator != "alice" {
			t.Fatalf("unexpected task %+v", task)
		}

		done := make(chan error, 1)
		go func() {
			done <- s.View(ctx, func(tx repository.Tx) error {
				_, err := tx.Tasks().Count(ctx)
				return err
			})
		}()
		select {
		case err := <-done:
			return err
		case <-time.After(2 * time.Second):
			t.Fatalf("expected concurrent views not to block each other")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}
