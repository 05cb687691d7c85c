package bolt

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/fastygo/taskledger/domain"
	boltInfra "github.com/fastygo/taskledger/internal/infrastructure/bolt"
	"github.com/fastygo/taskledger/repository"
	"github.com/fastygo/taskledger/repository/storetest"
)

func openStore(t *testing.T) repository.Store {
	t.Helper()
	db, err := boltInfra.Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open bolt: %v", err)
	}
	s := NewStore(db)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore(t *testing.T) {
	storetest.Run(t, openStore)
}

func TestPendingBucketTracksOutbox(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	err := s.Atomically(ctx, func(tx repository.Tx) error {
		a, _ := domain.NewEvent(domain.EventTaskCreated, domain.TaskAggregateID(0), domain.TaskCreated{})
		b, _ := domain.NewEvent(domain.EventTaskCancelled, domain.TaskAggregateID(0), domain.TaskCancelled{})
		return tx.Events().Append(ctx, &a, &b)
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	db := s.(*store).db
	if n, err := boltInfra.Size(db, boltInfra.BucketPending); err != nil || n != 2 {
		t.Fatalf("expected 2 pending keys, got %d (%v)", n, err)
	}

	err = s.Atomically(ctx, func(tx repository.Tx) error {
		return tx.Events().MarkPublished(ctx, 1)
	})
	if err != nil {
		t.Fatalf("mark published: %v", err)
	}
	if n, err := boltInfra.Size(db, boltInfra.BucketPending); err != nil || n != 1 {
		t.Fatalf("expected 1 pending key, got %d (%v)", n, err)
	}
	if n, err := boltInfra.Size(db, boltInfra.BucketEvents); err != nil || n != 2 {
		t.Fatalf("expected event log to keep both events, got %d (%v)", n, err)
	}
}
