// Package bolt implements repository.Store on BoltDB. Each unit of work is a
// single read-write bolt transaction, so failures roll back every write.
package bolt

import (
	"context"
	"encoding/binary"
	"encoding/json"

	bolt "go.etcd.io/bbolt"

	boltInfra "github.com/fastygo/taskledger/internal/infrastructure/bolt"
	"github.com/fastygo/taskledger/repository"
)

var (
	keyTaskCount  = []byte("task_count")
	keyCapability = []byte("admin_capability")
)

type store struct {
	db *bolt.DB
}

// NewStore wraps an opened database. See internal/infrastructure/bolt.Open.
func NewStore(db *bolt.DB) repository.Store {
	return &store{db: db}
}

func (s *store) Atomically(ctx context.Context, fn func(tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(btx *bolt.Tx) error {
		return fn(boltTx{tx: btx})
	})
}

func (s *store) View(ctx context.Context, fn func(tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(btx *bolt.Tx) error {
		return fn(boltTx{tx: btx})
	})
}

func (s *store) Ping(context.Context) error {
	return s.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket(boltInfra.BucketMeta) == nil {
			return bolt.ErrBucketNotFound
		}
		return nil
	})
}

func (s *store) Close() error {
	return s.db.Close()
}

type boltTx struct {
	tx *bolt.Tx
}

func (t boltTx) Tasks() repository.TaskRepository             { return taskRepo{t.tx} }
func (t boltTx) Progress() repository.ProgressRepository       { return progressRepo{t.tx} }
func (t boltTx) Events() repository.EventRepository            { return eventRepo{t.tx} }
func (t boltTx) Capabilities() repository.CapabilityRepository { return capabilityRepo{t.tx} }

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func btoi(b []byte) uint64 {
	if len(b) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

func put(b *bolt.Bucket, key []byte, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Put(key, payload)
}
