// Package bolt opens the embedded BoltDB file backing the ledger when
// STORAGE_DRIVER=bolt.
package bolt

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Bucket names used by the ledger.
var (
	BucketTasks    = []byte("tasks")
	BucketProgress = []byte("progress")
	BucketEvents   = []byte("events")
	BucketPending  = []byte("events_pending")
	BucketMeta     = []byte("meta")
)

var buckets = [][]byte{BucketTasks, BucketProgress, BucketEvents, BucketPending, BucketMeta}

// Open initializes the BoltDB file and ensures every bucket exists.
func Open(path string) (*bolt.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("bolt: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range buckets {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// Size returns the number of keys in bucket, for monitoring.
func Size(db *bolt.DB, bucket []byte) (int, error) {
	if db == nil {
		return 0, bolt.ErrDatabaseNotOpen
	}
	var count int
	err := db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return nil
		}
		count = b.Stats().KeyN
		return nil
	})
	return count, err
}
