package postgres

import (
	"fmt"
	"math"
	"time"
)

// forUpdate returns the row locking clause for read-write transactions.
func forUpdate(lock bool, clause string) string {
	if !lock {
		return ""
	}
	return " " + clause
}

func nullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}

// toInt64 guards the BIGINT columns that back unsigned counters.
func toInt64(v uint64) (int64, error) {
	if v > math.MaxInt64 {
		return 0, fmt.Errorf("value %d exceeds bigint range", v)
	}
	return int64(v), nil
}

func toUint64(v int64) uint64 {
	if v < 0 {
		return 0
	}
	return uint64(v)
}
