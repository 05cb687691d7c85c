package task

import (
	"github.com/dgraph-io/ristretto/v2"

	"github.com/fastygo/taskledger/domain"
)

// terminalCache holds completed and cancelled tasks. Those never change
// again, so entries need no invalidation.
const (
	minCounters = 1024
	// taskOverhead approximates the fixed part of a cached task in bytes.
	taskOverhead = 128
)

type terminalCache struct {
	c *ristretto.Cache[uint64, domain.Task]
}

func newTerminalCache(maxCost int64) (*terminalCache, error) {
	if maxCost <= 0 {
		return &terminalCache{}, nil
	}
	counters := maxCost / 100 * 10
	if counters < minCounters {
		counters = minCounters
	}
	c, err := ristretto.NewCache(&ristretto.Config[uint64, domain.Task]{
		NumCounters: counters,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &terminalCache{c: c}, nil
}

func (tc *terminalCache) get(id uint64) (*domain.Task, bool) {
	if tc == nil || tc.c == nil {
		return nil, false
	}
	task, ok := tc.c.Get(id)
	if !ok {
		return nil, false
	}
	return task.Clone(), true
}

func (tc *terminalCache) put(task *domain.Task) {
	if tc == nil || tc.c == nil || task == nil || !task.Status.IsTerminal() {
		return
	}
	cost := int64(taskOverhead + len(task.Title) + len(task.Description) + len(task.Creator))
	tc.c.Set(task.ID, *task.Clone(), cost)
	tc.c.Wait()
}

func (tc *terminalCache) close() {
	if tc == nil || tc.c == nil {
		return
	}
	tc.c.Close()
}
