package monitor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Pinger is anything whose reachability can be probed.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Monitor probes the ledger store and the event sinks on an interval.
type Monitor struct {
	storage Pinger
	sinks   map[string]Pinger

	status   Status
	mu       sync.RWMutex
	interval time.Duration
	timeout  time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	logger   *zap.Logger
}

func New(storage Pinger, sinks map[string]Pinger, interval time.Duration, logger *zap.Logger) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		storage:  storage,
		sinks:    sinks,
		interval: interval,
		timeout:  3 * time.Second,
		stopCh:   make(chan struct{}),
		logger:   logger,
	}
}

// Start probes once synchronously, then keeps probing in the background.
func (m *Monitor) Start() {
	m.Refresh()
	go m.loop()
}

func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

// IsOnline reports whether the store answered the last probe.
func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status.Storage
}

func (m *Monitor) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sinks := make(map[string]bool, len(m.status.Sinks))
	for name, ok := range m.status.Sinks {
		sinks[name] = ok
	}
	status := m.status
	status.Sinks = sinks
	return status
}

func (m *Monitor) loop() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Refresh()
		case <-m.stopCh:
			return
		}
	}
}

// Refresh probes every dependency once.
func (m *Monitor) Refresh() {
	status := Status{
		Storage:   m.probe("storage", m.storage),
		Sinks:     make(map[string]bool, len(m.sinks)),
		LastCheck: time.Now(),
	}
	for name, sink := range m.sinks {
		status.Sinks[name] = m.probe(name, sink)
	}

	m.mu.Lock()
	m.status = status
	m.mu.Unlock()
}

func (m *Monitor) probe(name string, p Pinger) bool {
	if p == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()
	if err := p.Ping(ctx); err != nil {
		m.logger.Warn("dependency check failed", zap.String("component", name), zap.Error(err))
		return false
	}
	return true
}
