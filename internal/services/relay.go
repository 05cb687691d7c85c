package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fastygo/taskledger/domain"
	"github.com/fastygo/taskledger/repository"
)

// ConnectionHealth abstracts the connection monitor functionality.
type ConnectionHealth interface {
	IsOnline() bool
}

// Sink receives batches of ledger events. Each batch is ordered by seq. On
// postgres a transaction that commits late can surface a lower seq after a
// higher one was relayed; consumers needing a total order sort by seq.
type Sink interface {
	Name() string
	Publish(ctx context.Context, events []domain.Event) error
}

// RelayConfig controls how frequently the outbox is drained.
type RelayConfig struct {
	Interval  time.Duration
	BatchSize int
}

// Relay moves committed events from the ledger's outbox to every configured
// sink. A batch is marked published only after all sinks accepted it, so a
// failing sink causes redelivery to all of them on the next drain.
type Relay struct {
	store   repository.Store
	sinks   []Sink
	monitor ConnectionHealth
	logger  *zap.Logger
	cron    *cron.Cron
	cfg     RelayConfig

	drainMu sync.Mutex
	backlog atomic.Int64

	kick     chan struct{}
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewRelay(
	store repository.Store,
	sinks []Sink,
	monitor ConnectionHealth,
	logger *zap.Logger,
	cfg RelayConfig,
) *Relay {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Relay{
		store:   store,
		sinks:   sinks,
		monitor: monitor,
		logger:  logger.Named("relay"),
		cfg:     cfg,
		cron:    cron.New(cron.WithSeconds()),
		kick:    make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
	}

	schedule := fmt.Sprintf("@every %s", cfg.Interval)
	_, _ = r.cron.AddFunc(schedule, r.scheduledDrain)

	return r
}

// Start launches the cron scheduler and the kick listener.
func (r *Relay) Start() {
	if r == nil || r.cron == nil {
		return
	}
	r.cron.Start()
	r.wg.Add(1)
	go r.listen()
	r.logger.Info("event relay started",
		zap.Duration("interval", r.cfg.Interval),
		zap.Int("sinks", len(r.sinks)))
}

// Stop gracefully stops the scheduler and waits for an in-flight drain.
func (r *Relay) Stop(ctx context.Context) {
	if r == nil || r.cron == nil {
		return
	}
	r.stopOnce.Do(func() { close(r.stopCh) })
	stopCtx := r.cron.Stop()

	done := make(chan struct{})
	go func() {
		<-stopCtx.Done()
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
	r.logger.Info("event relay stopped")
}

// Kick requests a drain without waiting for the next tick. It never blocks.
func (r *Relay) Kick() {
	if r == nil {
		return
	}
	select {
	case r.kick <- struct{}{}:
	default:
	}
}

// Backlog reports how many events the last drain left undelivered.
func (r *Relay) Backlog() int {
	if r == nil {
		return 0
	}
	return int(r.backlog.Load())
}

// Drain publishes pending events batch by batch until the outbox is empty or
// a batch fails.
func (r *Relay) Drain(ctx context.Context) error {
	if r == nil || r.store == nil || len(r.sinks) == 0 {
		return nil
	}
	if r.monitor != nil && !r.monitor.IsOnline() {
		r.logger.Debug("skipping outbox drain (offline)")
		return nil
	}

	r.drainMu.Lock()
	defer r.drainMu.Unlock()

	for {
		published, pending, err := r.drainBatch(ctx)
		if err != nil {
			r.backlog.Store(int64(pending))
			return err
		}
		if published > 0 {
			r.logger.Debug("events relayed", zap.Int("count", published))
		}
		if published < r.cfg.BatchSize {
			r.backlog.Store(0)
			return nil
		}
	}
}

// drainBatch reads one batch, publishes it with no unit of work open and then
// marks it published. Sink latency never holds storage locks; a crash between
// publish and mark redelivers the batch.
func (r *Relay) drainBatch(ctx context.Context) (published, pending int, err error) {
	var events []domain.Event
	err = r.store.View(ctx, func(tx repository.Tx) error {
		var err error
		events, err = tx.Events().Pending(ctx, r.cfg.BatchSize)
		return err
	})
	if err != nil {
		return 0, 0, err
	}
	pending = len(events)
	if pending == 0 {
		return 0, 0, nil
	}

	if err := r.publish(ctx, events); err != nil {
		return 0, pending, err
	}

	seqs := make([]uint64, len(events))
	for i := range events {
		seqs[i] = events[i].Seq
	}
	err = r.store.Atomically(ctx, func(tx repository.Tx) error {
		return tx.Events().MarkPublished(ctx, seqs...)
	})
	if err != nil {
		return 0, pending, err
	}
	return pending, pending, nil
}

func (r *Relay) publish(ctx context.Context, events []domain.Event) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, sink := range r.sinks {
		g.Go(func() error {
			if err := sink.Publish(gctx, events); err != nil {
				return fmt.Errorf("sink %s: %w", sink.Name(), err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (r *Relay) scheduledDrain() {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.Interval)
	defer cancel()
	if err := r.Drain(ctx); err != nil {
		r.logger.Error("outbox drain failed", zap.Error(err))
	}
}

func (r *Relay) listen() {
	defer r.wg.Done()
	for {
		select {
		case <-r.kick:
			r.scheduledDrain()
		case <-r.stopCh:
			return
		}
	}
}
