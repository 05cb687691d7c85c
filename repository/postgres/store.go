package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/taskledger/repository"
)

// querier is the subset of pgx.Tx the repositories need.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type store struct {
	pool *pgxpool.Pool
}

// NewStore returns a Postgres-backed Store. Every unit of work runs in its own
// transaction; mutated rows are locked with SELECT ... FOR UPDATE and task ids
// come from the single task_registry row, so concurrent creators serialize on it.
func NewStore(pool *pgxpool.Pool) repository.Store {
	return &store{pool: pool}
}

func (s *store) Atomically(ctx context.Context, fn func(tx repository.Tx) error) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(txRepos{q: tx, lock: true})
	})
}

func (s *store) View(ctx context.Context, fn func(tx repository.Tx) error) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted, AccessMode: pgx.ReadOnly}, func(tx pgx.Tx) error {
		return fn(txRepos{q: tx})
	})
}

func (s *store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *store) Close() error {
	s.pool.Close()
	return nil
}

// txRepos binds the repositories to one transaction. lock is false for
// read-only transactions, where row locks are neither needed nor allowed.
type txRepos struct {
	q    querier
	lock bool
}

func (t txRepos) Tasks() repository.TaskRepository             { return &taskRepository{q: t.q, lock: t.lock} }
func (t txRepos) Progress() repository.ProgressRepository       { return &progressRepository{q: t.q, lock: t.lock} }
func (t txRepos) Events() repository.EventRepository            { return &eventRepository{q: t.q, lock: t.lock} }
func (t txRepos) Capabilities() repository.CapabilityRepository { return &capabilityRepository{q: t.q} }
