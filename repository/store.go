package repository

import "context"

// Tx exposes the repositories bound to one unit of work.
type Tx interface {
	Tasks() TaskRepository
	Progress() ProgressRepository
	Events() EventRepository
	Capabilities() CapabilityRepository
}

// Store applies units of work atomically. If fn returns an error nothing it
// wrote becomes visible; otherwise everything does. Units of work touching
// the same task or progress record are serialized.
//
// View runs read-only units of work. It takes no write locks and must not be
// used to write; backends either reject or discard such writes.
type Store interface {
	Atomically(ctx context.Context, fn func(tx Tx) error) error
	View(ctx context.Context, fn func(tx Tx) error) error
	Ping(ctx context.Context) error
	Close() error
}
