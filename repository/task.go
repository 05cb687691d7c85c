package repository

import (
	"context"

	"github.com/fastygo/taskledger/domain"
)

type TaskFilter struct {
	Status   *domain.Status
	Creator  domain.Identity
	Assignee domain.Identity
	Limit    int
	Offset   int
}

// TaskRepository is the task registry. Keys are dense and zero-based: Insert
// allocates the next key and stores the task in one step, and nothing deletes.
type TaskRepository interface {
	Insert(ctx context.Context, task *domain.Task) error
	GetByID(ctx context.Context, id uint64) (*domain.Task, error)
	Update(ctx context.Context, task *domain.Task) error
	Count(ctx context.Context) (uint64, error)
	List(ctx context.Context, filter TaskFilter) ([]domain.Task, error)
}

// Matches reports whether task passes the filter. Backends without a query
// language use it to evaluate filters in process.
func (f TaskFilter) Matches(task *domain.Task) bool {
	if f.Status != nil && task.Status != *f.Status {
		return false
	}
	if f.Creator != domain.NoIdentity && task.Creator != f.Creator {
		return false
	}
	if f.Assignee != domain.NoIdentity && task.AssigneeOrNone() != f.Assignee {
		return false
	}
	return true
}

// ClampLimit bounds page sizes.
func ClampLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 100
	}
	return limit
}

// ClampOffset treats negative offsets as the first page.
func ClampOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
