package task

import (
	"context"
	"errors"

	"github.com/fastygo/taskledger/domain"
	"github.com/fastygo/taskledger/repository"
)

// Count returns the number of tasks ever created.
func (uc *UseCase) Count(ctx context.Context) (uint64, error) {
	var count uint64
	err := uc.store.View(ctx, func(tx repository.Tx) error {
		var err error
		count, err = tx.Tasks().Count(ctx)
		return err
	})
	return count, err
}

// GetTask returns a task by id, or domain.ErrTaskNotFound.
func (uc *UseCase) GetTask(ctx context.Context, id uint64) (*domain.Task, error) {
	if task, ok := uc.cache.get(id); ok {
		return task, nil
	}
	var task *domain.Task
	err := uc.store.View(ctx, func(tx repository.Tx) error {
		var err error
		task, err = tx.Tasks().GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if task.Status.IsTerminal() {
		uc.cache.put(task)
	}
	return task, nil
}

// Exists reports whether id names a task.
func (uc *UseCase) Exists(ctx context.Context, id uint64) (bool, error) {
	_, err := uc.GetTask(ctx, id)
	if errors.Is(err, domain.ErrTaskNotFound) {
		return false, nil
	}
	return err == nil, err
}

// IsAvailable reports whether the task is pending and unassigned.
func (uc *UseCase) IsAvailable(ctx context.Context, id uint64) (bool, error) {
	task, err := uc.GetTask(ctx, id)
	if err != nil {
		return false, err
	}
	return task.IsAvailable(), nil
}

func (uc *UseCase) ListTasks(ctx context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	var tasks []domain.Task
	err := uc.store.View(ctx, func(tx repository.Tx) error {
		var err error
		tasks, err = tx.Tasks().List(ctx, filter)
		return err
	})
	return tasks, err
}

// ListEvents reads the event log.
func (uc *UseCase) ListEvents(ctx context.Context, filter repository.EventFilter) ([]domain.Event, error) {
	var events []domain.Event
	err := uc.store.View(ctx, func(tx repository.Tx) error {
		var err error
		events, err = tx.Events().List(ctx, filter)
		return err
	})
	return events, err
}
