package task

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/fastygo/taskledger/domain"
	appLogger "github.com/fastygo/taskledger/pkg/logger"
	"github.com/fastygo/taskledger/repository"
	"github.com/fastygo/taskledger/usecase"
	"github.com/fastygo/taskledger/usecase/auth"
)

type NewTaskInput struct {
	Title        string
	Description  string
	RewardPoints uint64
}

// Result carries the state after a successful operation and the events it emitted, in order.
type Result struct {
	Task     *domain.Task
	Progress *domain.UserProgress
	Events   []domain.Event
}

type Options struct {
	// CacheMaxCost bounds the terminal task cache; zero disables it.
	CacheMaxCost int64
}

type UseCase struct {
	store    repository.Store
	notifier usecase.EventNotifier
	cache    *terminalCache
	logger   *zap.Logger
}

func New(store repository.Store, notifier usecase.EventNotifier, logger *zap.Logger, opts Options) (*UseCase, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = usecase.NopNotifier{}
	}
	cache, err := newTerminalCache(opts.CacheMaxCost)
	if err != nil {
		return nil, err
	}
	return &UseCase{
		store:    store,
		notifier: notifier,
		cache:    cache,
		logger:   logger,
	}, nil
}

// Close releases the task cache.
func (uc *UseCase) Close() {
	uc.cache.close()
}

// CreateTask registers a pending, unassigned task created by caller.
func (uc *UseCase) CreateTask(ctx context.Context, caller domain.Identity, in NewTaskInput) (*Result, error) {
	task, err := domain.NewTask(in.Title, in.Description, in.RewardPoints, caller)
	if err != nil {
		return nil, uc.rejected(ctx, "create_task", caller, err)
	}

	res := &Result{}
	err = uc.store.Atomically(ctx, func(tx repository.Tx) error {
		if err := tx.Tasks().Insert(ctx, task); err != nil {
			return err
		}
		res.Task = task
		return emit(ctx, tx, res, event{
			name:      domain.EventTaskCreated,
			aggregate: domain.TaskAggregateID(task.ID),
			payload: domain.TaskCreated{
				TaskID:       task.ID,
				Creator:      caller,
				Title:        task.Title,
				RewardPoints: task.RewardPoints,
			},
		})
	})
	if err != nil {
		return nil, uc.rejected(ctx, "create_task", caller, err)
	}
	return uc.committed(ctx, "create_task", caller, res), nil
}

// AssignTask sets the assignee of a pending task. Only the creator may assign,
// and only once.
func (uc *UseCase) AssignTask(ctx context.Context, caller domain.Identity, id uint64, assignee domain.Identity) (*Result, error) {
	res := &Result{}
	err := uc.store.Atomically(ctx, func(tx repository.Tx) error {
		task, err := tx.Tasks().GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := task.Assign(assignee, caller); err != nil {
			return err
		}
		if err := tx.Tasks().Update(ctx, task); err != nil {
			return err
		}
		res.Task = task
		return emit(ctx, tx, res, event{
			name:      domain.EventTaskAssigned,
			aggregate: domain.TaskAggregateID(id),
			payload:   domain.TaskAssigned{TaskID: id, Assignee: assignee},
		})
	})
	if err != nil {
		return nil, uc.rejected(ctx, "assign_task", caller, err, zap.Uint64("task_id", id))
	}
	return uc.committed(ctx, "assign_task", caller, res), nil
}

// CompleteTask completes a task assigned to caller and credits its reward to
// the caller's progress record profileID. The record must belong to caller;
// that is checked before the task is even looked up.
func (uc *UseCase) CompleteTask(ctx context.Context, caller domain.Identity, id uint64, profileID string) (*Result, error) {
	res := &Result{}
	err := uc.store.Atomically(ctx, func(tx repository.Tx) error {
		progress, err := tx.Progress().GetByID(ctx, profileID)
		if err != nil {
			return err
		}
		if !progress.OwnedBy(caller) {
			return domain.ErrProfileMismatch
		}

		task, err := tx.Tasks().GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := task.Complete(caller); err != nil {
			return err
		}
		leveledUp, err := progress.Award(task.RewardPoints)
		if err != nil {
			return err
		}

		if err := tx.Tasks().Update(ctx, task); err != nil {
			return err
		}
		if err := tx.Progress().Update(ctx, progress); err != nil {
			return err
		}
		res.Task, res.Progress = task, progress

		events := []event{{
			name:      domain.EventTaskCompleted,
			aggregate: domain.TaskAggregateID(id),
			payload: domain.TaskCompleted{
				TaskID:        id,
				Assignee:      caller,
				PointsAwarded: task.RewardPoints,
			},
		}}
		if leveledUp {
			events = append(events, event{
				name:      domain.EventUserLeveledUp,
				aggregate: domain.UserAggregateID(caller),
				payload:   domain.UserLeveledUp{User: caller, NewLevel: progress.Level},
			})
		}
		return emit(ctx, tx, res, events...)
	})
	if err != nil {
		return nil, uc.rejected(ctx, "complete_task", caller, err, zap.Uint64("task_id", id), zap.String("profile_id", profileID))
	}
	return uc.committed(ctx, "complete_task", caller, res), nil
}

// CancelTask cancels a pending task, assigned or not. It needs a valid admin
// capability and nothing else; caller is recorded as the canceller.
func (uc *UseCase) CancelTask(ctx context.Context, capability auth.AdminCap, caller domain.Identity, id uint64) (*Result, error) {
	if !capability.Valid() {
		return nil, uc.rejected(ctx, "cancel_task", caller, domain.ErrNotAdmin, zap.Uint64("task_id", id))
	}

	res := &Result{}
	err := uc.store.Atomically(ctx, func(tx repository.Tx) error {
		task, err := tx.Tasks().GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := task.Cancel(); err != nil {
			return err
		}
		if err := tx.Tasks().Update(ctx, task); err != nil {
			return err
		}
		res.Task = task
		return emit(ctx, tx, res, event{
			name:      domain.EventTaskCancelled,
			aggregate: domain.TaskAggregateID(id),
			payload:   domain.TaskCancelled{TaskID: id, CancelledBy: caller},
		})
	})
	if err != nil {
		return nil, uc.rejected(ctx, "cancel_task", caller, err, zap.Uint64("task_id", id))
	}
	return uc.committed(ctx, "cancel_task", caller, res), nil
}

type event struct {
	name      string
	aggregate string
	payload   any
}

// emit appends events to the log inside the unit of work, so an aborted
// operation never leaves an event behind.
func emit(ctx context.Context, tx repository.Tx, res *Result, events ...event) error {
	batch := make([]*domain.Event, 0, len(events))
	for _, e := range events {
		ev, err := domain.NewEvent(e.name, e.aggregate, e.payload)
		if err != nil {
			return err
		}
		batch = append(batch, &ev)
	}
	if err := tx.Events().Append(ctx, batch...); err != nil {
		return err
	}
	for _, ev := range batch {
		res.Events = append(res.Events, *ev)
	}
	return nil
}

func (uc *UseCase) committed(ctx context.Context, op string, caller domain.Identity, res *Result) *Result {
	if res.Task != nil && res.Task.Status.IsTerminal() {
		uc.cache.put(res.Task)
	}
	uc.notifier.Notify(ctx, res.Events)

	log := appLogger.WithCaller(appLogger.WithRequestID(ctx, uc.logger), caller)
	fields := []zap.Field{zap.String("operation", op), zap.Int("events", len(res.Events))}
	if res.Task != nil {
		fields = append(fields, zap.Uint64("task_id", res.Task.ID), zap.Stringer("status", res.Task.Status))
	}
	if res.Progress != nil {
		fields = append(fields, zap.Uint64("points", res.Progress.PointsEarned), zap.Uint8("level", res.Progress.Level))
	}
	log.Info("ledger operation applied", fields...)
	return res
}

func (uc *UseCase) rejected(ctx context.Context, op string, caller domain.Identity, err error, fields ...zap.Field) error {
	log := appLogger.WithCaller(appLogger.WithRequestID(ctx, uc.logger), caller)
	fields = append(fields, zap.String("operation", op), zap.Error(err))
	var dErr *domain.Error
	if errors.As(err, &dErr) && dErr.Code != domain.ErrCodeInternal {
		log.Debug("ledger operation rejected", fields...)
	} else {
		log.Error("ledger operation failed", fields...)
	}
	return err
}
