package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/fastygo/taskledger/domain"
	"github.com/fastygo/taskledger/repository"
)

type taskRepository struct {
	q    querier
	lock bool
}

const taskColumns = `id, title, description, reward_points, status, creator, assignee, created_at, updated_at`

func (r *taskRepository) Insert(ctx context.Context, task *domain.Task) error {
	if task == nil {
		return domain.ErrInvalidPayload
	}
	reward, err := toInt64(task.RewardPoints)
	if err != nil {
		return domain.WrapError(domain.ErrCodeInvalid, "reward points out of range", err)
	}

	var id int64
	if err := r.q.QueryRow(ctx,
		`UPDATE task_registry SET count = count + 1 WHERE id = 1 RETURNING count - 1`,
	).Scan(&id); err != nil {
		return fmt.Errorf("allocate task id: %w", err)
	}

	const query = `
	INSERT INTO tasks (` + taskColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	if _, err := r.q.Exec(ctx, query,
		id,
		task.Title,
		task.Description,
		reward,
		int16(task.Status),
		string(task.Creator),
		nullIdentity(task.Assignee),
		task.CreatedAt,
		task.UpdatedAt,
	); err != nil {
		return fmt.Errorf("insert task: %w", err)
	}

	task.ID = uint64(id)
	return nil
}

func (r *taskRepository) GetByID(ctx context.Context, id uint64) (*domain.Task, error) {
	key, err := toInt64(id)
	if err != nil {
		return nil, domain.ErrTaskNotFound
	}
	row := r.q.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`+forUpdate(r.lock, "FOR UPDATE"), key)
	return scanTask(row)
}

func (r *taskRepository) Update(ctx context.Context, task *domain.Task) error {
	if task == nil {
		return domain.ErrInvalidPayload
	}
	key, err := toInt64(task.ID)
	if err != nil {
		return domain.ErrTaskNotFound
	}

	// title, description, reward and creator are immutable and never written here.
	const query = `
	UPDATE tasks
	SET status = $2,
		assignee = $3,
		updated_at = $4
	WHERE id = $1
	`
	tag, err := r.q.Exec(ctx, query, key, int16(task.Status), nullIdentity(task.Assignee), task.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

func (r *taskRepository) Count(ctx context.Context) (uint64, error) {
	var count int64
	if err := r.q.QueryRow(ctx, `SELECT count FROM task_registry WHERE id = 1`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count tasks: %w", err)
	}
	return toUint64(count), nil
}

func (r *taskRepository) List(ctx context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != nil {
		args = append(args, int16(*filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Creator != domain.NoIdentity {
		args = append(args, string(filter.Creator))
		where = append(where, fmt.Sprintf("creator = $%d", len(args)))
	}
	if filter.Assignee != domain.NoIdentity {
		args = append(args, string(filter.Assignee))
		where = append(where, fmt.Sprintf("assignee = $%d", len(args)))
	}

	query := `SELECT ` + taskColumns + ` FROM tasks`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, repository.ClampLimit(filter.Limit), repository.ClampOffset(filter.Offset))
	query += fmt.Sprintf(` ORDER BY id LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

func scanTask(row pgx.Row) (*domain.Task, error) {
	var (
		task     domain.Task
		id       int64
		reward   int64
		status   int16
		creator  string
		assignee *string
	)

	if err := row.Scan(
		&id,
		&task.Title,
		&task.Description,
		&reward,
		&status,
		&creator,
		&assignee,
		&task.CreatedAt,
		&task.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, err
	}

	task.ID = toUint64(id)
	task.RewardPoints = toUint64(reward)
	task.Status = domain.Status(status)
	task.Creator = domain.Identity(creator)
	if assignee != nil {
		a := domain.Identity(*assignee)
		task.Assignee = &a
	}
	return &task, nil
}

func nullIdentity(id *domain.Identity) interface{} {
	if id == nil {
		return nil
	}
	return string(*id)
}
