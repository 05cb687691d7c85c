package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/fastygo/taskledger/domain"
)

type progressRepository struct {
	q    querier
	lock bool
}

const progressColumns = `id, owner, tasks_completed, points_earned, level, created_at, updated_at`

func (r *progressRepository) Create(ctx context.Context, p *domain.UserProgress) error {
	if p == nil || p.ID == "" {
		return domain.ErrInvalidPayload
	}
	const query = `
	INSERT INTO user_progress (` + progressColumns + `)
	VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()), NOW())
	RETURNING created_at, updated_at
	`
	completed, points, err := progressCounters(p)
	if err != nil {
		return err
	}
	if err := r.q.QueryRow(ctx, query,
		p.ID,
		string(p.Owner),
		completed,
		points,
		int16(p.Level),
		nullTime(p.CreatedAt),
	).Scan(&p.CreatedAt, &p.UpdatedAt); err != nil {
		return fmt.Errorf("insert progress: %w", err)
	}
	return nil
}

func (r *progressRepository) GetByID(ctx context.Context, id string) (*domain.UserProgress, error) {
	row := r.q.QueryRow(ctx, `SELECT `+progressColumns+` FROM user_progress WHERE id = $1`+forUpdate(r.lock, "FOR UPDATE"), id)
	return scanProgress(row)
}

func (r *progressRepository) Update(ctx context.Context, p *domain.UserProgress) error {
	if p == nil {
		return domain.ErrInvalidPayload
	}
	completed, points, err := progressCounters(p)
	if err != nil {
		return err
	}
	const query = `
	UPDATE user_progress
	SET tasks_completed = $2,
		points_earned = $3,
		level = $4,
		updated_at = $5
	WHERE id = $1
	`
	tag, err := r.q.Exec(ctx, query, p.ID, completed, points, int16(p.Level), p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrProfileNotFound
	}
	return nil
}

func (r *progressRepository) ListByOwner(ctx context.Context, owner domain.Identity) ([]domain.UserProgress, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+progressColumns+` FROM user_progress WHERE owner = $1 ORDER BY created_at, id`,
		string(owner),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.UserProgress
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func progressCounters(p *domain.UserProgress) (int64, int64, error) {
	completed, err := toInt64(p.TasksCompleted)
	if err != nil {
		return 0, 0, domain.WrapError(domain.ErrCodeConflict, "tasks completed out of range", err)
	}
	points, err := toInt64(p.PointsEarned)
	if err != nil {
		return 0, 0, domain.WrapError(domain.ErrCodeConflict, "points earned out of range", err)
	}
	return completed, points, nil
}

func scanProgress(row pgx.Row) (*domain.UserProgress, error) {
	var (
		p         domain.UserProgress
		owner     string
		completed int64
		points    int64
		level     int16
	)
	if err := row.Scan(&p.ID, &owner, &completed, &points, &level, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProfileNotFound
		}
		return nil, err
	}
	p.Owner = domain.Identity(owner)
	p.TasksCompleted = toUint64(completed)
	p.PointsEarned = toUint64(points)
	p.Level = uint8(level)
	return &p, nil
}
