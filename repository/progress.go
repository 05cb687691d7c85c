package repository

import (
	"context"

	"github.com/fastygo/taskledger/domain"
)

// ProgressRepository stores UserProgress records. Several records may share an owner.
type ProgressRepository interface {
	Create(ctx context.Context, progress *domain.UserProgress) error
	GetByID(ctx context.Context, id string) (*domain.UserProgress, error)
	Update(ctx context.Context, progress *domain.UserProgress) error
	ListByOwner(ctx context.Context, owner domain.Identity) ([]domain.UserProgress, error)
}
