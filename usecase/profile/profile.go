package profile

import (
	"context"

	"go.uber.org/zap"

	"github.com/fastygo/taskledger/domain"
	appLogger "github.com/fastygo/taskledger/pkg/logger"
	"github.com/fastygo/taskledger/repository"
)

type UseCase struct {
	store  repository.Store
	logger *zap.Logger
}

func New(store repository.Store, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		store:  store,
		logger: logger,
	}
}

// CreateProfile starts a fresh progress record owned by caller. Nothing stops
// an identity from holding several; callers are expected to create one.
func (uc *UseCase) CreateProfile(ctx context.Context, caller domain.Identity) (*domain.UserProgress, error) {
	progress := domain.NewUserProgress(caller)
	if err := uc.store.Atomically(ctx, func(tx repository.Tx) error {
		return tx.Progress().Create(ctx, progress)
	}); err != nil {
		return nil, err
	}
	appLogger.WithCaller(appLogger.WithRequestID(ctx, uc.logger), caller).
		Info("profile created", zap.String("profile_id", progress.ID))
	return progress, nil
}

func (uc *UseCase) GetProfile(ctx context.Context, id string) (*domain.UserProgress, error) {
	var progress *domain.UserProgress
	err := uc.store.View(ctx, func(tx repository.Tx) error {
		var err error
		progress, err = tx.Progress().GetByID(ctx, id)
		return err
	})
	return progress, err
}

// ListProfiles returns every progress record owned by owner, oldest first.
func (uc *UseCase) ListProfiles(ctx context.Context, owner domain.Identity) ([]domain.UserProgress, error) {
	var out []domain.UserProgress
	err := uc.store.View(ctx, func(tx repository.Tx) error {
		var err error
		out, err = tx.Progress().ListByOwner(ctx, owner)
		return err
	})
	return out, err
}
