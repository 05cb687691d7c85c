// Package auth mints and verifies the admin capability.
//
// An AdminCap can only be obtained from this package: the zero value is
// invalid, and a valid one comes from Bootstrap (once, at system
// initialization) or from Authorize with the secret handed out by Bootstrap.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/fastygo/taskledger/domain"
	"github.com/fastygo/taskledger/repository"
)

// AdminCap is proof of admin authority.
type AdminCap struct {
	seal *seal
}

type seal struct {
	presentedAt time.Time
}

// Valid reports whether the capability was issued by this package.
func (c AdminCap) Valid() bool {
	return c.seal != nil
}

type Options struct {
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
}

type UseCase struct {
	store  repository.Store
	cost   int
	logger *zap.Logger
}

func New(store repository.Store, logger *zap.Logger, opts Options) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.BcryptCost < bcrypt.MinCost || opts.BcryptCost > bcrypt.MaxCost {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	return &UseCase{
		store:  store,
		cost:   opts.BcryptCost,
		logger: logger,
	}
}

// Bootstrap mints the admin capability for holder and returns its secret.
// The secret is never stored; it cannot be recovered later. A second call
// fails with domain.ErrCapabilityMinted.
func (uc *UseCase) Bootstrap(ctx context.Context, holder domain.Identity) (string, AdminCap, error) {
	secret, err := newSecret()
	if err != nil {
		return "", AdminCap{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), uc.cost)
	if err != nil {
		return "", AdminCap{}, domain.WrapError(domain.ErrCodeInternal, "hash capability secret", err)
	}

	err = uc.store.Atomically(ctx, func(tx repository.Tx) error {
		existing, err := tx.Capabilities().Get(ctx)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.ErrCapabilityMinted
		}
		return tx.Capabilities().Save(ctx, &repository.CapabilityGrant{
			Holder:     holder,
			SecretHash: hash,
			MintedAt:   time.Now().UTC(),
		})
	})
	if err != nil {
		return "", AdminCap{}, err
	}

	uc.logger.Info("admin capability minted", zap.String("holder", string(holder)))
	return secret, AdminCap{seal: &seal{presentedAt: time.Now()}}, nil
}

// Minted reports whether Bootstrap has already run against the store.
func (uc *UseCase) Minted(ctx context.Context) (bool, error) {
	var minted bool
	err := uc.store.View(ctx, func(tx repository.Tx) error {
		grant, err := tx.Capabilities().Get(ctx)
		minted = grant != nil
		return err
	})
	return minted, err
}

// Authorize exchanges a presented secret for an AdminCap.
func (uc *UseCase) Authorize(ctx context.Context, secret string) (AdminCap, error) {
	if secret == "" {
		return AdminCap{}, domain.ErrNotAdmin
	}
	var grant *repository.CapabilityGrant
	if err := uc.store.View(ctx, func(tx repository.Tx) error {
		var err error
		grant, err = tx.Capabilities().Get(ctx)
		return err
	}); err != nil {
		return AdminCap{}, err
	}
	if grant == nil {
		return AdminCap{}, domain.ErrNotAdmin
	}
	if err := bcrypt.CompareHashAndPassword(grant.SecretHash, []byte(secret)); err != nil {
		if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			uc.logger.Warn("capability hash check failed", zap.Error(err))
		}
		return AdminCap{}, domain.ErrNotAdmin
	}
	return AdminCap{seal: &seal{presentedAt: time.Now()}}, nil
}

func newSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", domain.WrapError(domain.ErrCodeInternal, "generate capability secret", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
