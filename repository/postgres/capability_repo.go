package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/fastygo/taskledger/domain"
	"github.com/fastygo/taskledger/repository"
)

type capabilityRepository struct {
	q querier
}

func (r *capabilityRepository) Get(ctx context.Context) (*repository.CapabilityGrant, error) {
	var (
		grant  repository.CapabilityGrant
		holder string
	)
	err := r.q.QueryRow(ctx,
		`SELECT holder, secret_hash, minted_at FROM admin_capability WHERE id = 1`,
	).Scan(&holder, &grant.SecretHash, &grant.MintedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	grant.Holder = domain.Identity(holder)
	return &grant, nil
}

func (r *capabilityRepository) Save(ctx context.Context, grant *repository.CapabilityGrant) error {
	if grant == nil {
		return domain.ErrInvalidPayload
	}
	tag, err := r.q.Exec(ctx, `
	INSERT INTO admin_capability (id, holder, secret_hash, minted_at)
	VALUES (1, $1, $2, COALESCE($3, NOW()))
	ON CONFLICT (id) DO NOTHING
	`, string(grant.Holder), grant.SecretHash, nullTime(grant.MintedAt))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCapabilityMinted
	}
	return nil
}
