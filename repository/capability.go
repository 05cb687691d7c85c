package repository

import (
	"context"
	"time"

	"github.com/fastygo/taskledger/domain"
)

// CapabilityGrant is the persisted record of the single admin capability.
// Only a hash of the secret is stored.
type CapabilityGrant struct {
	Holder     domain.Identity `json:"holder"`
	SecretHash []byte          `json:"secret_hash"`
	MintedAt   time.Time       `json:"minted_at"`
}

// CapabilityRepository persists the admin capability grant.
type CapabilityRepository interface {
	// Get returns nil, nil when no capability has been minted yet.
	Get(ctx context.Context) (*CapabilityGrant, error)
	// Save fails with domain.ErrCapabilityMinted when a grant already exists.
	Save(ctx context.Context, grant *CapabilityGrant) error
}
