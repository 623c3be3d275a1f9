package port

import (
	"context"
	"time"

	"github.com/arklim/authcore/internal/core/domain"
)

// APIKeyRepository resolves header-presented API keys stored as hashes.
type APIKeyRepository interface {
	GetByHash(ctx context.Context, keyHash string) (*domain.APIKey, error)
	Create(ctx context.Context, key domain.APIKey) error
	Revoke(ctx context.Context, id string, at time.Time) error
	TouchLastUsed(ctx context.Context, id string, at time.Time) error
}
