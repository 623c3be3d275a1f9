package port

import (
	"context"
	"time"

	"github.com/arklim/authcore/internal/core/domain"
)

// BackupCodeRepository stores hashed second-factor recovery codes.
type BackupCodeRepository interface {
	// Store replaces the principal's outstanding codes with a fresh batch.
	Store(ctx context.Context, principalID string, codes []domain.BackupCode) error
	// ListUnused returns the codes still eligible for consumption.
	ListUnused(ctx context.Context, principalID string) ([]domain.BackupCode, error)
	// Consume marks the code used in the same statement that confirms it was
	// unused. Returns false when the code was already consumed, so a racing
	// second use of the same code can never succeed twice.
	Consume(ctx context.Context, codeID string, at time.Time) (bool, error)
}
