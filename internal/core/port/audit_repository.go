package port

import (
	"context"

	"github.com/arklim/authcore/internal/core/domain"
)

// AuditRepository appends login attempts to the audit trail. Writes are
// append-only; the auth core never mutates or deletes recorded attempts.
type AuditRepository interface {
	RecordAttempt(ctx context.Context, attempt domain.LoginAttempt) error
	ListByPrincipal(ctx context.Context, principalID string, limit int) ([]domain.LoginAttempt, error)
}
