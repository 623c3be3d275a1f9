package port

import (
	"context"
	"time"

	"github.com/arklim/authcore/internal/core/domain"
)

// FailureJournal couples the failed-attempt charge with its audit record.
// Implementations apply both writes as one unit: the counter must never
// advance without the matching attempt row.
type FailureJournal interface {
	RecordFailureAttempt(ctx context.Context, principalID string, threshold uint, lockFor time.Duration, attempt domain.LoginAttempt) (FailureOutcome, error)
}
