package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/arklim/authcore/internal/core/domain"
	"github.com/arklim/authcore/internal/core/port"
)

// FailureJournal applies a failed-login charge and its audit row inside a
// single transaction. A cancelled or failed audit insert rolls the counter
// increment back, so the principal is never charged without a matching
// login_attempts row.
type FailureJournal struct {
	db         txBeginner
	principals *PrincipalRepository
	audit      *AuditRepository
}

// NewFailureJournal constructs a journal over the shared pool and the
// repositories it coordinates.
func NewFailureJournal(db txBeginner, principals *PrincipalRepository, audit *AuditRepository) *FailureJournal {
	return &FailureJournal{
		db:         db,
		principals: principals,
		audit:      audit,
	}
}

// RecordFailureAttempt increments the failure counter and appends the audit
// entry in one transaction.
func (j *FailureJournal) RecordFailureAttempt(ctx context.Context, principalID string, threshold uint, lockFor time.Duration, attempt domain.LoginAttempt) (port.FailureOutcome, error) {
	tx, err := j.db.Begin(ctx)
	if err != nil {
		return port.FailureOutcome{}, fmt.Errorf("begin failure journal tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	outcome, err := j.principals.WithTx(tx).RecordFailure(ctx, principalID, threshold, lockFor)
	if err != nil {
		return port.FailureOutcome{}, err
	}

	if err := j.audit.WithTx(tx).RecordAttempt(ctx, attempt); err != nil {
		return port.FailureOutcome{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return port.FailureOutcome{}, fmt.Errorf("commit failure journal tx: %w", err)
	}

	return outcome, nil
}

var _ port.FailureJournal = (*FailureJournal)(nil)
