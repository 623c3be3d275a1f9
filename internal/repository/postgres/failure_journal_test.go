package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/arklim/authcore/internal/core/domain"
)

func failureAttempt(principalID string) domain.LoginAttempt {
	return domain.LoginAttempt{
		ID:          "attempt-1",
		PrincipalID: &principalID,
		Identifier:  "alice@example.com",
		Succeeded:   false,
		Reason:      "wrong_password",
		CreatedAt:   time.Now().UTC(),
	}
}

func TestFailureJournal_RecordFailureAttempt(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	journal := NewFailureJournal(mock, NewPrincipalRepository(mock), NewAuditRepository(mock))

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE auth\.principals`).
		WithArgs("principal-1", int64(5), "1800000 milliseconds").
		WillReturnRows(pgxmock.NewRows([]string{"failed_attempts", "locked_until"}).AddRow(uint(1), nil))
	mock.ExpectExec(`INSERT INTO auth\.login_attempts`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	outcome, err := journal.RecordFailureAttempt(context.Background(), "principal-1", 5, 30*time.Minute, failureAttempt("principal-1"))
	if err != nil {
		t.Fatalf("RecordFailureAttempt returned error: %v", err)
	}
	if outcome.FailedAttempts != 1 || outcome.Locked {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestFailureJournal_RollsBackWhenAuditInsertFails(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	journal := NewFailureJournal(mock, NewPrincipalRepository(mock), NewAuditRepository(mock))

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE auth\.principals`).
		WithArgs("principal-1", int64(5), "1800000 milliseconds").
		WillReturnRows(pgxmock.NewRows([]string{"failed_attempts", "locked_until"}).AddRow(uint(1), nil))
	mock.ExpectExec(`INSERT INTO auth\.login_attempts`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("audit store down"))
	mock.ExpectRollback()

	if _, err := journal.RecordFailureAttempt(context.Background(), "principal-1", 5, 30*time.Minute, failureAttempt("principal-1")); err == nil {
		t.Fatal("expected error when the audit insert fails")
	}

	// The counter increment never commits without the audit row.
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
