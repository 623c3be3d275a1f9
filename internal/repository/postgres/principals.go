package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arklim/authcore/internal/core/domain"
	"github.com/arklim/authcore/internal/core/port"
	"github.com/arklim/authcore/internal/repository"
)

// PrincipalRepository implements port.PrincipalRepository using PostgreSQL.
type PrincipalRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewPrincipalRepository constructs a repository backed by any executor that
// satisfies pgExecutor.
func NewPrincipalRepository(exec pgExecutor) *PrincipalRepository {
	repo := &PrincipalRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *PrincipalRepository) WithTx(tx pgx.Tx) *PrincipalRepository {
	if tx == nil {
		return r
	}
	return &PrincipalRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

const principalColumns = "id, identifier, password_hash, failed_attempts, locked_until, token_epoch, two_factor_secret, two_factor_enabled, created_at, last_login"

func scanPrincipal(row pgx.Row) (*domain.Principal, error) {
	var (
		principal   domain.Principal
		lockedUntil *time.Time
		totpSecret  *string
		lastLogin   *time.Time
	)

	if err := row.Scan(
		&principal.ID,
		&principal.Identifier,
		&principal.PasswordHash,
		&principal.FailedAttempts,
		&lockedUntil,
		&principal.TokenEpoch,
		&totpSecret,
		&principal.TwoFactorEnabled,
		&principal.CreatedAt,
		&lastLogin,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan principal: %w", err)
	}

	principal.LockedUntil = lockedUntil
	principal.TwoFactorSecret = totpSecret
	principal.LastLogin = lastLogin

	return &principal, nil
}

// GetByID retrieves a principal by identifier.
func (r *PrincipalRepository) GetByID(ctx context.Context, id string) (*domain.Principal, error) {
	stmt, args, err := r.builder.
		Select(strings.Split(principalColumns, ", ")...).
		From("auth.principals").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select principal sql: %w", err)
	}

	return scanPrincipal(r.exec.QueryRow(ctx, stmt, args...))
}

// GetByIdentifier retrieves a principal by its login identifier.
func (r *PrincipalRepository) GetByIdentifier(ctx context.Context, identifier string) (*domain.Principal, error) {
	stmt, args, err := r.builder.
		Select(strings.Split(principalColumns, ", ")...).
		From("auth.principals").
		Where(squirrel.Eq{"identifier": identifier}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select principal by identifier sql: %w", err)
	}

	return scanPrincipal(r.exec.QueryRow(ctx, stmt, args...))
}

// RecordFailure increments failed_attempts and applies the lock in a single
// statement so two racing failures cannot both observe a pre-threshold count.
func (r *PrincipalRepository) RecordFailure(ctx context.Context, id string, threshold uint, lockFor time.Duration) (port.FailureOutcome, error) {
	if threshold == 0 {
		return port.FailureOutcome{}, fmt.Errorf("lockout threshold must be positive")
	}

	stmt := `
		UPDATE auth.principals
		   SET failed_attempts = failed_attempts + 1,
		       locked_until = CASE
		           WHEN failed_attempts + 1 >= $2 THEN now() + $3::interval
		           ELSE locked_until
		       END
		 WHERE id = $1
		RETURNING failed_attempts, locked_until
	`

	interval := fmt.Sprintf("%d milliseconds", lockFor.Milliseconds())

	var outcome port.FailureOutcome
	if err := r.exec.QueryRow(ctx, stmt, id, int64(threshold), interval).Scan(
		&outcome.FailedAttempts,
		&outcome.LockedUntil,
	); err != nil {
		if err == pgx.ErrNoRows {
			return port.FailureOutcome{}, repository.ErrNotFound
		}
		return port.FailureOutcome{}, fmt.Errorf("record login failure: %w", err)
	}

	outcome.Locked = outcome.FailedAttempts >= threshold
	return outcome, nil
}

// ResetFailures zeroes the lockout counter and clears any active lock.
func (r *PrincipalRepository) ResetFailures(ctx context.Context, id string) error {
	stmt, args, err := r.builder.Update("auth.principals").
		Set("failed_attempts", 0).
		Set("locked_until", nil).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build reset failures sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("reset login failures: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// ClearExpiredLock resets the counter only when the lock window has elapsed.
// A lock that is still active is left untouched.
func (r *PrincipalRepository) ClearExpiredLock(ctx context.Context, id string, now time.Time) error {
	stmt, args, err := r.builder.Update("auth.principals").
		Set("failed_attempts", 0).
		Set("locked_until", nil).
		Where(squirrel.Eq{"id": id}).
		Where(squirrel.LtOrEq{"locked_until": now}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build clear expired lock sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("clear expired lock: %w", err)
	}

	return nil
}

// BumpTokenEpoch atomically increments the epoch and returns the new value.
func (r *PrincipalRepository) BumpTokenEpoch(ctx context.Context, id string) (uint64, error) {
	stmt := `
		UPDATE auth.principals
		   SET token_epoch = token_epoch + 1
		 WHERE id = $1
		RETURNING token_epoch
	`

	var epoch uint64
	if err := r.exec.QueryRow(ctx, stmt, id).Scan(&epoch); err != nil {
		if err == pgx.ErrNoRows {
			return 0, repository.ErrNotFound
		}
		return 0, fmt.Errorf("bump token epoch: %w", err)
	}

	return epoch, nil
}

// GetTokenEpoch reads the current epoch for a principal.
func (r *PrincipalRepository) GetTokenEpoch(ctx context.Context, id string) (uint64, error) {
	stmt, args, err := r.builder.Select("token_epoch").
		From("auth.principals").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build select token epoch sql: %w", err)
	}

	var epoch uint64
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&epoch); err != nil {
		if err == pgx.ErrNoRows {
			return 0, repository.ErrNotFound
		}
		return 0, fmt.Errorf("scan token epoch: %w", err)
	}

	return epoch, nil
}

// TouchLastLogin stamps the most recent successful authentication.
func (r *PrincipalRepository) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	stmt, args, err := r.builder.Update("auth.principals").
		Set("last_login", at).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build touch last login sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("touch last login: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

var _ port.PrincipalRepository = (*PrincipalRepository)(nil)
