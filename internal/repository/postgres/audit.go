package postgres

import (
	"context"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arklim/authcore/internal/core/domain"
	"github.com/arklim/authcore/internal/core/port"
)

// AuditRepository persists login attempts as an append-only trail.
type AuditRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewAuditRepository constructs a PostgreSQL-backed audit repository.
func NewAuditRepository(exec pgExecutor) *AuditRepository {
	repo := &AuditRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *AuditRepository) WithTx(tx pgx.Tx) *AuditRepository {
	if tx == nil {
		return r
	}
	return &AuditRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

// RecordAttempt appends a login attempt row.
func (r *AuditRepository) RecordAttempt(ctx context.Context, attempt domain.LoginAttempt) error {
	id := attempt.ID
	if id == "" {
		id = uuid.NewString()
	}

	createdAt := attempt.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	var principalValue any
	if attempt.PrincipalID != nil && *attempt.PrincipalID != "" {
		principalValue = *attempt.PrincipalID
	}

	var ipValue any
	if attempt.IP != nil && *attempt.IP != "" {
		ipValue = *attempt.IP
	}

	var userAgentValue any
	if attempt.UserAgent != nil && *attempt.UserAgent != "" {
		userAgentValue = *attempt.UserAgent
	}

	stmt, args, err := r.builder.Insert("auth.login_attempts").
		Columns("id", "principal_id", "identifier", "succeeded", "reason", "ip", "user_agent", "created_at").
		Values(id, principalValue, attempt.Identifier, attempt.Succeeded, attempt.Reason, ipValue, userAgentValue, createdAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert login attempt sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert login attempt: %w", err)
	}

	return nil
}

// ListByPrincipal returns the most recent attempts for a principal.
func (r *AuditRepository) ListByPrincipal(ctx context.Context, principalID string, limit int) ([]domain.LoginAttempt, error) {
	query := r.builder.Select("id", "principal_id", "identifier", "succeeded", "reason", "ip", "user_agent", "created_at").
		From("auth.login_attempts").
		Where(squirrel.Eq{"principal_id": principalID}).
		OrderBy("created_at DESC")

	if limit > 0 {
		query = query.Limit(uint64(limit))
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list login attempts sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query login attempts: %w", err)
	}
	defer rows.Close()

	attempts := make([]domain.LoginAttempt, 0)
	for rows.Next() {
		var attempt domain.LoginAttempt
		if err := rows.Scan(
			&attempt.ID,
			&attempt.PrincipalID,
			&attempt.Identifier,
			&attempt.Succeeded,
			&attempt.Reason,
			&attempt.IP,
			&attempt.UserAgent,
			&attempt.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan login attempt: %w", err)
		}
		attempts = append(attempts, attempt)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate login attempts: %w", err)
	}

	return attempts, nil
}

var _ port.AuditRepository = (*AuditRepository)(nil)
