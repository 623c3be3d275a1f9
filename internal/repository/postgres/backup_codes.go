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

// BackupCodeRepository stores hashed recovery codes in PostgreSQL.
type BackupCodeRepository struct {
	pool    *pgxpool.Pool
	db      txBeginner
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewBackupCodeRepository constructs a PostgreSQL-backed backup code repository.
func NewBackupCodeRepository(exec pgExecutor) *BackupCodeRepository {
	repo := &BackupCodeRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	if db, ok := exec.(txBeginner); ok {
		repo.db = db
	}
	return repo
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *BackupCodeRepository) WithTx(tx pgx.Tx) *BackupCodeRepository {
	if tx == nil {
		return r
	}
	return &BackupCodeRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

// Store replaces the principal's outstanding codes with a fresh batch. Old
// codes, used or not, stop working the moment a new batch is provisioned.
// The delete and the insert run in one transaction, so a failed insert never
// leaves the principal without any codes.
func (r *BackupCodeRepository) Store(ctx context.Context, principalID string, codes []domain.BackupCode) error {
	if principalID == "" {
		return fmt.Errorf("principal id is required")
	}

	if r.db == nil {
		return r.replaceCodes(ctx, principalID, codes)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin backup code tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := r.WithTx(tx).replaceCodes(ctx, principalID, codes); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit backup code tx: %w", err)
	}
	return nil
}

func (r *BackupCodeRepository) replaceCodes(ctx context.Context, principalID string, codes []domain.BackupCode) error {
	deleteStmt, deleteArgs, err := r.builder.Delete("auth.backup_codes").
		Where(squirrel.Eq{"principal_id": principalID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete backup codes sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, deleteStmt, deleteArgs...); err != nil {
		return fmt.Errorf("delete backup codes: %w", err)
	}

	if len(codes) == 0 {
		return nil
	}

	insert := r.builder.Insert("auth.backup_codes").
		Columns("id", "principal_id", "code_hash", "created_at")

	for _, code := range codes {
		id := code.ID
		if id == "" {
			id = uuid.NewString()
		}
		createdAt := code.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		insert = insert.Values(id, principalID, code.CodeHash, createdAt)
	}

	stmt, args, err := insert.ToSql()
	if err != nil {
		return fmt.Errorf("build insert backup codes sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert backup codes: %w", err)
	}

	return nil
}

// ListUnused returns the codes still eligible for consumption.
func (r *BackupCodeRepository) ListUnused(ctx context.Context, principalID string) ([]domain.BackupCode, error) {
	stmt, args, err := r.builder.Select("id", "principal_id", "code_hash", "created_at", "used_at").
		From("auth.backup_codes").
		Where(squirrel.Eq{"principal_id": principalID}).
		Where(squirrel.Eq{"used_at": nil}).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select backup codes sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query backup codes: %w", err)
	}
	defer rows.Close()

	codes := make([]domain.BackupCode, 0)
	for rows.Next() {
		var code domain.BackupCode
		if err := rows.Scan(&code.ID, &code.PrincipalID, &code.CodeHash, &code.CreatedAt, &code.UsedAt); err != nil {
			return nil, fmt.Errorf("scan backup code: %w", err)
		}
		codes = append(codes, code)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate backup codes: %w", err)
	}

	return codes, nil
}

// Consume marks the code used in the statement that confirms it was unused.
// The used_at guard makes a racing second consumption report false rather
// than succeed twice.
func (r *BackupCodeRepository) Consume(ctx context.Context, codeID string, at time.Time) (bool, error) {
	stmt := `
		UPDATE auth.backup_codes
		   SET used_at = $2
		 WHERE id = $1
		   AND used_at IS NULL
		RETURNING id
	`

	var id string
	if err := r.exec.QueryRow(ctx, stmt, codeID, at).Scan(&id); err != nil {
		if err == pgx.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("consume backup code: %w", err)
	}

	return true, nil
}

var _ port.BackupCodeRepository = (*BackupCodeRepository)(nil)
