package postgres

import (
	"context"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arklim/authcore/internal/core/domain"
	"github.com/arklim/authcore/internal/core/port"
	"github.com/arklim/authcore/internal/repository"
)

// APIKeyRepository resolves hashed API keys stored in PostgreSQL.
type APIKeyRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewAPIKeyRepository constructs a PostgreSQL-backed API key repository.
func NewAPIKeyRepository(exec pgExecutor) *APIKeyRepository {
	repo := &APIKeyRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// GetByHash retrieves a key record by the hash of its presented secret.
func (r *APIKeyRepository) GetByHash(ctx context.Context, keyHash string) (*domain.APIKey, error) {
	stmt, args, err := r.builder.Select("id", "principal_id", "key_hash", "label", "scopes", "created_at", "last_used_at", "revoked_at").
		From("auth.api_keys").
		Where(squirrel.Eq{"key_hash": keyHash}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select api key sql: %w", err)
	}

	var key domain.APIKey
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(
		&key.ID,
		&key.PrincipalID,
		&key.KeyHash,
		&key.Label,
		&key.Scopes,
		&key.CreatedAt,
		&key.LastUsedAt,
		&key.RevokedAt,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan api key: %w", err)
	}

	return &key, nil
}

// Create inserts a new key record. The caller hashes the secret first; the
// plaintext never reaches storage.
func (r *APIKeyRepository) Create(ctx context.Context, key domain.APIKey) error {
	createdAt := key.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	stmt, args, err := r.builder.Insert("auth.api_keys").
		Columns("id", "principal_id", "key_hash", "label", "scopes", "created_at").
		Values(key.ID, key.PrincipalID, key.KeyHash, key.Label, key.Scopes, createdAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert api key sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert api key: %w", err)
	}

	return nil
}

// Revoke disables a key. Revocation is permanent.
func (r *APIKeyRepository) Revoke(ctx context.Context, id string, at time.Time) error {
	stmt, args, err := r.builder.Update("auth.api_keys").
		Set("revoked_at", at).
		Where(squirrel.Eq{"id": id}).
		Where(squirrel.Eq{"revoked_at": nil}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build revoke api key sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// TouchLastUsed stamps the most recent authenticated use of the key.
func (r *APIKeyRepository) TouchLastUsed(ctx context.Context, id string, at time.Time) error {
	stmt, args, err := r.builder.Update("auth.api_keys").
		Set("last_used_at", at).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build touch api key sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("touch api key: %w", err)
	}

	return nil
}

var _ port.APIKeyRepository = (*APIKeyRepository)(nil)
