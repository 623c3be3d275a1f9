package postgres

import "github.com/jackc/pgx/v5/pgxpool"

// Repositories groups concrete PostgreSQL repository implementations.
type Repositories struct {
	Principals  *PrincipalRepository
	Audit       *AuditRepository
	BackupCodes *BackupCodeRepository
	APIKeys     *APIKeyRepository
	Failures    *FailureJournal
}

// NewRepositories wires all repositories backed by the provided pool.
func NewRepositories(pool *pgxpool.Pool) *Repositories {
	principals := NewPrincipalRepository(pool)
	audit := NewAuditRepository(pool)
	return &Repositories{
		Principals:  principals,
		Audit:       audit,
		BackupCodes: NewBackupCodeRepository(pool),
		APIKeys:     NewAPIKeyRepository(pool),
		Failures:    NewFailureJournal(pool, principals, audit),
	}
}
