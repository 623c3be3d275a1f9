package domain

import "time"

// Principal mirrors the persisted representation in the principals table.
// The auth core only mutates the lockout counters and the token epoch; the
// remaining fields are owned by the surrounding user-management system.
type Principal struct {
	ID               string
	Identifier       string
	PasswordHash     string
	FailedAttempts   uint
	LockedUntil      *time.Time
	TokenEpoch       uint64
	TwoFactorSecret  *string
	TwoFactorEnabled bool
	CreatedAt        time.Time
	LastLogin        *time.Time
}

// IsLocked reports whether the principal is locked out at the supplied instant.
func (p Principal) IsLocked(at time.Time) bool {
	return p.LockedUntil != nil && p.LockedUntil.After(at)
}

// LockRemaining returns how long the lock still holds at the supplied instant.
func (p Principal) LockRemaining(at time.Time) time.Duration {
	if p.LockedUntil == nil {
		return 0
	}
	remaining := p.LockedUntil.Sub(at)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// LoginAttempt records authentication attempts for throttling and audit.
// Rows are append-only: the core never mutates or deletes them.
type LoginAttempt struct {
	ID          string
	PrincipalID *string
	Identifier  string
	Succeeded   bool
	Reason      string
	IP          *string
	UserAgent   *string
	CreatedAt   time.Time
}

// BackupCode stores a single hashed second-factor recovery code.
type BackupCode struct {
	ID          string
	PrincipalID string
	CodeHash    string
	CreatedAt   time.Time
	UsedAt      *time.Time
}

// IsUsed reports whether the code has already been consumed.
func (c BackupCode) IsUsed() bool {
	return c.UsedAt != nil
}

// APIKey maps a header-presented key (stored as a hash) to a principal and
// an explicit scope list.
type APIKey struct {
	ID          string
	PrincipalID string
	KeyHash     string
	Label       string
	Scopes      []string
	CreatedAt   time.Time
	LastUsedAt  *time.Time
	RevokedAt   *time.Time
}

// IsActive reports whether the key can still authenticate requests.
func (k APIKey) IsActive() bool {
	return k.RevokedAt == nil
}

// HasScope reports whether the key grants the requested scope.
func (k APIKey) HasScope(scope string) bool {
	for _, s := range k.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}
