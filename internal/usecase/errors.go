package usecase

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidCredentials indicates the provided identifier or password are
	// incorrect. Deliberately generic: callers must not be able to tell a
	// missing account from a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrTokenRevoked indicates the token identifier is in the revocation set.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrEpochMismatch indicates the token predates a logout-all event.
	ErrEpochMismatch = errors.New("token epoch mismatch")
	// ErrInvalidSecondFactor indicates the TOTP code or backup code did not
	// verify. Generic for the same enumeration reason as ErrInvalidCredentials.
	ErrInvalidSecondFactor = errors.New("invalid second factor")
	// ErrInvalidAPIKey indicates the presented API key is unknown or revoked.
	ErrInvalidAPIKey = errors.New("invalid api key")
)

// AccountLockedError reports an active lockout and how long it still holds.
type AccountLockedError struct {
	RetryAfter time.Duration
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account locked, retry after %s", e.RetryAfter)
}

// RateLimitExceededError reports an admission rejection for a scope.
type RateLimitExceededError struct {
	Scope      string
	RetryAfter time.Duration
}

func (e *RateLimitExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded for scope %s, retry after %s", e.Scope, e.RetryAfter)
}
