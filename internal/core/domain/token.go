package domain

import "time"

// TokenKind distinguishes the roles an issued token may play.
type TokenKind string

const (
	// TokenKindAccess is a short-lived token presented on every request.
	TokenKindAccess TokenKind = "access"
	// TokenKindRefresh is a long-lived token exchangeable for a new pair.
	TokenKindRefresh TokenKind = "refresh"
	// TokenKindPending2FA bridges a verified password and a pending second factor.
	TokenKindPending2FA TokenKind = "pending_2fa"
)

// Valid reports whether the kind is one of the issued variants.
func (k TokenKind) Valid() bool {
	switch k {
	case TokenKindAccess, TokenKindRefresh, TokenKindPending2FA:
		return true
	}
	return false
}

// TokenClaims is the closed claim set carried by every issued token.
// Instances are immutable once issued; the codec validates every field on
// decode rather than accepting arbitrary claim maps.
type TokenClaims struct {
	Subject   string
	TokenID   string
	Kind      TokenKind
	Epoch     uint64
	IssuedAt  time.Time
	NotBefore time.Time
	ExpiresAt time.Time
}

// Remaining returns the lifetime left at the supplied instant.
func (c TokenClaims) Remaining(at time.Time) time.Duration {
	remaining := c.ExpiresAt.Sub(at)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// TokenPair bundles the access and refresh tokens handed to a client.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int
}
