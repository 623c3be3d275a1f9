package domain

import "time"

// LoginAttemptEvent fans an audited login attempt out to downstream consumers.
type LoginAttemptEvent struct {
	EventID     string         `json:"event_id"`
	PrincipalID string         `json:"principal_id,omitempty"`
	Identifier  string         `json:"identifier"`
	Succeeded   bool           `json:"succeeded"`
	Reason      string         `json:"reason"`
	IP          string         `json:"ip,omitempty"`
	UserAgent   string         `json:"user_agent,omitempty"`
	At          time.Time      `json:"at"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// TokenRevokedEvent announces that a token identifier entered the revocation set.
type TokenRevokedEvent struct {
	EventID     string    `json:"event_id"`
	TokenID     string    `json:"token_id"`
	PrincipalID string    `json:"principal_id"`
	Kind        TokenKind `json:"kind"`
	Reason      string    `json:"reason"`
	RevokedAt   time.Time `json:"revoked_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// EpochBumpedEvent announces a logout-all: every token carrying an older
// epoch is invalid from BumpedAt onward.
type EpochBumpedEvent struct {
	EventID     string    `json:"event_id"`
	PrincipalID string    `json:"principal_id"`
	Epoch       uint64    `json:"epoch"`
	Reason      string    `json:"reason"`
	BumpedAt    time.Time `json:"bumped_at"`
}
