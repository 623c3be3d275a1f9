package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Error:   errorMsg,
		TraceID: traceIDStr,
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// LoginRequest defines the payload for the login endpoint.
type LoginRequest struct {
	Identifier string `json:"identifier" binding:"required"`
	Password   string `json:"password" binding:"required"`
}

// LoginResponse describes the token pair returned for a completed login.
type LoginResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// SecondFactorRequiredResponse is returned when the password verified but a
// second factor is still outstanding.
type SecondFactorRequiredResponse struct {
	RequiresSecondFactor bool   `json:"requires_2fa"`
	PendingToken         string `json:"pending_token"`
}

// LockedResponse is returned when the account is in the locked state.
type LockedResponse struct {
	Error      string `json:"error"`
	RetryAfter int    `json:"retry_after"`
	TraceID    string `json:"trace_id,omitempty"`
}

// InvalidCredentialsResponse carries the generic rejection plus the attempts
// left before lockout. Unknown identifiers report the full budget so the
// response shape never reveals whether the account exists.
type InvalidCredentialsResponse struct {
	Error             string `json:"error"`
	RemainingAttempts uint   `json:"remaining_attempts"`
	TraceID           string `json:"trace_id,omitempty"`
}

// SecondFactorRequest completes a pending two-factor login. Exactly one of
// totp_code and backup_code should be supplied.
type SecondFactorRequest struct {
	PendingToken string `json:"pending_token" binding:"required"`
	TOTPCode     string `json:"totp_code"`
	BackupCode   string `json:"backup_code"`
}

// TokenRefreshRequest represents the payload to refresh an access token.
type TokenRefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// LogoutRequest optionally carries the refresh token paired with the access
// token being surrendered.
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// HealthResponse reports liveness status.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ReadinessResponse reports the state of each readiness dependency.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}
