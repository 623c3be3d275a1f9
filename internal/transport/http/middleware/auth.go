package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arklim/authcore/internal/core/domain"
	"github.com/arklim/authcore/internal/infra/security"
	"github.com/arklim/authcore/internal/usecase"
)

// ErrorResponse matches the handlers.ErrorResponse structure
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// newErrorResponse creates an error response with trace ID
func newErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	return ErrorResponse{
		Error:   errorMsg,
		TraceID: GetTraceID(c),
	}
}

// RequireAuth validates the Authorization header and extracts the token claims
func RequireAuth(authService *usecase.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "missing authorization header"))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "invalid authorization format: expected 'Bearer <token>'"))
			return
		}

		if !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "invalid authorization format: must start with 'Bearer'"))
			return
		}

		token := strings.TrimSpace(parts[1])
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "missing access token"))
			return
		}

		claims, err := authService.VerifyAccess(c.Request.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, security.ErrTokenExpired):
				c.AbortWithStatusJSON(http.StatusUnauthorized,
					newErrorResponse(c, "access token expired"))
			case errors.Is(err, usecase.ErrTokenRevoked), errors.Is(err, usecase.ErrEpochMismatch):
				c.AbortWithStatusJSON(http.StatusUnauthorized,
					newErrorResponse(c, "access token revoked"))
			case errors.Is(err, security.ErrTokenMalformed), errors.Is(err, security.ErrWrongTokenKind):
				c.AbortWithStatusJSON(http.StatusUnauthorized,
					newErrorResponse(c, "invalid access token"))
			default:
				// Revocation checks fail closed, so a store outage lands here.
				c.AbortWithStatusJSON(http.StatusServiceUnavailable,
					newErrorResponse(c, "authentication unavailable"))
			}
			return
		}

		c.Set(PrincipalIDKey, claims.Subject)
		c.Set(ClaimsKey, claims)

		if reqCtx := GetRequestContext(c); reqCtx != nil {
			reqCtx.PrincipalID = claims.Subject
		}

		c.Next()
	}
}

// GetAuthenticatedPrincipalID retrieves the principal ID from context (helper for handlers)
func GetAuthenticatedPrincipalID(c *gin.Context) (string, bool) {
	principalID, exists := c.Get(PrincipalIDKey)
	if !exists {
		return "", false
	}

	if id, ok := principalID.(string); ok {
		return id, true
	}

	return "", false
}

// GetTokenClaims retrieves the verified token claims from context
func GetTokenClaims(c *gin.Context) (*domain.TokenClaims, bool) {
	val, exists := c.Get(ClaimsKey)
	if !exists {
		return nil, false
	}

	claims, ok := val.(*domain.TokenClaims)
	return claims, ok
}
