package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arklim/authcore/internal/core/domain"
	"github.com/arklim/authcore/internal/usecase"
)

const apiKeyHeader = "X-API-Key"

// RequireAPIKey authenticates requests carrying an X-API-Key header. The key
// is looked up by hash and charged against its per-key sliding window.
func RequireAPIKey(keys *usecase.APIKeyService) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(apiKeyHeader)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "missing api key"))
			return
		}

		key, err := keys.Authenticate(c.Request.Context(), raw)
		if err != nil {
			var limited *usecase.RateLimitExceededError
			switch {
			case errors.Is(err, usecase.ErrInvalidAPIKey):
				c.AbortWithStatusJSON(http.StatusUnauthorized,
					newErrorResponse(c, "invalid api key"))
			case errors.As(err, &limited):
				respondRateLimited(c, limited.RetryAfter)
			default:
				c.AbortWithStatusJSON(http.StatusServiceUnavailable,
					newErrorResponse(c, "authentication unavailable"))
			}
			return
		}

		c.Set(APIKeyKey, key)
		c.Set(PrincipalIDKey, key.PrincipalID)

		if reqCtx := GetRequestContext(c); reqCtx != nil {
			reqCtx.PrincipalID = key.PrincipalID
		}

		c.Next()
	}
}

// RequireScope checks that the authenticated API key grants the given scope.
func RequireScope(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		val, exists := c.Get(APIKeyKey)
		if !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "authentication required"))
			return
		}

		key, ok := val.(*domain.APIKey)
		if !ok {
			c.AbortWithStatusJSON(http.StatusInternalServerError,
				newErrorResponse(c, "invalid api key context"))
			return
		}

		if !key.HasScope(scope) {
			c.AbortWithStatusJSON(http.StatusForbidden,
				newErrorResponse(c, "insufficient scope"))
			return
		}

		c.Next()
	}
}
