package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arklim/authcore/internal/usecase"
)

// TokenHandler exposes token introspection for trusted machine clients.
type TokenHandler struct {
	auth *usecase.AuthService
}

// NewTokenHandler constructs TokenHandler.
func NewTokenHandler(auth *usecase.AuthService) *TokenHandler {
	return &TokenHandler{auth: auth}
}

// TokenVerifyRequest carries the access token under inspection.
type TokenVerifyRequest struct {
	Token string `json:"token" binding:"required"`
}

// TokenVerifyResponse reports introspection results. Inactive tokens carry
// only active=false; claim details are withheld.
type TokenVerifyResponse struct {
	Active    bool       `json:"active"`
	Subject   string     `json:"subject,omitempty"`
	TokenID   string     `json:"token_id,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Verify introspects an access token on behalf of an API key client.
func (h *TokenHandler) Verify(c *gin.Context) {
	var req TokenVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "token is required"))
		return
	}

	claims, err := h.auth.VerifyAccess(c.Request.Context(), req.Token)
	if err != nil {
		// Every verification failure collapses to inactive so the endpoint
		// cannot be used to distinguish revoked from malformed tokens.
		c.JSON(http.StatusOK, TokenVerifyResponse{Active: false})
		return
	}

	expires := claims.ExpiresAt
	c.JSON(http.StatusOK, TokenVerifyResponse{
		Active:    true,
		Subject:   claims.Subject,
		TokenID:   claims.TokenID,
		ExpiresAt: &expires,
	})
}
