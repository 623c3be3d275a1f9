package handlers

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arklim/authcore/internal/infra/security"
	"github.com/arklim/authcore/internal/infra/telemetry"
	"github.com/arklim/authcore/internal/repository"
	"github.com/arklim/authcore/internal/transport/http/middleware"
	"github.com/arklim/authcore/internal/usecase"
)

const (
	loginRateLimitProblemType  = "https://authcore.example.com/errors/rate-limit-exceeded"
	loginRateLimitProblemTitle = "Rate Limit Exceeded"
)

// AuthHandler exposes authentication endpoints.
type AuthHandler struct {
	auth    *usecase.AuthService
	metrics *telemetry.Provider
}

// AuthHandlerOption configures optional AuthHandler dependencies.
type AuthHandlerOption func(*AuthHandler)

// WithTelemetry injects the domain metrics provider.
func WithTelemetry(metrics *telemetry.Provider) AuthHandlerOption {
	return func(h *AuthHandler) {
		h.metrics = metrics
	}
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(auth *usecase.AuthService, opts ...AuthHandlerOption) *AuthHandler {
	handler := &AuthHandler{auth: auth}

	for _, opt := range opts {
		if opt != nil {
			opt(handler)
		}
	}

	return handler
}

// RegisterRoutes binds authentication routes, applying optional middleware ahead of the login handler.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup, loginMiddlewares ...gin.HandlerFunc) {
	if len(loginMiddlewares) > 0 {
		chain := append([]gin.HandlerFunc{}, loginMiddlewares...)
		chain = append(chain, h.login)
		r.POST("/login", chain...)
	} else {
		r.POST("/login", h.login)
	}

	r.POST("/login/2fa", h.completeSecondFactor)
	r.POST("/refresh", h.refresh)
	r.POST("/logout", middleware.RequireAuth(h.auth), h.logout)
	r.POST("/logout-all", middleware.RequireAuth(h.auth), h.logoutAll)
}

func (h *AuthHandler) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid login payload"))
		return
	}

	input := usecase.LoginInput{
		Identifier: strings.TrimSpace(req.Identifier),
		Password:   req.Password,
		IP:         strings.TrimSpace(c.ClientIP()),
		UserAgent:  strings.TrimSpace(c.Request.UserAgent()),
	}

	result, err := h.auth.Login(c.Request.Context(), input)
	if err != nil {
		h.respondLoginError(c, err)
		return
	}

	switch result.Status {
	case usecase.LoginSuccess:
		h.metrics.ObserveLogin("success")
		c.JSON(http.StatusOK, LoginResponse{
			AccessToken:  result.Tokens.AccessToken,
			RefreshToken: result.Tokens.RefreshToken,
			TokenType:    "Bearer",
			ExpiresIn:    result.Tokens.ExpiresIn,
		})
	case usecase.LoginRequiresSecondFactor:
		h.metrics.ObserveLogin("requires_2fa")
		c.JSON(http.StatusOK, SecondFactorRequiredResponse{
			RequiresSecondFactor: true,
			PendingToken:         result.PendingToken,
		})
	case usecase.LoginLocked:
		h.metrics.ObserveLogin("locked")
		h.metrics.ObserveLockout()
		respondLocked(c, result.RetryAfter)
	default:
		h.metrics.ObserveLogin("invalid_credentials")
		c.JSON(http.StatusUnauthorized, InvalidCredentialsResponse{
			Error:             "invalid credentials",
			RemainingAttempts: result.RemainingAttempts,
			TraceID:           middleware.GetTraceID(c),
		})
	}
}

func (h *AuthHandler) completeSecondFactor(c *gin.Context) {
	var req SecondFactorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "pending_token is required"))
		return
	}

	input := usecase.SecondFactorInput{
		PendingToken: strings.TrimSpace(req.PendingToken),
		TOTPCode:     strings.TrimSpace(req.TOTPCode),
		BackupCode:   strings.TrimSpace(req.BackupCode),
		IP:           strings.TrimSpace(c.ClientIP()),
		UserAgent:    strings.TrimSpace(c.Request.UserAgent()),
	}

	pair, err := h.auth.CompleteSecondFactor(c.Request.Context(), input)
	if err != nil {
		var rateErr *usecase.RateLimitExceededError
		if errors.As(err, &rateErr) {
			respondRateLimitExceeded(c, rateErr)
			return
		}

		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidSecondFactor, Status: http.StatusUnauthorized, Message: "invalid second factor"},
			{Err: usecase.ErrTokenRevoked, Status: http.StatusUnauthorized, Message: "pending token no longer valid"},
			{Err: usecase.ErrEpochMismatch, Status: http.StatusUnauthorized, Message: "pending token no longer valid"},
			{Err: security.ErrTokenExpired, Status: http.StatusUnauthorized, Message: "pending token expired"},
			{Err: security.ErrTokenMalformed, Status: http.StatusUnauthorized, Message: "invalid pending token"},
			{Err: security.ErrWrongTokenKind, Status: http.StatusUnauthorized, Message: "invalid pending token"},
		}, http.StatusInternalServerError, "second factor verification failed")
		return
	}

	h.metrics.ObserveLogin("success")
	c.JSON(http.StatusOK, LoginResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    pair.ExpiresIn,
	})
}

func (h *AuthHandler) refresh(c *gin.Context) {
	var req TokenRefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "refresh_token is required"))
		return
	}

	pair, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrTokenRevoked, Status: http.StatusUnauthorized, Message: "refresh token revoked"},
			{Err: usecase.ErrEpochMismatch, Status: http.StatusUnauthorized, Message: "refresh token revoked"},
			{Err: security.ErrTokenExpired, Status: http.StatusUnauthorized, Message: "refresh token expired"},
			{Err: security.ErrTokenMalformed, Status: http.StatusUnauthorized, Message: "invalid refresh token"},
			{Err: security.ErrWrongTokenKind, Status: http.StatusUnauthorized, Message: "invalid refresh token"},
		}, http.StatusInternalServerError, "failed to refresh token")
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    pair.ExpiresIn,
	})
}

func (h *AuthHandler) logout(c *gin.Context) {
	accessToken := bearerToken(c)
	if accessToken == "" {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req LogoutRequest
	// The body is optional; decode failures leave the refresh token empty.
	_ = c.ShouldBindJSON(&req)

	if err := h.auth.Logout(c.Request.Context(), accessToken, strings.TrimSpace(req.RefreshToken)); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.Status(http.StatusNoContent)
			return
		}
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to revoke token"))
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *AuthHandler) logoutAll(c *gin.Context) {
	principalID, ok := middleware.GetAuthenticatedPrincipalID(c)
	if !ok || principalID == "" {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	if _, err := h.auth.LogoutAll(c.Request.Context(), principalID); err != nil {
		if errors.Is(err, usecase.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
			return
		}
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to revoke sessions"))
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *AuthHandler) respondLoginError(c *gin.Context, err error) {
	var rateErr *usecase.RateLimitExceededError
	if errors.As(err, &rateErr) {
		h.metrics.ObserveLogin("rate_limited")
		respondRateLimitExceeded(c, rateErr)
		return
	}

	c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "authentication failed"))
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func respondLocked(c *gin.Context, retryAfter time.Duration) {
	seconds := int(math.Ceil(retryAfter.Seconds()))
	if seconds < 0 {
		seconds = 0
	}

	c.Writer.Header().Set("Retry-After", strconv.Itoa(seconds))
	c.JSON(http.StatusLocked, LockedResponse{
		Error:      "account locked",
		RetryAfter: seconds,
		TraceID:    middleware.GetTraceID(c),
	})
}

func respondRateLimitExceeded(c *gin.Context, rateErr *usecase.RateLimitExceededError) {
	retryAfter := int(rateErr.RetryAfter / time.Second)
	if rateErr.RetryAfter%time.Second != 0 {
		retryAfter++
	}
	if retryAfter < 0 {
		retryAfter = 0
	}

	detail := "Too many attempts. Try again later."
	if rateErr.RetryAfter > 0 {
		detail = fmt.Sprintf("Too many attempts. Try again in %d seconds.", retryAfter)
	}

	instance := c.FullPath()
	if instance == "" {
		instance = c.Request.URL.Path
	}

	c.Writer.Header().Set("Retry-After", strconv.Itoa(retryAfter))

	problem := middleware.ProblemDetails{
		Type:       loginRateLimitProblemType,
		Title:      loginRateLimitProblemTitle,
		Status:     http.StatusTooManyRequests,
		Detail:     detail,
		Instance:   instance,
		RetryAfter: retryAfter,
		TraceID:    middleware.GetTraceID(c),
	}

	c.JSON(http.StatusTooManyRequests, problem)
}
