package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"

	"github.com/arklim/authcore/internal/core/domain"
	"github.com/arklim/authcore/internal/core/port"
	"github.com/arklim/authcore/internal/infra/config"
	"github.com/arklim/authcore/internal/infra/security"
	"github.com/arklim/authcore/internal/repository"
)

const apiKeyBytes = 32

// APIKeyService authenticates header-presented API keys and admits them
// under a per-key rate limit scope.
type APIKeyService struct {
	cfg     *config.AppConfig
	keys    port.APIKeyRepository
	limiter *AdmissionLimiter
	now     func() time.Time
}

// NewAPIKeyService constructs an APIKeyService instance.
func NewAPIKeyService(cfg *config.AppConfig, keys port.APIKeyRepository, limiter *AdmissionLimiter) (*APIKeyService, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if keys == nil {
		return nil, fmt.Errorf("api key repository is required")
	}
	if limiter == nil {
		return nil, fmt.Errorf("admission limiter is required")
	}
	return &APIKeyService{
		cfg:     cfg,
		keys:    keys,
		limiter: limiter,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// WithClock overrides the time source. Intended for tests.
func (s *APIKeyService) WithClock(clock func() time.Time) *APIKeyService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// Authenticate resolves a raw key to its record and charges one request
// against the key's own admission scope.
func (s *APIKeyService) Authenticate(ctx context.Context, rawKey string) (*domain.APIKey, error) {
	rawKey = strings.TrimSpace(rawKey)
	if rawKey == "" {
		return nil, ErrInvalidAPIKey
	}

	key, err := s.keys.GetByHash(ctx, security.HashToken(rawKey))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidAPIKey
		}
		return nil, fmt.Errorf("lookup api key: %w", err)
	}

	if !key.IsActive() {
		return nil, ErrInvalidAPIKey
	}

	limit := ScopeLimit{
		Max:    s.cfg.RateLimit.APIKeyMaxRequests,
		Window: s.cfg.RateLimit.APIKeyWindow,
	}
	if limit.Max <= 0 {
		limit.Max = 60
	}
	if limit.Window <= 0 {
		limit.Window = time.Minute
	}

	scope := ScopeAPIKeyPrefix + key.ID
	if err := s.limiter.AdmitWithLimit(ctx, key.ID, scope, limit); err != nil {
		return nil, err
	}

	if err := s.keys.TouchLastUsed(ctx, key.ID, s.now()); err != nil {
		return nil, fmt.Errorf("touch api key: %w", err)
	}

	return key, nil
}

// Provision mints a new key for a principal and returns the plaintext
// exactly once; only the hash is stored.
func (s *APIKeyService) Provision(ctx context.Context, principalID, label string, scopes []string) (string, *domain.APIKey, error) {
	if principalID == "" {
		return "", nil, fmt.Errorf("principal id is required")
	}

	raw, err := security.GenerateSecureToken(apiKeyBytes)
	if err != nil {
		return "", nil, fmt.Errorf("generate api key: %w", err)
	}

	key := domain.APIKey{
		ID:          uuid.NewString(),
		PrincipalID: principalID,
		KeyHash:     security.HashToken(raw),
		Label:       label,
		Scopes:      scopes,
		CreatedAt:   s.now(),
	}

	if err := s.keys.Create(ctx, key); err != nil {
		return "", nil, fmt.Errorf("store api key: %w", err)
	}

	return raw, &key, nil
}

// Revoke permanently disables a key.
func (s *APIKeyService) Revoke(ctx context.Context, keyID string) error {
	if keyID == "" {
		return fmt.Errorf("api key id is required")
	}

	if err := s.keys.Revoke(ctx, keyID, s.now()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidAPIKey
		}
		return fmt.Errorf("revoke api key: %w", err)
	}

	return nil
}
