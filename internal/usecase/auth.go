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

// LoginStatus enumerates the outcomes of a credential check. The variant
// forces callers to handle every branch instead of multiplexing over errors.
type LoginStatus int

const (
	// LoginInvalid covers unknown identifiers and wrong passwords alike.
	LoginInvalid LoginStatus = iota
	// LoginLocked means the account is locked out; RetryAfter says for how long.
	LoginLocked
	// LoginRequiresSecondFactor means credentials verified but a second
	// factor is outstanding; PendingToken bridges to the 2FA step.
	LoginRequiresSecondFactor
	// LoginSuccess carries a full token pair.
	LoginSuccess
)

// LoginInput carries the credential submission plus request metadata for the
// audit trail.
type LoginInput struct {
	Identifier string
	Password   string
	IP         string
	UserAgent  string
}

// LoginResult is the explicit outcome variant of a login attempt.
type LoginResult struct {
	Status            LoginStatus
	Tokens            *domain.TokenPair
	PendingToken      string
	RetryAfter        time.Duration
	RemainingAttempts uint
}

// SecondFactorInput completes a pending two-factor login. Exactly one of
// TOTPCode and BackupCode should be set.
type SecondFactorInput struct {
	PendingToken string
	TOTPCode     string
	BackupCode   string
	IP           string
	UserAgent    string
}

// AuthService orchestrates login, second-factor completion, refresh
// rotation, logout, and access verification.
type AuthService struct {
	cfg          *config.AppConfig
	principals   port.PrincipalRepository
	audit        port.AuditRepository
	revocations  port.RevocationStore
	epochs       port.EpochCache
	events       port.EventPublisher
	codec        *security.TokenCodec
	hasher       *security.PasswordHasher
	lockout      *LockoutGuard
	limiter      *AdmissionLimiter
	secondFactor *SecondFactorVerifier
	now          func() time.Time
}

// NewAuthService constructs an AuthService instance. The event publisher is
// optional; everything else is required.
func NewAuthService(
	cfg *config.AppConfig,
	principals port.PrincipalRepository,
	audit port.AuditRepository,
	revocations port.RevocationStore,
	epochs port.EpochCache,
	events port.EventPublisher,
	codec *security.TokenCodec,
	hasher *security.PasswordHasher,
	lockout *LockoutGuard,
	limiter *AdmissionLimiter,
	secondFactor *SecondFactorVerifier,
) (*AuthService, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if principals == nil || audit == nil || revocations == nil || epochs == nil {
		return nil, fmt.Errorf("principal, audit, revocation, and epoch stores are required")
	}
	if codec == nil || hasher == nil {
		return nil, fmt.Errorf("token codec and password hasher are required")
	}
	if lockout == nil || limiter == nil || secondFactor == nil {
		return nil, fmt.Errorf("lockout guard, admission limiter, and second factor verifier are required")
	}

	return &AuthService{
		cfg:          cfg,
		principals:   principals,
		audit:        audit,
		revocations:  revocations,
		epochs:       epochs,
		events:       events,
		codec:        codec,
		hasher:       hasher,
		lockout:      lockout,
		limiter:      limiter,
		secondFactor: secondFactor,
		now:          func() time.Time { return time.Now().UTC() },
	}, nil
}

// WithClock overrides the time source. Intended for tests.
func (s *AuthService) WithClock(clock func() time.Time) *AuthService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// Login validates credentials and either issues tokens, demands a second
// factor, or reports the failure branch.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	identifier := strings.TrimSpace(input.Identifier)
	if identifier == "" {
		return nil, fmt.Errorf("identifier is required")
	}
	if input.Password == "" {
		return nil, fmt.Errorf("password is required")
	}

	if err := s.limiter.Admit(ctx, identifier, ScopeLogin); err != nil {
		return nil, err
	}

	principal, err := s.principals.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Unknown identifier looks identical to a wrong password.
			if auditErr := s.recordAttempt(ctx, nil, identifier, false, "unknown_identifier", input.IP, input.UserAgent); auditErr != nil {
				return nil, auditErr
			}
			return &LoginResult{Status: LoginInvalid, RemainingAttempts: s.lockout.Threshold()}, nil
		}
		return nil, fmt.Errorf("lookup principal: %w", err)
	}

	// Lockout is checked before the password so response timing cannot
	// distinguish a locked account from a wrong password.
	locked, retryAfter, err := s.lockout.Check(ctx, principal)
	if err != nil {
		return nil, err
	}
	if locked {
		if auditErr := s.recordAttempt(ctx, &principal.ID, identifier, false, "account_locked", input.IP, input.UserAgent); auditErr != nil {
			return nil, auditErr
		}
		return &LoginResult{Status: LoginLocked, RetryAfter: retryAfter}, nil
	}

	ok, err := s.hasher.Verify(input.Password, principal.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		// The charge and its audit row are applied as one unit; a failure
		// leaves neither behind.
		attempt := s.newAttempt(&principal.ID, identifier, false, "wrong_password", input.IP, input.UserAgent)
		outcome, err := s.lockout.RecordFailure(ctx, principal.ID, attempt)
		if err != nil {
			return nil, err
		}
		s.publishAttempt(ctx, attempt)
		if outcome.Locked {
			lockedFor := s.cfg.Lockout.LockDuration
			if outcome.LockedUntil != nil {
				lockedFor = outcome.LockedUntil.Sub(s.now())
			}
			return &LoginResult{Status: LoginLocked, RetryAfter: lockedFor}, nil
		}
		return &LoginResult{Status: LoginInvalid, RemainingAttempts: s.lockout.RemainingAttempts(outcome)}, nil
	}

	if err := s.lockout.Reset(ctx, principal.ID); err != nil {
		return nil, err
	}

	if principal.TwoFactorEnabled {
		pending, _, err := s.issueToken(principal.ID, domain.TokenKindPending2FA, principal.TokenEpoch, s.pendingSecondFactorTTL())
		if err != nil {
			return nil, err
		}
		if auditErr := s.recordAttempt(ctx, &principal.ID, identifier, false, "awaiting_second_factor", input.IP, input.UserAgent); auditErr != nil {
			return nil, auditErr
		}
		return &LoginResult{Status: LoginRequiresSecondFactor, PendingToken: pending}, nil
	}

	pair, err := s.issueTokenPair(principal.ID, principal.TokenEpoch)
	if err != nil {
		return nil, err
	}

	if err := s.principals.TouchLastLogin(ctx, principal.ID, s.now()); err != nil {
		return nil, fmt.Errorf("touch last login: %w", err)
	}
	if auditErr := s.recordAttempt(ctx, &principal.ID, identifier, true, "password", input.IP, input.UserAgent); auditErr != nil {
		return nil, auditErr
	}

	return &LoginResult{Status: LoginSuccess, Tokens: pair}, nil
}

// CompleteSecondFactor exchanges a pending token plus a TOTP or backup code
// for a full token pair. The pending token is revoked on success so it
// cannot be replayed for a second pair.
func (s *AuthService) CompleteSecondFactor(ctx context.Context, input SecondFactorInput) (*domain.TokenPair, error) {
	claims, err := s.verifyToken(ctx, input.PendingToken, domain.TokenKindPending2FA)
	if err != nil {
		return nil, err
	}

	if err := s.limiter.Admit(ctx, claims.Subject, ScopeSecondFactor); err != nil {
		return nil, err
	}

	principal, err := s.principals.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidSecondFactor
		}
		return nil, fmt.Errorf("lookup principal: %w", err)
	}

	switch {
	case strings.TrimSpace(input.TOTPCode) != "":
		err = s.secondFactor.VerifyTOTP(principal, input.TOTPCode)
	case strings.TrimSpace(input.BackupCode) != "":
		err = s.secondFactor.VerifyAndConsumeBackupCode(ctx, principal.ID, input.BackupCode)
	default:
		err = ErrInvalidSecondFactor
	}
	if err != nil {
		if errors.Is(err, ErrInvalidSecondFactor) {
			// 2FA failures are audited but never charged to the lockout
			// counter; brute force here is bounded by the 2fa scope limit.
			if auditErr := s.recordAttempt(ctx, &principal.ID, principal.Identifier, false, "invalid_second_factor", input.IP, input.UserAgent); auditErr != nil {
				return nil, auditErr
			}
		}
		return nil, err
	}

	if err := s.revokeClaims(ctx, claims, "second_factor_completed"); err != nil {
		return nil, err
	}

	pair, err := s.issueTokenPair(principal.ID, principal.TokenEpoch)
	if err != nil {
		return nil, err
	}

	if err := s.principals.TouchLastLogin(ctx, principal.ID, s.now()); err != nil {
		return nil, fmt.Errorf("touch last login: %w", err)
	}
	if auditErr := s.recordAttempt(ctx, &principal.ID, principal.Identifier, true, "second_factor", input.IP, input.UserAgent); auditErr != nil {
		return nil, auditErr
	}

	return pair, nil
}

// Refresh rotates a refresh token: the presented token is revoked in the
// same flow that issues its replacement, so a stolen refresh token dies the
// moment the legitimate client rotates.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	claims, err := s.verifyToken(ctx, refreshToken, domain.TokenKindRefresh)
	if err != nil {
		return nil, err
	}

	epoch, err := s.currentEpoch(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}

	if err := s.revokeClaims(ctx, claims, "rotation"); err != nil {
		return nil, err
	}

	return s.issueTokenPair(claims.Subject, epoch)
}

// Logout revokes the presented access token, and the paired refresh token
// when supplied.
func (s *AuthService) Logout(ctx context.Context, accessToken, refreshToken string) error {
	claims, err := s.verifyToken(ctx, accessToken, domain.TokenKindAccess)
	if err != nil {
		return err
	}

	if err := s.revokeClaims(ctx, claims, "user_logout"); err != nil {
		return err
	}

	if strings.TrimSpace(refreshToken) == "" {
		return nil
	}

	refreshClaims, err := s.codec.Verify(refreshToken)
	if err != nil {
		// The access token is already revoked; a stale paired refresh
		// token is not worth failing the logout over.
		return nil
	}
	if err := s.codec.CheckKind(refreshClaims, domain.TokenKindRefresh); err != nil {
		return nil
	}
	if refreshClaims.Subject != claims.Subject {
		return nil
	}

	return s.revokeClaims(ctx, refreshClaims, "user_logout")
}

// LogoutAll bumps the principal's token epoch. Every outstanding token
// carrying the old epoch fails verification from here on, without touching
// the revocation set.
func (s *AuthService) LogoutAll(ctx context.Context, principalID string) (uint64, error) {
	if principalID == "" {
		return 0, fmt.Errorf("principal id is required")
	}

	epoch, err := s.principals.BumpTokenEpoch(ctx, principalID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, ErrInvalidCredentials
		}
		return 0, fmt.Errorf("bump token epoch: %w", err)
	}

	// Drop the cached epoch so the next verification reads the new value.
	if err := s.epochs.DeleteEpoch(ctx, principalID); err != nil {
		return 0, fmt.Errorf("invalidate epoch cache: %w", err)
	}

	s.publishEpochBumped(ctx, principalID, epoch)

	return epoch, nil
}

// VerifyAccess validates an access token end to end: signature and time
// bounds, kind, revocation, and epoch.
func (s *AuthService) VerifyAccess(ctx context.Context, accessToken string) (*domain.TokenClaims, error) {
	return s.verifyToken(ctx, accessToken, domain.TokenKindAccess)
}

func (s *AuthService) verifyToken(ctx context.Context, token string, kind domain.TokenKind) (*domain.TokenClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, security.ErrTokenMalformed
	}

	claims, err := s.codec.Verify(token)
	if err != nil {
		return nil, err
	}

	if err := s.codec.CheckKind(claims, kind); err != nil {
		return nil, err
	}

	// Revocation always fails closed: a token that cannot be confirmed
	// unrevoked is rejected.
	revoked, err := s.revocations.IsRevoked(ctx, claims.TokenID)
	if err != nil {
		return nil, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return nil, ErrTokenRevoked
	}

	epoch, err := s.currentEpoch(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	if claims.Epoch != epoch {
		return nil, ErrEpochMismatch
	}

	return claims, nil
}

func (s *AuthService) currentEpoch(ctx context.Context, principalID string) (uint64, error) {
	epoch, err := s.epochs.GetEpoch(ctx, principalID)
	if err == nil {
		return epoch, nil
	}

	// The cache is only an accelerator; on miss or cache outage the
	// principal row is the source of truth.
	epoch, err = s.principals.GetTokenEpoch(ctx, principalID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, ErrEpochMismatch
		}
		return 0, fmt.Errorf("read token epoch: %w", err)
	}

	ttl := s.cfg.Redis.TokenEpochTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if cacheErr := s.epochs.SetEpoch(ctx, principalID, epoch, ttl); cacheErr != nil {
		// Best effort; the next read falls back to the row again.
		_ = cacheErr
	}

	return epoch, nil
}

func (s *AuthService) issueTokenPair(principalID string, epoch uint64) (*domain.TokenPair, error) {
	accessTTL := s.cfg.JWT.AccessTokenTTL
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	refreshTTL := s.cfg.JWT.RefreshTokenTTL
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}

	access, _, err := s.issueToken(principalID, domain.TokenKindAccess, epoch, accessTTL)
	if err != nil {
		return nil, err
	}

	refresh, _, err := s.issueToken(principalID, domain.TokenKindRefresh, epoch, refreshTTL)
	if err != nil {
		return nil, err
	}

	return &domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int(accessTTL.Seconds()),
	}, nil
}

func (s *AuthService) issueToken(subject string, kind domain.TokenKind, epoch uint64, ttl time.Duration) (string, domain.TokenClaims, error) {
	token, claims, err := s.codec.Issue(subject, kind, epoch, ttl)
	if err != nil {
		return "", domain.TokenClaims{}, fmt.Errorf("issue %s token: %w", kind, err)
	}
	return token, claims, nil
}

func (s *AuthService) revokeClaims(ctx context.Context, claims *domain.TokenClaims, reason string) error {
	if err := s.revocations.Revoke(ctx, claims.TokenID, reason, claims.ExpiresAt); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}

	if s.events != nil {
		_ = s.events.PublishTokenRevoked(ctx, domain.TokenRevokedEvent{
			EventID:     uuid.NewString(),
			TokenID:     claims.TokenID,
			PrincipalID: claims.Subject,
			Kind:        claims.Kind,
			Reason:      reason,
			RevokedAt:   s.now(),
			ExpiresAt:   claims.ExpiresAt,
		})
	}

	return nil
}

func (s *AuthService) pendingSecondFactorTTL() time.Duration {
	ttl := s.cfg.JWT.PendingSecondFactorTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return ttl
}

func (s *AuthService) newAttempt(principalID *string, identifier string, succeeded bool, reason, ip, userAgent string) domain.LoginAttempt {
	attempt := domain.LoginAttempt{
		ID:          uuid.NewString(),
		PrincipalID: principalID,
		Identifier:  identifier,
		Succeeded:   succeeded,
		Reason:      reason,
		CreatedAt:   s.now(),
	}
	if ip != "" {
		attempt.IP = &ip
	}
	if userAgent != "" {
		attempt.UserAgent = &userAgent
	}
	return attempt
}

func (s *AuthService) publishAttempt(ctx context.Context, attempt domain.LoginAttempt) {
	if s.events == nil {
		return
	}

	event := domain.LoginAttemptEvent{
		EventID:    attempt.ID,
		Identifier: attempt.Identifier,
		Succeeded:  attempt.Succeeded,
		Reason:     attempt.Reason,
		At:         attempt.CreatedAt,
	}
	if attempt.PrincipalID != nil {
		event.PrincipalID = *attempt.PrincipalID
	}
	if attempt.IP != nil {
		event.IP = *attempt.IP
	}
	if attempt.UserAgent != nil {
		event.UserAgent = *attempt.UserAgent
	}
	_ = s.events.PublishLoginAttempt(ctx, event)
}

func (s *AuthService) recordAttempt(ctx context.Context, principalID *string, identifier string, succeeded bool, reason, ip, userAgent string) error {
	attempt := s.newAttempt(principalID, identifier, succeeded, reason, ip, userAgent)

	if err := s.audit.RecordAttempt(ctx, attempt); err != nil {
		return fmt.Errorf("record login attempt: %w", err)
	}

	s.publishAttempt(ctx, attempt)
	return nil
}

func (s *AuthService) publishEpochBumped(ctx context.Context, principalID string, epoch uint64) {
	if s.events == nil {
		return
	}
	_ = s.events.PublishEpochBumped(ctx, domain.EpochBumpedEvent{
		EventID:     uuid.NewString(),
		PrincipalID: principalID,
		Epoch:       epoch,
		Reason:      "logout_all",
		BumpedAt:    s.now(),
	})
}
