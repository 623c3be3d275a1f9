package usecase

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"

	"github.com/arklim/authcore/internal/core/domain"
	"github.com/arklim/authcore/internal/core/port"
	"github.com/arklim/authcore/internal/infra/security"
)

// SecondFactorVerifier checks TOTP codes and single-use backup codes.
type SecondFactorVerifier struct {
	codes port.BackupCodeRepository
	totp  *security.TOTPVerifier
	now   func() time.Time
}

// NewSecondFactorVerifier constructs a verifier.
func NewSecondFactorVerifier(codes port.BackupCodeRepository, totp *security.TOTPVerifier) (*SecondFactorVerifier, error) {
	if codes == nil {
		return nil, fmt.Errorf("backup code repository is required")
	}
	if totp == nil {
		return nil, fmt.Errorf("totp verifier is required")
	}
	return &SecondFactorVerifier{
		codes: codes,
		totp:  totp,
		now:   func() time.Time { return time.Now().UTC() },
	}, nil
}

// WithClock overrides the time source. Intended for tests.
func (v *SecondFactorVerifier) WithClock(clock func() time.Time) *SecondFactorVerifier {
	if clock != nil {
		v.now = clock
	}
	return v
}

// VerifyTOTP checks a time-based code against the principal's shared secret.
func (v *SecondFactorVerifier) VerifyTOTP(principal *domain.Principal, code string) error {
	if principal == nil || !principal.TwoFactorEnabled || principal.TwoFactorSecret == nil {
		return ErrInvalidSecondFactor
	}

	ok, err := v.totp.Verify(*principal.TwoFactorSecret, strings.TrimSpace(code))
	if err != nil {
		return fmt.Errorf("verify totp: %w", err)
	}
	if !ok {
		return ErrInvalidSecondFactor
	}

	return nil
}

// VerifyAndConsumeBackupCode matches the supplied code against the unused
// stored hashes and consumes the match. Consumption is conditional on the
// code still being unused, so a racing second use reports failure instead of
// succeeding twice.
func (v *SecondFactorVerifier) VerifyAndConsumeBackupCode(ctx context.Context, principalID, code string) error {
	normalized := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(code), "-", ""))
	if principalID == "" || normalized == "" {
		return ErrInvalidSecondFactor
	}

	stored, err := v.codes.ListUnused(ctx, principalID)
	if err != nil {
		return fmt.Errorf("list backup codes: %w", err)
	}

	hash := security.HashToken(normalized)
	for _, candidate := range stored {
		if subtle.ConstantTimeCompare([]byte(hash), []byte(candidate.CodeHash)) != 1 {
			continue
		}

		consumed, err := v.codes.Consume(ctx, candidate.ID, v.now())
		if err != nil {
			return fmt.Errorf("consume backup code: %w", err)
		}
		if !consumed {
			// Lost the race against a concurrent use of the same code.
			return ErrInvalidSecondFactor
		}
		return nil
	}

	return ErrInvalidSecondFactor
}

// ProvisionBackupCodes replaces the principal's recovery codes with a fresh
// batch and returns the plaintext codes. The plaintext is shown exactly once;
// only hashes reach storage.
func (v *SecondFactorVerifier) ProvisionBackupCodes(ctx context.Context, principalID string, count int) ([]string, error) {
	if principalID == "" {
		return nil, fmt.Errorf("principal id is required")
	}
	if count <= 0 {
		return nil, fmt.Errorf("backup code count must be positive")
	}

	plaintext, err := security.GenerateBackupCodes(count)
	if err != nil {
		return nil, fmt.Errorf("generate backup codes: %w", err)
	}

	now := v.now()
	codes := make([]domain.BackupCode, 0, len(plaintext))
	for _, code := range plaintext {
		normalized := strings.ToLower(strings.ReplaceAll(code, "-", ""))
		codes = append(codes, domain.BackupCode{
			ID:          uuid.NewString(),
			PrincipalID: principalID,
			CodeHash:    security.HashToken(normalized),
			CreatedAt:   now,
		})
	}

	if err := v.codes.Store(ctx, principalID, codes); err != nil {
		return nil, fmt.Errorf("store backup codes: %w", err)
	}

	return plaintext, nil
}
