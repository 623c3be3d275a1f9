package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/pquerna/otp/totp"

	"github.com/arklim/authcore/internal/core/domain"
	"github.com/arklim/authcore/internal/infra/security"
)

func newTestSecondFactor(t *testing.T, clock *testClock) (*SecondFactorVerifier, *stubBackupCodeRepo) {
	t.Helper()

	codes := newStubBackupCodeRepo()
	totpVerifier := security.NewTOTPVerifier().WithClock(clock.Now)

	verifier, err := NewSecondFactorVerifier(codes, totpVerifier)
	if err != nil {
		t.Fatalf("NewSecondFactorVerifier: %v", err)
	}
	verifier.WithClock(clock.Now)

	return verifier, codes
}

func TestSecondFactorVerifier_TOTP(t *testing.T) {
	clock := newTestClock()
	verifier, _ := newTestSecondFactor(t, clock)

	secret, err := security.GenerateTOTPSecret("authcore", "alice@example.com")
	if err != nil {
		t.Fatalf("GenerateTOTPSecret: %v", err)
	}

	code, err := totp.GenerateCode(secret, clock.Now())
	if err != nil {
		t.Fatalf("GenerateCode: %v", err)
	}

	principal := &domain.Principal{ID: "p1", TwoFactorEnabled: true, TwoFactorSecret: &secret}

	if err := verifier.VerifyTOTP(principal, code); err != nil {
		t.Fatalf("expected current code to verify, got %v", err)
	}

	if err := verifier.VerifyTOTP(principal, "000000"); !errors.Is(err, ErrInvalidSecondFactor) {
		t.Fatalf("expected ErrInvalidSecondFactor for a wrong code, got %v", err)
	}
}

func TestSecondFactorVerifier_TOTPDisabled(t *testing.T) {
	clock := newTestClock()
	verifier, _ := newTestSecondFactor(t, clock)

	principal := &domain.Principal{ID: "p1", TwoFactorEnabled: false}
	if err := verifier.VerifyTOTP(principal, "123456"); !errors.Is(err, ErrInvalidSecondFactor) {
		t.Fatalf("expected ErrInvalidSecondFactor without an enrolled secret, got %v", err)
	}
}

func TestSecondFactorVerifier_BackupCodeSingleUse(t *testing.T) {
	clock := newTestClock()
	verifier, _ := newTestSecondFactor(t, clock)

	ctx := context.Background()
	plaintext, err := verifier.ProvisionBackupCodes(ctx, "p1", 4)
	if err != nil {
		t.Fatalf("ProvisionBackupCodes: %v", err)
	}
	if len(plaintext) != 4 {
		t.Fatalf("expected 4 codes, got %d", len(plaintext))
	}

	if err := verifier.VerifyAndConsumeBackupCode(ctx, "p1", plaintext[0]); err != nil {
		t.Fatalf("expected first use to succeed, got %v", err)
	}

	if err := verifier.VerifyAndConsumeBackupCode(ctx, "p1", plaintext[0]); !errors.Is(err, ErrInvalidSecondFactor) {
		t.Fatalf("expected second use of the same code to fail, got %v", err)
	}

	// The remaining codes stay valid.
	if err := verifier.VerifyAndConsumeBackupCode(ctx, "p1", plaintext[1]); err != nil {
		t.Fatalf("expected a different code to succeed, got %v", err)
	}
}

func TestSecondFactorVerifier_BackupCodeNormalization(t *testing.T) {
	clock := newTestClock()
	verifier, _ := newTestSecondFactor(t, clock)

	ctx := context.Background()
	plaintext, err := verifier.ProvisionBackupCodes(ctx, "p1", 1)
	if err != nil {
		t.Fatalf("ProvisionBackupCodes: %v", err)
	}

	// Hyphens and surrounding whitespace are accepted input variants.
	noisy := "  " + plaintext[0] + " "
	if err := verifier.VerifyAndConsumeBackupCode(ctx, "p1", noisy); err != nil {
		t.Fatalf("expected normalized code to verify, got %v", err)
	}
}

func TestSecondFactorVerifier_ProvisionReplacesBatch(t *testing.T) {
	clock := newTestClock()
	verifier, _ := newTestSecondFactor(t, clock)

	ctx := context.Background()
	first, err := verifier.ProvisionBackupCodes(ctx, "p1", 2)
	if err != nil {
		t.Fatalf("ProvisionBackupCodes: %v", err)
	}
	if _, err := verifier.ProvisionBackupCodes(ctx, "p1", 2); err != nil {
		t.Fatalf("ProvisionBackupCodes: %v", err)
	}

	if err := verifier.VerifyAndConsumeBackupCode(ctx, "p1", first[0]); !errors.Is(err, ErrInvalidSecondFactor) {
		t.Fatalf("expected codes from the replaced batch to stop working, got %v", err)
	}
}

func TestSecondFactorVerifier_UnknownCode(t *testing.T) {
	clock := newTestClock()
	verifier, _ := newTestSecondFactor(t, clock)

	err := verifier.VerifyAndConsumeBackupCode(context.Background(), "p1", "nope")
	if !errors.Is(err, ErrInvalidSecondFactor) {
		t.Fatalf("expected ErrInvalidSecondFactor, got %v", err)
	}
}
