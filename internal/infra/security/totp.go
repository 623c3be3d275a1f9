package security

import (
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	defaultTOTPStep      = 30 * time.Second
	defaultTOTPTolerance = 1
)

// TOTPVerifier validates time-based one-time codes against a shared secret.
// Tolerance absorbs clock skew between client and server; keep it at one
// step so the replay window stays bounded.
type TOTPVerifier struct {
	step      time.Duration
	tolerance uint
	now       func() time.Time
}

// NewTOTPVerifier constructs a verifier with a 30s step and ±1 step skew.
func NewTOTPVerifier() *TOTPVerifier {
	return &TOTPVerifier{
		step:      defaultTOTPStep,
		tolerance: defaultTOTPTolerance,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithStep overrides the time step. Values <= 0 are ignored.
func (v *TOTPVerifier) WithStep(step time.Duration) *TOTPVerifier {
	if step > 0 {
		v.step = step
	}
	return v
}

// WithClock overrides the internal clock for deterministic tests.
func (v *TOTPVerifier) WithClock(clock func() time.Time) *TOTPVerifier {
	if clock != nil {
		v.now = clock
	}
	return v
}

// Verify reports whether the code matches the secret at the current time
// step or within the configured tolerance.
func (v *TOTPVerifier) Verify(secret, code string) (bool, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return false, fmt.Errorf("totp: secret is required")
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return false, nil
	}

	ok, err := totp.ValidateCustom(code, secret, v.now(), totp.ValidateOpts{
		Period:    uint(v.step / time.Second),
		Skew:      v.tolerance,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return false, fmt.Errorf("totp: validate: %w", err)
	}

	return ok, nil
}

// GenerateTOTPSecret provisions a fresh base32 secret for the account.
func GenerateTOTPSecret(issuer, account string) (string, error) {
	issuer = strings.TrimSpace(issuer)
	if issuer == "" {
		return "", fmt.Errorf("totp: issuer is required")
	}
	account = strings.TrimSpace(account)
	if account == "" {
		return "", fmt.Errorf("totp: account is required")
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: account,
		Period:      uint(defaultTOTPStep / time.Second),
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", fmt.Errorf("totp: generate secret: %w", err)
	}

	return key.Secret(), nil
}
