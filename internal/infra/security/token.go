package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

const backupCodeBytes = 5

// GenerateSecureToken returns a base64 URL-safe random string using the
// specified number of random bytes.
func GenerateSecureToken(byteLength int) (string, error) {
	if byteLength <= 0 {
		return "", fmt.Errorf("length must be positive")
	}

	buf := make([]byte, byteLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashToken calculates a SHA-256 hash of the provided value. Used for
// at-rest storage of API keys and backup codes, where Argon2 cost is not
// needed because the inputs are high-entropy random strings.
func HashToken(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

// GenerateBackupCodes mints count recovery codes in xxxxx-xxxxx form.
// Callers store only HashToken of each code.
func GenerateBackupCodes(count int) ([]string, error) {
	if count <= 0 {
		return nil, fmt.Errorf("count must be positive")
	}

	codes := make([]string, 0, count)
	for i := 0; i < count; i++ {
		buf := make([]byte, backupCodeBytes*2)
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("generate backup code: %w", err)
		}
		encoded := strings.ToLower(hex.EncodeToString(buf))
		codes = append(codes, encoded[:10]+"-"+encoded[10:])
	}

	return codes, nil
}
