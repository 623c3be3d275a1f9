package security

import (
	"strings"
	"testing"
)

func newTestHasher(t *testing.T) *PasswordHasher {
	t.Helper()

	// Minimal parameters keep the test fast while staying valid.
	hasher, err := NewPasswordHasher(Argon2Config{
		Memory:      8 * 1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("failed to create hasher: %v", err)
	}

	return hasher
}

func TestPasswordHasher_HashAndVerify(t *testing.T) {
	hasher := newTestHasher(t)

	encoded, err := hasher.Hash("correct horse battery staple")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}
	if !strings.HasPrefix(encoded, "argon2id$v=19$") {
		t.Fatalf("unexpected hash format: %s", encoded)
	}

	ok, err := hasher.Verify("correct horse battery staple", encoded)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if !ok {
		t.Fatalf("expected matching password to verify")
	}

	ok, err = hasher.Verify("wrong password", encoded)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if ok {
		t.Fatalf("expected mismatched password to fail")
	}
}

func TestPasswordHasher_UniqueSalts(t *testing.T) {
	hasher := newTestHasher(t)

	first, err := hasher.Hash("password")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}
	second, err := hasher.Hash("password")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}

	if first == second {
		t.Fatalf("expected distinct hashes for the same password")
	}
}

func TestPasswordHasher_EmptyInputs(t *testing.T) {
	hasher := newTestHasher(t)

	ok, err := hasher.Verify("", "anything")
	if err != nil || ok {
		t.Fatalf("expected empty password to fail cleanly, got ok=%v err=%v", ok, err)
	}

	ok, err = hasher.Verify("password", "")
	if err != nil || ok {
		t.Fatalf("expected empty hash to fail cleanly, got ok=%v err=%v", ok, err)
	}
}

func TestPasswordHasher_InvalidEncoding(t *testing.T) {
	hasher := newTestHasher(t)

	if _, err := hasher.Verify("password", "argon2id$v=19$broken"); err == nil {
		t.Fatalf("expected error for truncated hash")
	}
	if _, err := hasher.Verify("password", "bcrypt$nope$x$y$z"); err == nil {
		t.Fatalf("expected error for unknown variant")
	}
}

func TestNewPasswordHasher_RejectsWeakConfig(t *testing.T) {
	if _, err := NewPasswordHasher(Argon2Config{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}); err == nil {
		t.Fatalf("expected error for low memory")
	}
	if _, err := NewPasswordHasher(Argon2Config{Memory: 64 * 1024, Iterations: 0, Parallelism: 1, SaltLength: 16, KeyLength: 32}); err == nil {
		t.Fatalf("expected error for zero iterations")
	}
}
