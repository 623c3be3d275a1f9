package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	uuid "github.com/google/uuid"

	"github.com/arklim/authcore/internal/core/domain"
)

var (
	// ErrTokenExpired indicates the token's expiry has passed or its
	// not-before instant has not yet arrived.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenMalformed indicates the token failed structural or signature validation.
	ErrTokenMalformed = errors.New("token malformed")
	// ErrWrongTokenKind indicates a token of one kind was presented where another was required.
	ErrWrongTokenKind = errors.New("wrong token kind")
)

// sessionClaims is the wire representation of domain.TokenClaims. The claim
// set is closed: unknown kinds and missing identifiers fail on decode.
type sessionClaims struct {
	Kind  string `json:"kind"`
	Epoch uint64 `json:"epoch"`
	jwt.RegisteredClaims
}

// TokenCodec signs session tokens and extracts claims. It validates only
// signature and time bounds; revocation and epoch comparison are layered by
// the caller so the codec stays pure and stateless.
type TokenCodec struct {
	keys   KeyProvider
	kid    string
	issuer string
	now    func() time.Time
}

// NewTokenCodec constructs a codec signing with the provider's active key.
func NewTokenCodec(keys KeyProvider, kid, issuer string) (*TokenCodec, error) {
	if keys == nil {
		return nil, fmt.Errorf("codec: key provider is required")
	}
	kid = strings.TrimSpace(kid)
	if kid == "" {
		return nil, fmt.Errorf("codec: key id is required")
	}
	issuer = strings.TrimSpace(issuer)
	if issuer == "" {
		return nil, fmt.Errorf("codec: issuer is required")
	}

	return &TokenCodec{
		keys:   keys,
		kid:    kid,
		issuer: issuer,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// WithClock overrides the internal clock for deterministic tests.
func (c *TokenCodec) WithClock(clock func() time.Time) *TokenCodec {
	if clock != nil {
		c.now = clock
	}
	return c
}

// Issue signs a fresh token for the subject. Each call mints a unique token
// id; the epoch is embedded so logout-all can invalidate the token later.
func (c *TokenCodec) Issue(subject string, kind domain.TokenKind, epoch uint64, ttl time.Duration) (string, domain.TokenClaims, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", domain.TokenClaims{}, fmt.Errorf("codec: subject is required")
	}
	if !kind.Valid() {
		return "", domain.TokenClaims{}, fmt.Errorf("codec: unknown token kind %q", kind)
	}
	if ttl <= 0 {
		return "", domain.TokenClaims{}, fmt.Errorf("codec: ttl must be positive")
	}

	now := c.now()
	claims := domain.TokenClaims{
		Subject:   subject,
		TokenID:   uuid.NewString(),
		Kind:      kind,
		Epoch:     epoch,
		IssuedAt:  now,
		NotBefore: now,
		ExpiresAt: now.Add(ttl),
	}

	wire := sessionClaims{
		Kind:  string(kind),
		Epoch: epoch,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
			NotBefore: jwt.NewNumericDate(claims.NotBefore),
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
			ID:        claims.TokenID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, wire)
	token.Header["kid"] = c.kid

	signingKey, err := c.keys.GetSigningKey()
	if err != nil {
		return "", domain.TokenClaims{}, fmt.Errorf("codec: get signing key: %w", err)
	}

	signed, err := token.SignedString(signingKey)
	if err != nil {
		return "", domain.TokenClaims{}, fmt.Errorf("codec: sign token: %w", err)
	}

	return signed, claims, nil
}

// Verify checks signature and time bounds and returns the decoded claim set.
// Fails with ErrTokenExpired or ErrTokenMalformed. Revocation and epoch state
// are deliberately not consulted here.
func (c *TokenCodec) Verify(token string) (*domain.TokenClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrTokenMalformed
	}

	wire := &sessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, wire, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}

		kid, ok := t.Header["kid"].(string)
		if !ok {
			return nil, fmt.Errorf("kid header not found")
		}

		return c.keys.GetVerificationKey(kid)
	}, jwt.WithIssuer(c.issuer), jwt.WithTimeFunc(c.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) || errors.Is(err, jwt.ErrTokenNotValidYet) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenMalformed
	}

	if parsed == nil || !parsed.Valid {
		return nil, ErrTokenMalformed
	}

	kind := domain.TokenKind(wire.Kind)
	if !kind.Valid() {
		return nil, ErrTokenMalformed
	}
	if strings.TrimSpace(wire.Subject) == "" || strings.TrimSpace(wire.ID) == "" {
		return nil, ErrTokenMalformed
	}
	if wire.IssuedAt == nil || wire.ExpiresAt == nil {
		return nil, ErrTokenMalformed
	}

	claims := &domain.TokenClaims{
		Subject:   wire.Subject,
		TokenID:   wire.ID,
		Kind:      kind,
		Epoch:     wire.Epoch,
		IssuedAt:  wire.IssuedAt.Time.UTC(),
		ExpiresAt: wire.ExpiresAt.Time.UTC(),
	}
	if wire.NotBefore != nil {
		claims.NotBefore = wire.NotBefore.Time.UTC()
	} else {
		claims.NotBefore = claims.IssuedAt
	}

	return claims, nil
}

// CheckKind fails with ErrWrongTokenKind unless the claims carry the expected
// kind. Prevents a refresh token being accepted where an access token is
// required and vice versa.
func (c *TokenCodec) CheckKind(claims *domain.TokenClaims, expected domain.TokenKind) error {
	if claims == nil {
		return ErrTokenMalformed
	}
	if claims.Kind != expected {
		return fmt.Errorf("%w: have %s, want %s", ErrWrongTokenKind, claims.Kind, expected)
	}
	return nil
}
