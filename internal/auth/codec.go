package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// MinSecretLength is the minimum HMAC key length in bytes.
const MinSecretLength = 32

// Claims are the access token claims: the standard registered set plus
// the roles held at issuance time.
type Claims struct {
	jwt.RegisteredClaims
	Roles []Role `json:"roles"`
}

// TokenCodec issues and verifies HS256 access tokens. It holds no mutable
// state and is safe for concurrent use.
type TokenCodec struct {
	secret []byte
	ttl    time.Duration
	parser *jwt.Parser
}

// NewTokenCodec returns a codec signing with secret and issuing tokens that
// live for ttl.
func NewTokenCodec(secret string, ttl time.Duration) (*TokenCodec, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("%w: signing secret must be at least %d bytes", ErrInvalidInput, MinSecretLength)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("%w: access token ttl must be positive", ErrInvalidInput)
	}

	return &TokenCodec{
		secret: []byte(secret),
		ttl:    ttl,
		// Expiry is checked against the caller's clock in Verify. Strict
		// decoding rejects non-zero padding bits in the last signature
		// character.
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
			jwt.WithStrictDecoding(),
		),
	}, nil
}

// TTL returns the lifetime of issued access tokens.
func (c *TokenCodec) TTL() time.Duration {
	return c.ttl
}

// Issue signs a token for subject carrying roles, valid from now until
// now+TTL.
func (c *TokenCodec) Issue(subject string, roles []Role, now time.Time) (string, *Claims, error) {
	if subject == "" {
		return "", nil, fmt.Errorf("%w: empty subject", ErrInvalidInput)
	}

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
			ID:        uuid.NewString(),
		},
		Roles: append([]Role(nil), roles...),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", nil, fmt.Errorf("signing access token: %w", err)
	}
	return signed, claims, nil
}

// Verify checks the signature of token and then its expiry against now.
//
// Errors:
//   - ErrTokenMalformed: not a decodable JWS, or required claims missing
//   - ErrTokenBadSignature: signature mismatch or disallowed algorithm
//   - ErrTokenExpired: now is after the exp claim
func (c *TokenCodec) Verify(token string, now time.Time) (*Claims, error) {
	claims := &Claims{}
	_, err := c.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil {
		return nil, c.classifyParseError(token, err)
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenMalformed)
	}
	if claims.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: missing expiry", ErrTokenMalformed)
	}
	if now.After(claims.ExpiresAt.Time) {
		return nil, ErrTokenExpired
	}

	return claims, nil
}

func (c *TokenCodec) classifyParseError(token string, err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %w", ErrTokenBadSignature, err)
	case errors.Is(err, jwt.ErrTokenMalformed) && c.headerAndClaimsDecode(token):
		// Only the signature segment failed to decode.
		return fmt.Errorf("%w: %w", ErrTokenBadSignature, err)
	default:
		return fmt.Errorf("%w: %w", ErrTokenMalformed, err)
	}
}

// headerAndClaimsDecode reports whether the first two segments of token
// decode into a header and claims.
func (c *TokenCodec) headerAndClaimsDecode(token string) bool {
	_, _, err := c.parser.ParseUnverified(token, &Claims{})
	return err == nil
}

// SubjectOf extracts the subject without verifying the signature. The
// result is untrusted and must only be used for diagnostics.
func SubjectOf(token string) (string, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", fmt.Errorf("%w: %w", ErrTokenMalformed, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrTokenMalformed)
	}
	return claims.Subject, nil
}

// Fingerprint returns a short, non-reversible identifier for a token so
// that log lines can be correlated without recording the token itself.
func Fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:6])
}
