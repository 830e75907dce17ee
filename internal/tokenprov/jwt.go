package tokenprov

import (
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// MaxJWTLifetime is the upper bound on the lifetime of a signed JWT. Requested
// lifetimes above it are clamped, not rejected.
const MaxJWTLifetime = time.Hour

// serviceAccountKey is the subset of a service-account JSON key file needed
// for JWT signing.
type serviceAccountKey struct {
	Type         string `json:"type"`
	ClientEmail  string `json:"client_email"`
	PrivateKey   string `json:"private_key"`
	PrivateKeyID string `json:"private_key_id"`
}

// JWTSigner mints RS256-signed JWTs from a service-account key. The signer
// itself is stateless after construction; callers cache signed tokens.
type JWTSigner struct {
	key      *rsa.PrivateKey
	issuer   string
	keyID    string
	lifetime time.Duration
}

// NewJWTSigner parses jsonKey (a service-account key file) into a signer.
// lifetime is clamped to MaxJWTLifetime; zero or negative values select the
// maximum.
func NewJWTSigner(jsonKey []byte, lifetime time.Duration) (*JWTSigner, error) {
	var sa serviceAccountKey
	if err := json.Unmarshal(jsonKey, &sa); err != nil {
		return nil, fmt.Errorf("tokenprov: invalid service account key: %w", err)
	}
	if sa.ClientEmail == "" {
		return nil, errors.New("tokenprov: service account key is missing client_email")
	}
	if sa.PrivateKey == "" {
		return nil, errors.New("tokenprov: service account key is missing private_key")
	}

	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(sa.PrivateKey))
	if err != nil {
		return nil, fmt.Errorf("tokenprov: failed to parse private key: %w", err)
	}

	if lifetime <= 0 || lifetime > MaxJWTLifetime {
		lifetime = MaxJWTLifetime
	}

	return &JWTSigner{
		key:      key,
		issuer:   sa.ClientEmail,
		keyID:    sa.PrivateKeyID,
		lifetime: lifetime,
	}, nil
}

// Lifetime returns the effective (clamped) token lifetime.
func (s *JWTSigner) Lifetime() time.Duration {
	return s.lifetime
}

// Sign mints a JWT for audience. iss and sub carry the service-account email;
// the kid header carries the key id when the key file provides one.
func (s *JWTSigner) Sign(audience string) (Token, error) {
	now := time.Now()
	expiry := now.Add(s.lifetime)

	claims := jwt.RegisteredClaims{
		Issuer:    s.issuer,
		Subject:   s.issuer,
		Audience:  jwt.ClaimStrings{audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiry),
		ID:        uuid.NewString(),
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if s.keyID != "" {
		tok.Header["kid"] = s.keyID
	}

	signed, err := tok.SignedString(s.key)
	if err != nil {
		return Token{}, fmt.Errorf("tokenprov: failed to sign JWT: %w", err)
	}

	return Token{AccessToken: signed, Expiry: expiry}, nil
}
