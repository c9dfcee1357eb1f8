package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
)

// SecretSize is the length in bytes of a generated nonce signing secret.
const SecretSize = 64

// DefaultNonceTTL is how long an issued nonce stays valid.
const DefaultNonceTTL = 3 * time.Second

var ErrInvalidNonce = errors.New("invalid nonce")

// NewRandomSecret returns a fresh signing secret. It is meant to be created
// once at process start; restarting the process invalidates every nonce.
func NewRandomSecret() ([]byte, error) {
	secret := make([]byte, SecretSize)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generate nonce secret: %w", err)
	}
	return secret, nil
}

type nonceClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// NonceSigner issues and verifies the short-lived login challenge tokens.
type NonceSigner struct {
	secret []byte
	ttl    time.Duration
	clock  clockwork.Clock
}

func NewNonceSigner(secret []byte, ttl time.Duration, clock clockwork.Clock) (*NonceSigner, error) {
	if len(secret) == 0 {
		return nil, errors.New("nonce secret is empty")
	}
	if ttl <= 0 {
		ttl = DefaultNonceTTL
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &NonceSigner{secret: secret, ttl: ttl, clock: clock}, nil
}

// Issue signs username into an HS256 token that expires after the TTL.
func (s *NonceSigner) Issue(username string) (string, error) {
	now := s.clock.Now()
	claims := nonceClaims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify checks signature, algorithm and expiry and returns the bound username.
func (s *NonceSigner) Verify(token string) (string, error) {
	var claims nonceClaims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.clock.Now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidNonce, err)
	}
	if claims.Username == "" {
		return "", ErrInvalidNonce
	}
	return claims.Username, nil
}
