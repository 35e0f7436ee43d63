// Package auth issues and verifies the bearer tokens guarding the API.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrUnauthenticated is returned when no usable bearer credential is
	// present on a request.
	ErrUnauthenticated = errors.New("missing or invalid token")

	// ErrInvalidToken is returned when a token's signature or shape does not
	// verify against the service key.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired is returned when a token's expiry has passed, regardless
	// of signature validity.
	ErrTokenExpired = errors.New("token expired")

	// ErrInvalidCredentials is returned by Credentials.Validate on a
	// username/password mismatch.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Issuer creates and verifies HS256-signed tokens carrying sub/iat/exp claims.
type Issuer struct {
	secret []byte
	ttl    time.Duration

	// now is overridable for expiry tests.
	now func() time.Time
}

// NewIssuer creates an Issuer with the given signing secret and token TTL.
func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue signs a token for the given subject, valid from now until now+TTL.
func (i *Issuer) Issue(subject string) (string, error) {
	now := i.now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature and expiry and returns the token's subject.
// Validity is re-checked on every call; nothing is cached across requests.
func (i *Issuer) Verify(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// Credentials holds the configured API login pair. Real user management is an
// external collaborator; the gateway only validates against this single pair.
type Credentials struct {
	Username string
	Password string
}

// Validate checks a login attempt.
func (c Credentials) Validate(username, password string) error {
	if username != c.Username || password != c.Password {
		return ErrInvalidCredentials
	}
	return nil
}
