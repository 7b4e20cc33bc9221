// Package token issues and validates the signed bearer tokens that bind a
// customer email to its authorization scopes.
package token

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TTL is the fixed token lifetime.
const TTL = time.Hour

// Claims carries the registered claims plus the role scopes.
type Claims struct {
	Scopes []string `json:"scopes"`
	jwt.RegisteredClaims
}

// Service signs and verifies tokens with a single static symmetric key held
// for the process lifetime. No revocation, refresh, or key rotation.
type Service struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// New constructs a Service. The clock defaults to time.Now.
func New(secret, issuer string) (*Service, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("jwt secret is required")
	}
	return &Service{
		secret: []byte(secret),
		issuer: issuer,
		now:    time.Now,
	}, nil
}

// WithClock overrides the clock. Intended for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Issue builds a signed token for the subject with the given scopes,
// expiring one hour from issuance.
func (s *Service) Issue(subject string, scopes []string) (string, error) {
	now := s.now()
	claims := Claims{
		Scopes: scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Validate reports whether the token's signature verifies, its subject
// equals expectedSubject, and it has not expired. Any parse or signature
// failure yields false rather than an error.
func (s *Service) Validate(tokenString, expectedSubject string) bool {
	claims, err := s.parse(tokenString)
	if err != nil {
		return false
	}
	return claims.Subject == expectedSubject
}

// Subject extracts the subject from a token. The token is expected to have
// been validated already by the request filter.
func (s *Service) Subject(tokenString string) (string, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", errors.New("missing subject")
	}
	return claims.Subject, nil
}

// Scopes extracts the role scopes from a token.
func (s *Service) Scopes(tokenString string) ([]string, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return nil, err
	}
	return claims.Scopes, nil
}

func (s *Service) parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("invalid signing method")
			}
			return s.secret, nil
		},
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
