// Package tokens issues and verifies the short-lived HS256 tokens the
// annotation API presents to the document service.
package tokens

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gogotex/pdf-annotator/pkg/middleware"
	"github.com/golang-jwt/jwt/v5"
)

var ErrNoSecret = errors.New("service token secret is empty")

// Service signs and checks service tokens with a shared secret.
type Service struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewService(secret, issuer string, ttl time.Duration) (*Service, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Service{secret: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}, nil
}

// Generate returns a token for subject, valid for the configured TTL.
func (s *Service) Generate(subject string) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Issuer:    s.issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// TokenSource adapts Generate to the document client's token hook.
func (s *Service) TokenSource(subject string) func() (string, error) {
	return func() (string, error) { return s.Generate(subject) }
}

type claimsToken struct {
	claims jwt.MapClaims
}

func (t *claimsToken) Claims(v interface{}) error {
	m, ok := v.(*map[string]interface{})
	if !ok {
		return fmt.Errorf("unsupported claims target %T", v)
	}
	*m = map[string]interface{}(t.claims)
	return nil
}

// Verify checks signature, algorithm, issuer and expiry. It satisfies
// middleware.Verifier so the document service can guard its routes with
// middleware.AuthMiddleware.
func (s *Service) Verify(_ context.Context, raw string) (middleware.Token, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	return &claimsToken{claims: claims}, nil
}
