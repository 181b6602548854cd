package oidc

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/gogotex/pdf-annotator/pkg/middleware"
)

var (
	ErrMalformedToken = errors.New("invalid token format")
	ErrNoSubject      = errors.New("token has no subject")
	ErrTokenExpired   = errors.New("token expired")
)

// claimsToken exposes claims parsed from a JWT payload.
type claimsToken struct {
	claims map[string]interface{}
}

func (t *claimsToken) Claims(v interface{}) error {
	b, err := json.Marshal(t.claims)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// InsecureVerifier accepts any JWT without checking its signature. Editing
// sessions are scoped by subject, so a token without "sub" is refused, and
// an "exp" in the past is honoured. Local and integration use only
// (ALLOW_INSECURE_TOKEN).
type InsecureVerifier struct {
	now func() time.Time
}

func NewInsecureVerifier() *InsecureVerifier { return &InsecureVerifier{now: time.Now} }

func (v *InsecureVerifier) Verify(ctx context.Context, raw string) (middleware.Token, error) {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return nil, ErrMalformedToken
	}
	data, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[1], "="))
	if err != nil {
		return nil, ErrMalformedToken
	}
	var claims map[string]interface{}
	if err := json.Unmarshal(data, &claims); err != nil {
		return nil, ErrMalformedToken
	}
	if sub, _ := claims["sub"].(string); sub == "" {
		return nil, ErrNoSubject
	}
	if exp, ok := claims["exp"].(float64); ok && v.now().After(time.Unix(int64(exp), 0)) {
		return nil, ErrTokenExpired
	}
	return &claimsToken{claims: claims}, nil
}
