// Package auth verifies bearer tokens issued by the external identity
// provider. Tokens are never minted here.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/gallery/service/internal/apperr"
)

// Claims are the verified contents of an identity token.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Session is the public view of an authenticated caller.
type Session struct {
	Subject   string    `json:"subject"   example:"user_2f1c9a"`
	Email     string    `json:"email"     example:"editor@example.com"`
	ExpiresAt time.Time `json:"expiresAt" example:"2026-10-16T18:00:00Z"`
}

// Options configures a Verifier. Issuer and Audience are checked only when
// set.
type Options struct {
	Secret   string
	Issuer   string
	Audience string
}

// Verifier validates HS256-signed bearer tokens.
type Verifier struct {
	key    []byte
	parser *jwt.Parser
}

// NewVerifier creates a Verifier from opts.
func NewVerifier(opts Options) (*Verifier, error) {
	if opts.Secret == "" {
		return nil, errors.New("auth: signing secret is required")
	}
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30 * time.Second),
	}
	if opts.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(opts.Issuer))
	}
	if opts.Audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(opts.Audience))
	}
	return &Verifier{key: []byte(opts.Secret), parser: jwt.NewParser(parserOpts...)}, nil
}

// Verify parses and validates raw, returning its claims.
func (v *Verifier) Verify(raw string) (*Claims, error) {
	if raw == "" {
		return nil, apperr.Auth("authorization token required")
	}
	claims := &Claims{}
	_, err := v.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return v.key, nil
	})
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, apperr.Auth("token has expired")
	default:
		return nil, apperr.Auth(fmt.Sprintf("invalid token: %v", err))
	}
	if claims.Subject == "" {
		return nil, apperr.Auth("token has no subject")
	}
	return claims, nil
}

// Sign issues a token for claims. It exists for tests and local tooling;
// production tokens come from the identity provider.
func (v *Verifier) Sign(claims Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.key)
}

type contextKey struct{}

// WithClaims stores c in ctx.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, contextKey{}, c)
}

// ClaimsFrom returns the claims stored by WithClaims.
func ClaimsFrom(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(contextKey{}).(*Claims)
	return c, ok
}

// SessionOf converts verified claims to a Session.
func SessionOf(c *Claims) Session {
	s := Session{Subject: c.Subject, Email: c.Email}
	if c.ExpiresAt != nil {
		s.ExpiresAt = c.ExpiresAt.Time.UTC()
	}
	return s
}
