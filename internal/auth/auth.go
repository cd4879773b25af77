// Package auth verifies identity-provider bearer tokens and carries the
// resulting claims through the request context.
package auth

import (
	"context"
	"strings"
)

// Claims is the trust context derived from a verified ID token.
type Claims struct {
	UID           string `json:"uid"`
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified"`
	DisplayName   string `json:"name,omitempty"`
	PhoneNumber   string `json:"phone_number,omitempty"`
}

// Verifier checks an ID token and returns its claims.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Claims, error)
}

// VerifierFunc adapts a function to Verifier.
type VerifierFunc func(ctx context.Context, token string) (*Claims, error)

func (f VerifierFunc) Verify(ctx context.Context, token string) (*Claims, error) { return f(ctx, token) }

const bearerPrefix = "Bearer "

// ExtractBearer returns the token from an Authorization header value.
// It reports false for an empty header, a non-Bearer scheme or an empty token.
func ExtractBearer(header string) (string, bool) {
	token, found := strings.CutPrefix(header, bearerPrefix)
	if !found {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

type claimsKey struct{}

func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

func ClaimsFrom(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*Claims)
	return c, ok && c != nil
}

// UIDFrom returns the verified subject identifier, or "" outside an
// authenticated request.
func UIDFrom(ctx context.Context) string {
	if c, ok := ClaimsFrom(ctx); ok {
		return c.UID
	}
	return ""
}
