// Package authn verifies bearer tokens and carries the verified claims in the
// request context.
package authn

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMissingToken is returned by FromRequest when no bearer token is sent.
var ErrMissingToken = errors.New("authn: missing bearer token")

// Verifier checks HMAC-signed JWTs.
type Verifier struct {
	secret []byte
	opts   []jwt.ParserOption
}

type Option func(*Verifier)

// WithIssuer requires the iss claim to equal issuer.
func WithIssuer(issuer string) Option {
	return func(v *Verifier) { v.opts = append(v.opts, jwt.WithIssuer(issuer)) }
}

// WithLeeway tolerates clock skew when checking exp and nbf.
func WithLeeway(d time.Duration) Option {
	return func(v *Verifier) { v.opts = append(v.opts, jwt.WithLeeway(d)) }
}

// WithExpirationRequired rejects tokens without an exp claim.
func WithExpirationRequired() Option {
	return func(v *Verifier) { v.opts = append(v.opts, jwt.WithExpirationRequired()) }
}

func NewVerifier(secret string, opts ...Option) *Verifier {
	v := &Verifier{
		secret: []byte(secret),
		opts:   []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"})},
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify parses token and returns its claims.
func (v *Verifier) Verify(token string) (jwt.MapClaims, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	}, v.opts...)
	if err != nil {
		return nil, fmt.Errorf("authn: invalid token: %w", err)
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return nil, errors.New("authn: claims in token are not map claims")
	}
	return claims, nil
}

// FromRequest verifies the Authorization: Bearer header of r.
func (v *Verifier) FromRequest(r *http.Request) (jwt.MapClaims, error) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return nil, ErrMissingToken
	}
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("authn: malformed Authorization header")
	}
	return v.Verify(strings.TrimSpace(token))
}

// Sign issues an HS256 token for claims. Used by tooling and tests.
func (v *Verifier) Sign(claims jwt.MapClaims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

type claimsKey struct{}

func WithClaims(ctx context.Context, claims jwt.MapClaims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// ClaimsFrom returns the verified claims stored by WithClaims.
func ClaimsFrom(ctx context.Context) (jwt.MapClaims, bool) {
	c, ok := ctx.Value(claimsKey{}).(jwt.MapClaims)
	return c, ok && c != nil
}
