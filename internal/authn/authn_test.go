package authn

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestVerify(t *testing.T) {
	v := NewVerifier("s3cret", WithIssuer("procgraph"))
	token, err := v.Sign(jwt.MapClaims{"sub": "u1", "iss": "procgraph", "exp": time.Now().Add(time.Hour).Unix()})
	require.NoError(t, err)

	claims, err := v.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "u1", claims["sub"])

	_, err = NewVerifier("other").Verify(token)
	require.Error(t, err)

	expired, err := v.Sign(jwt.MapClaims{"sub": "u1", "iss": "procgraph", "exp": time.Now().Add(-time.Hour).Unix()})
	require.NoError(t, err)
	_, err = v.Verify(expired)
	require.ErrorIs(t, err, jwt.ErrTokenExpired)

	wrongIssuer, err := v.Sign(jwt.MapClaims{"sub": "u1", "iss": "someone"})
	require.NoError(t, err)
	_, err = v.Verify(wrongIssuer)
	require.ErrorIs(t, err, jwt.ErrTokenInvalidIssuer)
}

func TestFromRequest(t *testing.T) {
	v := NewVerifier("s3cret")
	token, err := v.Sign(jwt.MapClaims{"sub": "u2"})
	require.NoError(t, err)

	r := httptest.NewRequest("POST", "/api/graphql", nil)
	_, err = v.FromRequest(r)
	require.ErrorIs(t, err, ErrMissingToken)

	r.Header.Set("Authorization", "Basic abc")
	_, err = v.FromRequest(r)
	require.ErrorContains(t, err, "malformed")

	r.Header.Set("Authorization", "Bearer "+token)
	claims, err := v.FromRequest(r)
	require.NoError(t, err)
	require.Equal(t, "u2", claims["sub"])
}

func TestContext(t *testing.T) {
	_, ok := ClaimsFrom(context.Background())
	require.False(t, ok)

	ctx := WithClaims(context.Background(), jwt.MapClaims{"sub": "x"})
	c, ok := ClaimsFrom(ctx)
	require.True(t, ok)
	require.Equal(t, "x", c["sub"])
}
