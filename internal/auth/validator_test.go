package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"

	"github.com/fundedlabs/backend-checkout/internal/common"
)

var (
	authSecret = []byte("admin-signing-secret")
	authNow    = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
)

func newValidator() TokenValidator {
	return TokenValidator{
		Secret:   authSecret,
		Issuer:   "backend-checkout",
		Audience: "admin",
		Now:      func() time.Time { return authNow },
	}
}

func signToken(t *testing.T, secret []byte, mutate func(b *jwt.Builder)) string {
	t.Helper()
	b := jwt.NewBuilder().
		Subject("admin-1").
		Issuer("backend-checkout").
		Audience([]string{"admin"}).
		IssuedAt(authNow.Add(-time.Minute)).
		Expiration(authNow.Add(time.Hour))
	if mutate != nil {
		mutate(b)
	}
	token, err := b.Build()
	require.NoError(t, err)
	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256, secret))
	require.NoError(t, err)
	return string(signed)
}

func requireUnauthorized(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	var appErr *common.AppError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, common.CodeUnauthorized, appErr.Code)
}

func TestParseTokenValid(t *testing.T) {
	subject, err := newValidator().ParseToken(signToken(t, authSecret, nil))
	require.NoError(t, err)
	require.Equal(t, "admin-1", subject)
}

func TestParseTokenEmpty(t *testing.T) {
	_, err := newValidator().ParseToken("   ")
	requireUnauthorized(t, err)
}

func TestParseTokenGarbage(t *testing.T) {
	_, err := newValidator().ParseToken("not.a.jwt")
	requireUnauthorized(t, err)
}

func TestParseTokenWrongSecret(t *testing.T) {
	_, err := newValidator().ParseToken(signToken(t, []byte("different-secret"), nil))
	requireUnauthorized(t, err)
}

func TestParseTokenWrongAlgorithm(t *testing.T) {
	v := newValidator()
	v.Algorithm = jwa.HS512
	_, err := v.ParseToken(signToken(t, authSecret, nil))
	requireUnauthorized(t, err)
}

func TestParseTokenExpired(t *testing.T) {
	token := signToken(t, authSecret, func(b *jwt.Builder) {
		b.Expiration(authNow.Add(-time.Minute))
	})
	_, err := newValidator().ParseToken(token)
	requireUnauthorized(t, err)
}

func TestParseTokenExpiredWithinSkew(t *testing.T) {
	token := signToken(t, authSecret, func(b *jwt.Builder) {
		b.Expiration(authNow.Add(-time.Minute))
	})
	v := newValidator()
	v.ClockSkew = 5 * time.Minute
	subject, err := v.ParseToken(token)
	require.NoError(t, err)
	require.Equal(t, "admin-1", subject)
}

func TestParseTokenWrongAudience(t *testing.T) {
	token := signToken(t, authSecret, func(b *jwt.Builder) {
		b.Audience([]string{"storefront"})
	})
	_, err := newValidator().ParseToken(token)
	requireUnauthorized(t, err)
}

func TestParseTokenWrongIssuer(t *testing.T) {
	token := signToken(t, authSecret, func(b *jwt.Builder) {
		b.Issuer("someone-else")
	})
	_, err := newValidator().ParseToken(token)
	requireUnauthorized(t, err)
}
