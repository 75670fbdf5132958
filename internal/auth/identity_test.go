package auth

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sign(t *testing.T, secret string, c Claims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(secret))
	require.NoError(t, err)
	return tok
}

func TestResolve_ValidToken(t *testing.T) {
	tok := sign(t, "s3cret", Claims{
		Name: "Ada Lovelace", Email: "ada@example.com", PhoneNumber: "08012345678",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u1", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	})
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Authorization", "Bearer "+tok)

	id, raw, err := NewJWTResolver("s3cret").Resolve(r)
	require.NoError(t, err)
	assert.True(t, id.Authenticated)
	assert.Equal(t, "u1", id.UserID)
	assert.Equal(t, "ada@example.com", id.Profile.Email)
	assert.Equal(t, tok, raw)
}

func TestResolve_NoTokenIsAnonymous(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	id, _, err := NewJWTResolver("s3cret").Resolve(r)
	assert.ErrorIs(t, err, ErrNoToken)
	assert.False(t, id.Authenticated)
}

func TestResolve_WrongSecretOrExpired(t *testing.T) {
	bad := sign(t, "other", Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"}})
	expired := sign(t, "s3cret", Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u1", ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour))}})
	for _, tok := range []string{bad, expired} {
		r := httptest.NewRequest("GET", "/", nil)
		r.Header.Set("Authorization", "Bearer "+tok)
		id, _, err := NewJWTResolver("s3cret").Resolve(r)
		assert.Error(t, err)
		assert.False(t, id.Authenticated)
	}
}
