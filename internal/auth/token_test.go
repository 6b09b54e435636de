package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndResolve(t *testing.T) {
	p := NewTokenProvider("test-secret")

	token, err := p.Issue(42, "greta")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	userID, ok := p.Resolve(token)
	require.True(t, ok)
	assert.Equal(t, uint(42), userID)
}

func TestResolve_WrongSecret(t *testing.T) {
	issued, err := NewTokenProvider("secret-a").Issue(1, "a")
	require.NoError(t, err)

	_, ok := NewTokenProvider("secret-b").Resolve(issued)
	assert.False(t, ok)
}

func TestResolve_Garbage(t *testing.T) {
	p := NewTokenProvider("test-secret")

	for _, token := range []string{"", "not-a-jwt", "a.b.c"} {
		_, ok := p.Resolve(token)
		assert.False(t, ok, "token %q should not resolve", token)
	}
}

func TestResolve_WrongIssuerOrAudience(t *testing.T) {
	secret := "test-secret"
	p := NewTokenProvider(secret)

	mint := func(iss, aud string) string {
		claims := jwt.MapClaims{
			"sub": "7",
			"iss": iss,
			"aud": aud,
			"exp": time.Now().Add(time.Hour).Unix(),
		}
		tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		require.NoError(t, err)
		return tok
	}

	_, ok := p.Resolve(mint("someone-else", tokenAudience))
	assert.False(t, ok)

	_, ok = p.Resolve(mint(tokenIssuer, "someone-else"))
	assert.False(t, ok)

	userID, ok := p.Resolve(mint(tokenIssuer, tokenAudience))
	require.True(t, ok)
	assert.Equal(t, uint(7), userID)
}

func TestResolve_Expired(t *testing.T) {
	secret := "test-secret"
	claims := jwt.MapClaims{
		"sub": "7",
		"iss": tokenIssuer,
		"aud": tokenAudience,
		"exp": time.Now().Add(-time.Minute).Unix(),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)

	_, ok := NewTokenProvider(secret).Resolve(tok)
	assert.False(t, ok)
}
