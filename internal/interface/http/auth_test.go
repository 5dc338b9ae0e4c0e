package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/progression-engine/internal/domain/shared"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func bearerRequest(token string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/profile", nil)
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	return r
}

func TestJWTAuthenticator_AcceptsValidToken(t *testing.T) {
	auth, err := NewJWTAuthenticator(testSecret, WithIssuer("progression"))
	require.NoError(t, err)

	token, err := auth.IssueToken("user-42", time.Minute)
	require.NoError(t, err)

	id, err := auth.Authenticate(bearerRequest(token))
	require.NoError(t, err)
	assert.Equal(t, shared.UserID("user-42"), id)
}

func TestJWTAuthenticator_Rejects(t *testing.T) {
	auth, err := NewJWTAuthenticator(testSecret)
	require.NoError(t, err)

	sign := func(method jwt.SigningMethod, key any, claims jwt.Claims) string {
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)
		return s
	}
	future := jwt.NewNumericDate(time.Now().Add(time.Hour))

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"wrong secret", sign(jwt.SigningMethodHS256, []byte("another-secret-of-enough-length"),
			jwt.RegisteredClaims{Subject: "u", ExpiresAt: future})},
		{"expired", sign(jwt.SigningMethodHS256, []byte(testSecret),
			jwt.RegisteredClaims{Subject: "u", ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour))})},
		{"wrong algorithm", sign(jwt.SigningMethodHS512, []byte(testSecret),
			jwt.RegisteredClaims{Subject: "u", ExpiresAt: future})},
		{"missing subject", sign(jwt.SigningMethodHS256, []byte(testSecret),
			jwt.RegisteredClaims{ExpiresAt: future})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := auth.Authenticate(bearerRequest(tt.token))
			require.Error(t, err)
			assert.True(t, shared.IsUnauthorized(err), "got %v", err)
		})
	}
}

func TestJWTAuthenticator_MissingAndMalformedHeader(t *testing.T) {
	auth, err := NewJWTAuthenticator(testSecret)
	require.NoError(t, err)

	_, err = auth.Authenticate(bearerRequest(""))
	assert.ErrorIs(t, err, ErrMissingCredentials)

	r := httptest.NewRequest(http.MethodGet, "/profile", nil)
	r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	_, err = auth.Authenticate(r)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestJWTAuthenticator_IssuerMismatch(t *testing.T) {
	issuer, err := NewJWTAuthenticator(testSecret, WithIssuer("someone-else"))
	require.NoError(t, err)
	verifier, err := NewJWTAuthenticator(testSecret, WithIssuer("progression"))
	require.NoError(t, err)

	token, err := issuer.IssueToken("u-1", time.Minute)
	require.NoError(t, err)
	_, err = verifier.Authenticate(bearerRequest(token))
	assert.True(t, shared.IsUnauthorized(err))
}

func TestNewJWTAuthenticator_ShortSecret(t *testing.T) {
	_, err := NewJWTAuthenticator("short")
	assert.ErrorIs(t, err, shared.ErrInvalidConfig)
}

func TestHeaderAuthenticator(t *testing.T) {
	auth := NewHeaderAuthenticator("X-Forwarded-User")

	r := httptest.NewRequest(http.MethodGet, "/profile", nil)
	_, err := auth.Authenticate(r)
	assert.ErrorIs(t, err, ErrMissingCredentials)

	r.Header.Set("X-Forwarded-User", "  alice ")
	id, err := auth.Authenticate(r)
	require.NoError(t, err)
	assert.Equal(t, shared.UserID("alice"), id)
}

func TestUserIDContext(t *testing.T) {
	_, ok := UserIDFromContext(context.Background())
	assert.False(t, ok)

	ctx := WithUserID(context.Background(), "bob")
	id, ok := UserIDFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, shared.UserID("bob"), id)
}
