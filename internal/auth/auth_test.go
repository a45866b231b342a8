package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portfolieo/portfolio-api/internal/portfolio"
	"github.com/portfolieo/portfolio-api/internal/storage/memory"
)

func principal() portfolio.Principal {
	return portfolio.Principal{
		ID:    "user-1",
		Email: "ada@example.com",
		Name:  portfolio.Optional("Ada"),
		Image: portfolio.Optional("https://img.example/ada.png"),
	}
}

func TestVerifyRoundTrip(t *testing.T) {
	t.Parallel()

	v, err := NewVerifier("secret", "portfolio-web")
	require.NoError(t, err)
	token, err := v.Sign(principal(), time.Hour)
	require.NoError(t, err)

	got, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.ID)
	assert.Equal(t, "ada@example.com", got.Email)
	assert.Equal(t, "Ada", portfolio.Deref(got.Name))
}

func TestVerifyRejects(t *testing.T) {
	t.Parallel()

	v, err := NewVerifier("secret", "portfolio-web")
	require.NoError(t, err)

	other, err := NewVerifier("other-secret", "portfolio-web")
	require.NoError(t, err)
	forged, err := other.Sign(principal(), time.Hour)
	require.NoError(t, err)

	expired, err := v.Sign(principal(), -time.Hour)
	require.NoError(t, err)

	wrongIssuer, err := NewVerifier("secret", "someone-else")
	require.NoError(t, err)
	foreign, err := wrongIssuer.Sign(principal(), time.Hour)
	require.NoError(t, err)

	noEmail, err := v.Sign(portfolio.Principal{ID: "user-1"}, time.Hour)
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "user-1", "email": "a@example.com", "exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"forged":       forged,
		"expired":      expired,
		"issuer":       foreign,
		"missing mail": noEmail,
		"alg none":     none,
		"garbage":      "not.a.token",
	} {
		_, err := v.Verify(token)
		require.ErrorIs(t, err, ErrUnauthorized, name)
	}

	_, err = NewVerifier("", "")
	require.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	v, err := NewVerifier("secret", "")
	require.NoError(t, err)
	store := memory.NewStore()

	var seen portfolio.User
	handler := Middleware(v, store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		require.True(t, ok)
		seen = user
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/projects", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "unauthorized")

	req := httptest.NewRequest(http.MethodGet, "/v1/projects", nil)
	req.Header.Set("Authorization", "Bearer nope")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := v.Sign(principal(), time.Hour)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/v1/projects", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "user-1", seen.ID)

	stored, err := store.GetUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", stored.Email)
}
