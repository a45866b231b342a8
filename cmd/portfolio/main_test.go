package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portfolieo/portfolio-api/internal/auth"
	"github.com/portfolieo/portfolio-api/internal/config"
)

func TestDevTokenVerifiesWithConfiguredSecret(t *testing.T) {
	t.Parallel()

	cfg := config.AuthConfig{JWTSecret: "local-secret", Issuer: "portfolio-dev"}
	token, err := devToken(cfg, "user-7", "", time.Hour)
	require.NoError(t, err)

	verifier, err := auth.NewVerifier(cfg.JWTSecret, cfg.Issuer)
	require.NoError(t, err)
	principal, err := verifier.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-7", principal.ID)
	assert.Equal(t, "user-7@localhost", principal.Email)

	token, err = devToken(cfg, "user-8", "ada@example.com", time.Hour)
	require.NoError(t, err)
	principal, err = verifier.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", principal.Email)
}

func TestDevTokenRequiresSecret(t *testing.T) {
	t.Parallel()

	_, err := devToken(config.AuthConfig{}, "user-7", "", time.Hour)
	require.Error(t, err)
}
