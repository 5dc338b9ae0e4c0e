package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/progression-engine/config"
	httpapi "github.com/alem-hub/progression-engine/internal/interface/http"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := rootCmd.Execute()
	return out.String(), err
}

func TestCatalogValidate_PrintsDefinitions(t *testing.T) {
	out, err := execute(t, "catalog", "validate", filepath.Join("..", "..", "internal", "infrastructure", "catalog", "default.yaml"))
	require.NoError(t, err)

	assert.Contains(t, out, "first-login")
	assert.Contains(t, out, "Hello There")
	assert.Contains(t, out, "level(s)")
}

func TestCatalogValidate_RejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("achievements:\n  - id: Not A Slug\n    points: -1\n"), 0o600))

	_, err := execute(t, "catalog", "validate", path)
	require.Error(t, err)
}

func TestCatalogValidate_RequiresFile(t *testing.T) {
	_, err := execute(t, "catalog", "validate")
	require.Error(t, err)
}

func TestNewAuthenticator(t *testing.T) {
	auth, err := newAuthenticator(config.AuthConfig{Mode: config.AuthModeHeader, UserHeader: "X-User-ID"})
	require.NoError(t, err)
	assert.IsType(t, &httpapi.HeaderAuthenticator{}, auth)

	auth, err = newAuthenticator(config.AuthConfig{Mode: config.AuthModeJWT, JWTSecret: "0123456789abcdef"})
	require.NoError(t, err)
	assert.IsType(t, &httpapi.JWTAuthenticator{}, auth)

	_, err = newAuthenticator(config.AuthConfig{Mode: config.AuthModeJWT, JWTSecret: "short"})
	require.Error(t, err)
}
