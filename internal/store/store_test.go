package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(filepath.Join(t.TempDir(), DefaultFileName))
}

func TestLoadMissingFileYieldsEmptyData(t *testing.T) {
	s := newTestStore(t)

	data, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, data.Token)
	assert.Empty(t, data.ProjectUUID)
}

func TestSetTokenPreservesOtherFields(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.SetProjectUUID("8c8c9f68-51a1-4a92-8f3c-0123456789ab"))
	require.NoError(t, s.SetToken("secret-token"))

	data, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, "secret-token", data.Token)
	assert.Equal(t, "8c8c9f68-51a1-4a92-8f3c-0123456789ab", data.ProjectUUID)
}

func TestSaveUsesRestrictiveMode(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SetToken("secret-token"))

	info, err := os.Stat(s.filePath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestSettingsMergeOrder(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save(&Data{
		Token:      "file-token",
		CLIBaseURL: "https://cli.staging.example.com",
	}))

	t.Setenv("AGENTCLI_TOKEN", "env-token")
	t.Setenv("AGENTCLI_PLATFORM_BASE_URL", "https://api.staging.example.com")

	settings, err := s.Settings()
	require.NoError(t, err)

	// Environment beats file, file beats default, default fills the rest.
	assert.Equal(t, "env-token", settings.Token)
	assert.Equal(t, "https://cli.staging.example.com", settings.CLIBaseURL)
	assert.Equal(t, "https://api.staging.example.com", settings.PlatformBaseURL)
	assert.Equal(t, DefaultKeycloakRealm, settings.KeycloakRealm)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.WriteFile(s.filePath, []byte("token: [unclosed"), 0600))

	_, err := s.Load()
	require.Error(t, err)
}
