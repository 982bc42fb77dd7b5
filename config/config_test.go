package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pos.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("POS_AUTH_DISABLED", "true")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "pos.db", cfg.DBPath)
	assert.Equal(t, "PHP", cfg.Currency)
	assert.Equal(t, 10, cfg.SearchPageSize)
	assert.Equal(t, 20, cfg.BrowsePageSize)
	assert.Equal(t, 720*time.Hour, cfg.RankingWindow)
	assert.Equal(t, 5*time.Second, cfg.StatementTimeout)
	assert.Equal(t, 3, cfg.PurchaseRetries)
	assert.False(t, cfg.StrictStock)
	assert.True(t, cfg.Auth.Disabled)
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	path := writeConfig(t, `
port: 9090
db_path: /tmp/shop.db
search_page_size: 5
strict_stock: true
auth:
  tokens:
    - token: Till-Token
      caller: cashier-1
`)
	t.Setenv("POS_PORT", "7070")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Port, "env wins over file")
	assert.Equal(t, "/tmp/shop.db", cfg.DBPath)
	assert.Equal(t, 5, cfg.SearchPageSize)
	assert.Equal(t, 20, cfg.BrowsePageSize)
	assert.True(t, cfg.StrictStock)
	require.Len(t, cfg.Auth.Tokens, 1)
	assert.Equal(t, "Till-Token", cfg.Auth.Tokens[0].Token, "token case is preserved")
	assert.Equal(t, "cashier-1", cfg.Auth.Tokens[0].Caller)
}

func TestLoad_AuthEnabledWithoutTokens_Rejected(t *testing.T) {
	_, err := Load("")
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
