package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"portfoliotracker/internal/config"
)

func TestLoad_DefaultsWhenNoFile(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	require.Equal(t, "8080", cfg.Server.Port)
	require.Equal(t, 30, cfg.Server.RequestTimeoutSec)
	require.Equal(t, 12, cfg.AlphaVantage.CooldownSec)
	require.Equal(t, "CAD", cfg.BaseCurrency)
	require.NoError(t, cfg.Validate())
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"server": {"port": "9090"},
		"base_currency": "USD"
	}`), 0o600))

	t.Setenv("ALPHAVANTAGE_KEY", "secret")
	t.Setenv("BASE_CURRENCY", "EUR")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, "9090", cfg.Server.Port)
	require.Equal(t, "secret", cfg.AlphaVantage.APIKey)
	require.Equal(t, "EUR", cfg.BaseCurrency, "env wins over file")
}

func TestLoad_BadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{nope"), 0o600))

	_, err := config.Load(path)
	require.Error(t, err)
}

func TestValidate_MissingStorePath(t *testing.T) {
	cfg := config.Default()
	cfg.Store.SQLitePath = ""
	require.Error(t, cfg.Validate())
}
