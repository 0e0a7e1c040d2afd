package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable Load reads so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"ENV", "LOG_LEVEL", "DATA_PATH", "STORE_BACKEND", "STORE_MAX_TXN_ATTEMPTS",
		"DECKS_LEGACY_ZERO_COUNTS", "CATALOG_BASE_URL", "CATALOG_RPS", "CATALOG_BURST",
		"CATALOG_TIMEOUT", "SERVER_PORT", "SERVER_READ_TIMEOUT", "SERVER_WRITE_TIMEOUT",
		"SERVER_IDLE_TIMEOUT", "CORS_ALLOWED_ORIGINS",
	} {
		t.Setenv(key, "")
	}
}

func validConfig() *Config {
	return &Config{
		App:     AppConfig{Environment: "development"},
		Logger:  LoggerConfig{Level: "info"},
		Store:   StoreConfig{DataPath: "/some/path", Backend: BackendBadger, MaxTxnAttempts: 25},
		Catalog: CatalogConfig{BaseURL: "https://api.gwentapi.com/v0/", RequestsPerSecond: 5},
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	dataPath := t.TempDir()

	cfg, err := Load([]string{"-env-file", filepath.Join(dataPath, "missing.env"), "-data-path", dataPath})
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.App.Environment)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, BackendBadger, cfg.Store.Backend)
	assert.Equal(t, 25, cfg.Store.MaxTxnAttempts)
	assert.False(t, cfg.Decks.LegacyZeroCounts)
	assert.Equal(t, "https://api.gwentapi.com/v0/", cfg.Catalog.BaseURL)
	assert.InDelta(t, 5.0, cfg.Catalog.RequestsPerSecond, 0)
	assert.Equal(t, 10*time.Second, cfg.Catalog.Timeout)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 60*time.Second, cfg.Server.IdleTimeout)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSAllowedOrigins)
	assert.Equal(t, filepath.Join(dataPath, "badger"), cfg.StorePath())
	assert.Equal(t, filepath.Join(dataPath, "search"), cfg.SearchIndexPath())
}

func TestLoad_Precedence(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte(`
STORE_BACKEND=sqlite
LOG_LEVEL=warn
DECKS_LEGACY_ZERO_COUNTS=yes
CORS_ALLOWED_ORIGINS=https://a.example, https://b.example
`), 0o644))

	// The .env file only fills variables that are unset, and flags beat both.
	t.Setenv("STORE_MAX_TXN_ATTEMPTS", "7")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("DATA_PATH", dir)

	cfg, err := Load([]string{"-env-file", envFile, "-log-level", "debug"})
	require.NoError(t, err)

	assert.Equal(t, BackendSQLite, cfg.Store.Backend)
	assert.Equal(t, filepath.Join(dir, "decks.db"), cfg.StorePath())
	assert.Equal(t, 7, cfg.Store.MaxTxnAttempts)
	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.True(t, cfg.Decks.LegacyZeroCounts)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSAllowedOrigins)
}

func TestLoad_InvalidDuration(t *testing.T) {
	clearEnv(t)
	t.Setenv("CATALOG_TIMEOUT", "soon")

	_, err := Load([]string{"-env-file", "", "-data-path", t.TempDir()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CATALOG_TIMEOUT")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"staging", func(c *Config) { c.App.Environment = "staging" }, ""},
		{"unknown env", func(c *Config) { c.App.Environment = "test" }, "invalid environment"},
		{"env is case sensitive", func(c *Config) { c.App.Environment = "DEVELOPMENT" }, "invalid environment"},
		{"log level any case", func(c *Config) { c.Logger.Level = "DEBUG" }, ""},
		{"bad log level", func(c *Config) { c.Logger.Level = "trace" }, "invalid log level"},
		{"empty data path", func(c *Config) { c.Store.DataPath = "" }, "data path"},
		{"bad backend", func(c *Config) { c.Store.Backend = "postgres" }, "invalid store backend"},
		{"zero attempts", func(c *Config) { c.Store.MaxTxnAttempts = 0 }, "at least 1"},
		{"no catalog", func(c *Config) { c.Catalog.BaseURL = "" }, "catalog base URL"},
		{"zero rps", func(c *Config) { c.Catalog.RequestsPerSecond = 0 }, "rps"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := expandPath("~/decks", "/default")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "decks"), got)

	got, err = expandPath("", "/default")
	require.NoError(t, err)
	assert.Equal(t, "/default", got)

	got, err = expandPath("relative/dir", "")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(got))
}

func TestGetConfigValue_Precedence(t *testing.T) {
	t.Setenv("TEST_ENV_KEY", "env-value")

	assert.Equal(t, "flag-value", getConfigValue("flag-value", "TEST_ENV_KEY", "default-value"))
	assert.Equal(t, "env-value", getConfigValue("", "TEST_ENV_KEY", "default-value"))
	assert.Equal(t, "default-value", getConfigValue("", "NONEXISTENT_KEY_FOR_TEST", "default-value"))
}

func TestGetIntConfigValue_FallsBackOnGarbage(t *testing.T) {
	t.Setenv("TEST_INT_KEY", "many")

	assert.Equal(t, 3, getIntConfigValue("", "TEST_INT_KEY", 3))
	assert.Equal(t, 9, getIntConfigValue("9", "TEST_INT_KEY", 3))
}

func TestLoadEnvFile(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	content := `# Test env file
TEST_DECKS_A=plain

TEST_DECKS_B="quoted value"
  TEST_DECKS_C  =  'single quoted'  
TEST_DECKS_KEEP=from-file
`
	require.NoError(t, os.WriteFile(envFile, []byte(content), 0o644))

	for _, k := range []string{"TEST_DECKS_A", "TEST_DECKS_B", "TEST_DECKS_C"} {
		t.Setenv(k, "")
	}
	t.Setenv("TEST_DECKS_KEEP", "from-env")

	require.NoError(t, loadEnvFile(envFile))

	assert.Equal(t, "plain", os.Getenv("TEST_DECKS_A"))
	assert.Equal(t, "quoted value", os.Getenv("TEST_DECKS_B"))
	assert.Equal(t, "single quoted", os.Getenv("TEST_DECKS_C"))
	assert.Equal(t, "from-env", os.Getenv("TEST_DECKS_KEEP"))
}

func TestLoadEnvFile_InvalidFormat(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("VALID=1\nNO EQUALS HERE\n"), 0o644))

	err := loadEnvFile(envFile)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format at line 2")
}

func TestLoadEnvFile_NonExistentFile(t *testing.T) {
	assert.Error(t, loadEnvFile("/nonexistent/file/.env"))
}
