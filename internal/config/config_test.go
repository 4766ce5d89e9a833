package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "zoning.db", cfg.Store.SQLitePath)
	assert.Equal(t, "zoning.db", cfg.Store.DSN())
	assert.Equal(t, int32(10), cfg.Store.MaxConns)
	assert.Equal(t, int32(1), cfg.Store.MinConns)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, "zoning:", cfg.Redis.Prefix)
	assert.Equal(t, 600, cfg.Redis.TTLSecs)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "http://localhost:8080", cfg.Client.BaseURL)
	assert.Equal(t, 3, cfg.Client.MaxAttempts)
	assert.InDelta(t, 20.0, cfg.Client.RateLimit, 0.001)
	assert.Equal(t, 768, cfg.Session.TouchThreshold)
	assert.Equal(t, 5, cfg.Session.NoticeLimit)
	assert.Equal(t, 30, cfg.Session.UpdateTimeoutSecs)
	assert.Empty(t, cfg.Zoning.Types)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/zoning
log:
  level: debug
  format: console
server:
  port: 9090
zoning:
  types: [Residential, Commercial]
  palette_file: palette.yaml
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/zoning", cfg.Store.DSN())
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"Residential", "Commercial"}, cfg.Zoning.Types)
	assert.Equal(t, "palette.yaml", cfg.Zoning.PaletteFile)
	// Defaults still apply for unset values
	assert.Equal(t, 768, cfg.Session.TouchThreshold)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [unclosed"), 0o644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	t.Setenv("ZONING_STORE_DRIVER", "postgres")
	t.Setenv("ZONING_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("ZONING_SERVER_PORT", "3000")
	t.Setenv("ZONING_REDIS_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.True(t, cfg.Redis.Enabled)
}

func TestLoadDotEnv(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("ZONING_SESSION_NOTICE_LIMIT=9\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("ZONING_SESSION_NOTICE_LIMIT") }) //nolint:errcheck

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Session.NoticeLimit)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.SQLitePath = "zoning.db"
	cfg.Store.MaxConns = 10
	cfg.Store.MinConns = 1
	cfg.Server.Port = 8080
	cfg.Session.TouchThreshold = 768
	cfg.Client.RateLimit = 20
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{
			name:    "postgres without url",
			mutate:  func(c *Config) { c.Store.Driver = "postgres" },
			wantErr: "store.database_url",
		},
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.Store.Driver = "mysql" },
			wantErr: "store.driver",
		},
		{
			name:    "empty sqlite path",
			mutate:  func(c *Config) { c.Store.SQLitePath = "" },
			wantErr: "store.sqlite_path",
		},
		{
			name:    "min above max",
			mutate:  func(c *Config) { c.Store.MinConns = 20 },
			wantErr: "store.min_conns",
		},
		{
			name:    "redis without url",
			mutate:  func(c *Config) { c.Redis.Enabled = true },
			wantErr: "redis.url",
		},
		{
			name:    "bad port",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "server.port",
		},
		{
			name:    "zero threshold",
			mutate:  func(c *Config) { c.Session.TouchThreshold = 0 },
			wantErr: "session.touch_threshold",
		},
		{
			name:    "negative rate",
			mutate:  func(c *Config) { c.Client.RateLimit = -1 },
			wantErr: "client.rate_limit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validDefaults()
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
