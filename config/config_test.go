package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/commission-engine/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load(nil)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.App.Port)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, "commission.db", cfg.Database.Path)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 30*time.Second, cfg.HTTP.ShutdownTimeout)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Equal(t, time.Hour, cfg.Payouts.CheckInterval)
	assert.Empty(t, cfg.Seed.Scenario)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	t.Setenv("COMMISSION_APP_PORT", "9090")
	t.Setenv("COMMISSION_DATABASE_PATH", ":memory:")
	t.Setenv("COMMISSION_LOG_FORMAT", "json")
	t.Setenv("COMMISSION_PAYOUTS_CHECK_INTERVAL", "5m")

	cfg, err := config.Load(nil)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.App.Port)
	assert.Equal(t, ":memory:", cfg.Database.Path)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 5*time.Minute, cfg.Payouts.CheckInterval)
}

func TestLoad_FlagsOverrideEnv(t *testing.T) {
	t.Setenv("COMMISSION_APP_PORT", "9090")

	fs := config.NewFlagSet("test")
	require.NoError(t, fs.Parse([]string{"--port=3000", "--db=:memory:", "--seed=ana-march"}))

	cfg, err := config.Load(fs)
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.App.Port)
	assert.Equal(t, ":memory:", cfg.Database.Path)
	assert.Equal(t, "ana-march", cfg.Seed.Scenario)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "commission.yaml")
	content := []byte(`
app:
  env: production
database:
  path: /var/lib/commission/data.db
log:
  level: warn
metrics:
  enabled: false
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	fs := config.NewFlagSet("test")
	require.NoError(t, fs.Parse([]string{"--config=" + path}))

	cfg, err := config.Load(fs)
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "/var/lib/commission/data.db", cfg.Database.Path)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.False(t, cfg.Metrics.Enabled)
}

func TestLoad_MissingExplicitConfigFile_Fails(t *testing.T) {
	fs := config.NewFlagSet("test")
	require.NoError(t, fs.Parse([]string{"--config=" + filepath.Join(t.TempDir(), "nope.yaml")}))

	_, err := config.Load(fs)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"bad port", map[string]string{"COMMISSION_APP_PORT": "70000"}, "app.port"},
		{"bad log format", map[string]string{"COMMISSION_LOG_FORMAT": "xml"}, "log.format"},
		{"bad metrics path", map[string]string{"COMMISSION_METRICS_PATH": "metrics"}, "metrics.path"},
		{"zero interval", map[string]string{"COMMISSION_PAYOUTS_CHECK_INTERVAL": "0s"}, "payouts.check_interval"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := config.Load(nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
