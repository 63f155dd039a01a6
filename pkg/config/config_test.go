package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, 184, cfg.Policy.ElapsedGraceDays)
	assert.Equal(t, 1826, cfg.Policy.ElapsedCapDays)
	assert.Equal(t, [3]int{90, 60, 30}, cfg.Policy.Thresholds)
	assert.Equal(t, 12*time.Hour, cfg.Session.TTL)
	assert.True(t, cfg.Workbook.Autosave)
	assert.False(t, cfg.Exports.Enabled)
}

func TestLoadEnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("POLICY_ELAPSED_CAP_DAYS", "1825")
	t.Setenv("POLICY_THRESHOLD_2", "45")
	t.Setenv("SESSION_TTL", "bogus")
	t.Setenv("ALLOWED_ORIGINS", " http://a.test , ,http://b.test")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 1825, cfg.Policy.ElapsedCapDays)
	assert.Equal(t, 45, cfg.Policy.Thresholds[1])
	assert.Equal(t, 12*time.Hour, cfg.Session.TTL)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORS.AllowedOrigins)
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(".env", []byte("WORKBOOK_DIR=/srv/rosters\nRATE_LIMIT_BURST=3\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("WORKBOOK_DIR")
		os.Unsetenv("RATE_LIMIT_BURST")
	})

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/srv/rosters", cfg.Workbook.Dir)
	assert.Equal(t, 3, cfg.RateLimit.Burst)
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
