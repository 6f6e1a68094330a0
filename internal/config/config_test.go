package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yml"))
	require.NoError(t, err, "missing config file should fall back to defaults")

	assert.Equal(t, "https://2captcha.com", cfg.SolverBaseURL)
	assert.Equal(t, 2*time.Second, cfg.SolverPollInterval)
	assert.Equal(t, 2*time.Minute, cfg.SolverMaxWait)
	assert.Equal(t, 5, cfg.MaxCaptchaAttempts)
	assert.False(t, cfg.AutoSubmit)
	assert.Equal(t, 30*time.Second, cfg.CheckInterval)
	assert.Equal(t, 30*time.Second, cfg.RetryInterval)
	assert.Equal(t, 50, cfg.MaxConcurrentInstances)
	assert.True(t, cfg.EnableScreenshots)
	assert.Equal(t, "screenshots", cfg.ScreenshotsDir)
	assert.Equal(t, "sqlite", cfg.DatabaseType)
	assert.Equal(t, 5001, cfg.HTTPPort)
	assert.Equal(t, "smtp.gmail.com", cfg.SMTPServer)
	assert.Equal(t, 587, cfg.SMTPPort)
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.yml")
	content := []byte(`
solver_api_key: test-key
max_captcha_attempts: 3
auto_submit: true
check_interval: 10s
max_concurrent_instances: 4
screenshots_dir: /tmp/shots
database_type: postgres
database_host: db.internal
http_port: 8088
`)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "test-key", cfg.SolverAPIKey)
	assert.Equal(t, 3, cfg.MaxCaptchaAttempts)
	assert.True(t, cfg.AutoSubmit)
	assert.Equal(t, 10*time.Second, cfg.CheckInterval)
	assert.Equal(t, 4, cfg.MaxConcurrentInstances)
	assert.Equal(t, "/tmp/shots", cfg.ScreenshotsDir)
	assert.Equal(t, "postgres", cfg.DatabaseType)
	assert.Equal(t, "db.internal", cfg.DatabaseHost)
	assert.Equal(t, 8088, cfg.HTTPPort)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("RETRY_INTERVAL", "90s")
	t.Setenv("MAX_CONCURRENT_INSTANCES", "2")
	t.Setenv("PROXY_URL", "http://proxy.local:8080")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yml"))
	require.NoError(t, err)

	assert.Equal(t, 90*time.Second, cfg.RetryInterval)
	assert.Equal(t, 2, cfg.MaxConcurrentInstances)
	assert.Equal(t, "http://proxy.local:8080", cfg.ProxyURL)
}

func TestLoadConfigRejectsInvalidLimits(t *testing.T) {
	t.Setenv("MAX_CONCURRENT_INSTANCES", "0")

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}
