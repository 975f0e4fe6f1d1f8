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
	path := filepath.Join(t.TempDir(), "formkit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_ExpandsEnvAndAppliesDefaults(t *testing.T) {
	t.Setenv("JOGET_KEY", "from-env")
	path := writeConfig(t, `
server:
  base_url: https://apps.example.com/jw
  api_key: ${JOGET_KEY}
  api_id: API-1
app:
  app_id: crm
  create_crud: true
retry:
  delay: 500ms
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Server.APIKey)
	assert.Equal(t, 500*time.Millisecond, cfg.Retry.Delay)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, "joget", cfg.Platform)
	assert.Equal(t, "{root}/jw/web/userview/{appId}/v/_/", cfg.Server.RefererTemplate)
	assert.Equal(t, 20, cfg.Build.TableNameLimit)
	assert.Equal(t, StorageDir, cfg.Build.Storage)
	assert.True(t, cfg.App.CreateCRUD)
	assert.NoError(t, cfg.ValidateDeploy())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "retry:\n  max_attempts: 5\nlogging:\n  level: debug\n")
	t.Setenv("FORMKIT_RETRY_MAX_ATTEMPTS", "7")
	t.Setenv("FORMKIT_RETRY_DELAY", "1s")
	t.Setenv("FORMKIT_OVERWRITE", "yes")
	t.Setenv("FORMKIT_LOG_FORMAT", "json")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Retry.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Retry.Delay)
	assert.True(t, cfg.Build.Overwrite)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_RetryDelay(t *testing.T) {
	cfg, err := Load(writeConfig(t, "retry:\n  max_attempts: 2\n"))
	require.NoError(t, err)
	assert.Equal(t, DefaultRetryDelay, cfg.Retry.Delay)

	cfg, err = Load(writeConfig(t, "retry:\n  delay: 0s\n"))
	require.NoError(t, err)
	assert.Zero(t, cfg.Retry.Delay)

	t.Setenv("FORMKIT_RETRY_DELAY", "0s")
	cfg, err = LoadFromEnv()
	require.NoError(t, err)
	assert.Zero(t, cfg.Retry.Delay)
}

func TestLoad_Invalid(t *testing.T) {
	path := writeConfig(t, `
retry:
  max_attempts: -1
build:
  storage: ftp
logging:
  level: loud
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retry.max_attempts")
	assert.Contains(t, err.Error(), "build.storage")
	assert.Contains(t, err.Error(), "logging.level")

	_, err = Load(writeConfig(t, "server: [unclosed"))
	assert.ErrorContains(t, err, "parse")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_S3RequiresBucket(t *testing.T) {
	_, err := Load(writeConfig(t, "build:\n  storage: s3\n"))
	assert.ErrorContains(t, err, "build.s3.bucket")

	t.Setenv("FORMKIT_S3_BUCKET", "artifacts")
	cfg, err := Load(writeConfig(t, "build:\n  storage: s3\n"))
	require.NoError(t, err)
	assert.Equal(t, "artifacts", cfg.Build.S3.Bucket)
}

func TestLoadWithFallback(t *testing.T) {
	t.Setenv("FORMKIT_BASE_URL", "http://joget.local/jw")
	cfg, err := LoadWithFallback(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "http://joget.local/jw", cfg.Server.BaseURL)

	err = cfg.ValidateDeploy()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.api_key")
	assert.Contains(t, err.Error(), "server.api_id")
}

func TestValidateDeploy_RejectsRelativeURL(t *testing.T) {
	cfg := Default()
	cfg.Server = ServerConfig{BaseURL: "joget.local", APIKey: "k", APIID: "i", RefererTemplate: cfg.Server.RefererTemplate}
	assert.ErrorContains(t, cfg.ValidateDeploy(), "absolute URL")
}

func TestLoad_MetricsNeedTextfile(t *testing.T) {
	_, err := Load(writeConfig(t, "metrics:\n  enabled: true\n"))
	assert.ErrorContains(t, err, "metrics.textfile")

	t.Setenv("FORMKIT_METRICS_TEXTFILE", "/tmp/formkit.prom")
	cfg, err := Load(writeConfig(t, "metrics:\n  enabled: true\n"))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/formkit.prom", cfg.Metrics.Textfile)
}
