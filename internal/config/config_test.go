package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-client/internal/config"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	c := config.New()

	require.Equal(t, "DEV", c.GetEnv())
	require.Equal(t, "http://localhost:8000", c.GetBaseURL())
	require.Equal(t, 30*time.Second, c.GetRequestTimeout())
	require.Equal(t, 60*time.Second, c.GetResourceTimeout())
	require.Equal(t, config.StoreBackendFile, c.GetStoreBackend())
	require.Equal(t, time.Second, c.GetUsernameDebounce())
	require.Equal(t, 8, c.GetMinPasswordLength())
	require.Equal(t, 16, c.GetMinAge())
	require.Equal(t, 6, c.GetCodeLength())
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "authflow.yaml")
	yaml := `
env: prod
log_level: DEBUG
http:
  base_url: https://api.example.com/
  request_timeout: 5s
store:
  backend: redis
  redis:
    addr: redis:6379
    db: 3
flow:
  username_debounce: 250ms
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	t.Setenv("AUTHFLOW_STORE_REDIS_PREFIX", "from-env")

	c, err := config.Load(path)
	require.NoError(t, err)

	require.Equal(t, "PROD", c.GetEnv())
	require.Equal(t, "debug", c.GetLogLevel())
	require.Equal(t, "https://api.example.com", c.GetBaseURL())
	require.Equal(t, 5*time.Second, c.GetRequestTimeout())
	require.Equal(t, 60*time.Second, c.GetResourceTimeout())
	require.Equal(t, config.StoreBackendRedis, c.GetStoreBackend())
	require.Equal(t, "redis:6379", c.GetRedisAddr())
	require.Equal(t, 3, c.GetRedisDB())
	require.Equal(t, "from-env", c.GetRedisPrefix())
	require.Equal(t, 250*time.Millisecond, c.GetUsernameDebounce())
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	c, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8000", c.GetBaseURL())
}

func TestStoreBackend_UnknownFallsBackToFile(t *testing.T) {
	t.Setenv("AUTHFLOW_STORE_BACKEND", "carrier-pigeon")
	require.Equal(t, config.StoreBackendFile, config.New().GetStoreBackend())
}
