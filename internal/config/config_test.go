package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("REDIS_HOST", "")
	t.Setenv("SERVICE_TOKEN_SECRET", "")
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:5001", cfg.Server.Addr())
	assert.Equal(t, "http://localhost:7200/api", cfg.DocService.URL)
	assert.Equal(t, 600.0, cfg.Editor.DisplayWidth)
	assert.Equal(t, 30*time.Minute, cfg.Editor.SessionIdleTTL)
	assert.Equal(t, int64(50<<20), cfg.Editor.MaxUploadBytes)
	assert.Empty(t, cfg.Redis.Addr())
	assert.Empty(t, cfg.Keycloak.Issuer())
	assert.Equal(t, "pdf-uploads", cfg.MinIO.Bucket)
}

func TestLoadConfig_Env(t *testing.T) {
	t.Setenv("DOCSERVICE_URL", "http://docs:7200/api")
	t.Setenv("EDITOR_DISPLAY_WIDTH", "800")
	t.Setenv("EDITOR_SESSION_IDLE_TTL", "5m")
	t.Setenv("REDIS_HOST", "redis")
	t.Setenv("KEYCLOAK_URL", "http://kc:8080")
	t.Setenv("KEYCLOAK_REALM", "docs")
	t.Setenv("SERVICE_TOKEN_SECRET", "s3cret")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "http://docs:7200/api", cfg.DocService.URL)
	assert.Equal(t, 800.0, cfg.Editor.DisplayWidth)
	assert.Equal(t, 5*time.Minute, cfg.Editor.SessionIdleTTL)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr())
	assert.Equal(t, "http://kc:8080/realms/docs", cfg.Keycloak.Issuer())
	assert.Equal(t, "s3cret", cfg.ServiceToken.Secret)
}

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "annotator.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server_port: \"9000\"\nrate_limit_burst: 3\n"), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("RATE_LIMIT_BURST", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, 3, cfg.RateLimit.Burst)
}

func TestLoadConfig_BadWidth(t *testing.T) {
	t.Setenv("EDITOR_DISPLAY_WIDTH", "-1")
	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "nope.yaml"))
	_, err := LoadConfig()
	assert.Error(t, err)
}
