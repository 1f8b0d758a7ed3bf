package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToml = `
[development]
environment = "development"
port = 9100
log_level = "trace"
storage_backend = "freecache"
freecache_size_mb = 4

[production]
environment = "production"
host = "0.0.0.0"
port = 9000
log_level = "info"
logs_path = "/var/log/notesbox/service"
storage_backend = "redis"
redis_host = "redis.internal"
storage_namespace = "prod_notes"
backup_on_delete = true
write_rate_limit_per_min = 30
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, testToml)

	devCfg, err := Load("dev", path)
	require.NoError(t, err)
	assert.Equal(t, "development", devCfg.Environment)
	assert.Equal(t, 9100, devCfg.Port)
	assert.Equal(t, "localhost", devCfg.Host)
	assert.Equal(t, BackendFreecache, devCfg.StorageBackend)
	assert.Equal(t, 4, devCfg.FreecacheSizeMB)
	assert.Equal(t, DefaultNamespace, devCfg.StorageNamespace)
	assert.Equal(t, DefaultKey, devCfg.StorageKey)
	assert.False(t, devCfg.BackupOnDelete)

	prodCfg, err := Load("production", path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", prodCfg.Host)
	assert.Equal(t, BackendRedis, prodCfg.StorageBackend)
	assert.Equal(t, "redis.internal", prodCfg.RedisHost)
	assert.Equal(t, "6379", prodCfg.RedisPort)
	assert.Equal(t, "prod_notes", prodCfg.StorageNamespace)
	assert.Equal(t, DefaultKey, prodCfg.StorageKey)
	assert.True(t, prodCfg.BackupOnDelete)
	assert.Equal(t, 30, prodCfg.WriteRateLimitPerMin)
}

func TestLoad_Errors(t *testing.T) {
	path := writeConfig(t, testToml)

	_, err := Load("staging", path)
	require.ErrorIs(t, err, ErrUnknownEnv)

	_, err = Load("dev", filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)

	badBackend := writeConfig(t, "[development]\nstorage_backend = \"sqlite\"\n")
	_, err = Load("dev", badBackend)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown storage backend")

	noProd := writeConfig(t, "[development]\nport = 1\n")
	_, err = Load("prod", noProd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no config section")
}
