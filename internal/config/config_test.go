package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitialize_DefaultsAndEnv(t *testing.T) {
	// Clear any existing env vars
	os.Clearenv()
	t.Cleanup(os.Clearenv)
	globalConfig = nil

	os.Setenv("HOOKDUMP_LOG_JSON", "true")

	err := Initialize("")
	require.NoError(t, err)

	cfg := GetConfig()
	assert.True(t, cfg.LogJSON)
	assert.Equal(t, "discord", cfg.Webhook.Provider)
	assert.Equal(t, int64(DefaultMaxFileBytes), cfg.Webhook.MaxFileBytes)
}

func TestInitialize_YamlFile(t *testing.T) {
	globalConfig = nil
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "hookdump.yaml")

	yamlContent := `
log_json: true
webhook:
  url: "https://discord.com/api/webhooks/1/abc"
  max_file_bytes: 26214400
targets:
  - id: "staging-pg"
    engine: "postgres"
    db: "testdb"
    host: "localhost"
    user: "postgres"
    compress: true
    algorithm: "zstd"
  - id: "cache"
    engine: "redis"
    rdb_path: "/var/lib/redis/dump.rdb"
    poll_interval: "500ms"
    save_timeout: "2m"
`
	err := os.WriteFile(configFile, []byte(yamlContent), 0644)
	require.NoError(t, err)

	err = Initialize(configFile)
	require.NoError(t, err)

	cfg := GetConfig()
	assert.True(t, cfg.LogJSON)
	assert.Equal(t, int64(26214400), cfg.Webhook.MaxFileBytes)
	assert.Len(t, cfg.Targets, 2)
	assert.Equal(t, "staging-pg", cfg.Targets[0].ID)
	assert.Equal(t, "zstd", cfg.Targets[0].Algorithm)
	assert.Equal(t, "/var/lib/redis/dump.rdb", cfg.Targets[1].RDBPath)
	assert.Equal(t, "500ms", cfg.Targets[1].PollInterval)
}

func TestInitialize_HotReload(t *testing.T) {
	globalConfig = nil
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "hookdump.yaml")

	yamlContent := `no_color: false`
	err := os.WriteFile(configFile, []byte(yamlContent), 0644)
	require.NoError(t, err)

	err = Initialize(configFile)
	require.NoError(t, err)

	assert.False(t, GetConfig().NoColor)

	// Update file
	newYaml := `no_color: true`
	err = os.WriteFile(configFile, []byte(newYaml), 0644)
	require.NoError(t, err)

	// Wait for fsnotify to pick up change
	time.Sleep(100 * time.Millisecond)

	assert.True(t, GetConfig().NoColor)
}
