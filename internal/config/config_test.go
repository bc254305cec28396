package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSettings(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaultsAndEnv(t *testing.T) {
	path := writeSettings(t, "discord:\n  name: Test\nleveling:\n  cooldown_seconds: 5\n  cleanup_seconds: 60\n")
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("DISCORD_TOKEN", "token")
	t.Setenv("DATABASE_DRIVER", "memory")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "Test", cfg.Discord.Name)
	assert.Equal(t, "token", cfg.Discord.Token)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, 5, cfg.Leveling.CooldownSeconds)
	assert.Equal(t, 60, cfg.Leveling.CleanupSeconds)
	assert.Equal(t, 10, cfg.Leveling.XPPerCommand)
	assert.Equal(t, 45, cfg.ReactionRoles.ColorCycleMinutes)
}

func TestLoadRequiresToken(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("DISCORD_TOKEN", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DISCORD_TOKEN")
}

func TestValidateRejectsBadSettings(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Discord.Token = "token"
	require.NoError(t, Validate(cfg))

	cfg.Leveling.CleanupSeconds = 1
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CleanupSeconds")

	cfg = DefaultConfig()
	cfg.Discord.Token = "token"
	cfg.Database.Driver = "sqlite"
	require.Error(t, Validate(cfg))

	cfg = DefaultConfig()
	cfg.Discord.Token = "token"
	cfg.N8n.WebhookURL = "not a url"
	require.Error(t, Validate(cfg))
}

func TestStoreUpdateKeepsEnvSecretsOffDisk(t *testing.T) {
	path := writeSettings(t, "database:\n  driver: memory\n")
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("DISCORD_TOKEN", "secret-token")

	cfg, err := Load()
	require.NoError(t, err)
	store := NewStore(path, cfg)

	err = store.Update(func(c *Config) {
		c.IDs.ReactionRoleMessageID = "123456"
	})
	require.NoError(t, err)
	assert.Equal(t, "123456", store.Current().IDs.ReactionRoleMessageID)
	assert.Equal(t, "secret-token", store.Current().Discord.Token)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "123456")
	assert.NotContains(t, string(data), "secret-token")
}

func TestStoreReloadKeepsPreviousOnInvalid(t *testing.T) {
	path := writeSettings(t, "database:\n  driver: memory\n")
	t.Setenv("DISCORD_TOKEN", "token")

	cfg, err := loadFile(path)
	require.NoError(t, err)
	applyEnv(&cfg)
	store := NewStore(path, cfg)

	require.NoError(t, os.WriteFile(path, []byte("database:\n  driver: nope\n"), 0o600))
	_, err = store.Reload()
	require.Error(t, err)
	assert.Equal(t, "memory", store.Current().Database.Driver)

	require.NoError(t, os.WriteFile(path, []byte("database:\n  driver: memory\nlog_level: debug\n"), 0o600))
	reloaded, err := store.Reload()
	require.NoError(t, err)
	assert.Equal(t, "debug", reloaded.LogLevel)
}

func TestBuildLoggerFallsBackToInfo(t *testing.T) {
	logger, err := BuildLogger("loud")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(parseLevel("info")))
	assert.False(t, logger.Core().Enabled(parseLevel("debug")))
}
