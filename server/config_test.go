package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, ":2567", cfg.Server.Addr)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, "my_room", cfg.Game.RoomName)
	assert.Equal(t, 50*time.Millisecond, cfg.Game.PatchInterval)
	assert.Equal(t, int64(1<<20), cfg.Transport.ReadLimit)
	assert.Equal(t, 54*time.Second, cfg.Transport.PingInterval)
	assert.Equal(t, 60.0, cfg.RateLimit.MessagesPerSecond)
	assert.False(t, cfg.Auth.RequireToken)
}

func TestLoadConfigProcessEnv(t *testing.T) {
	t.Setenv("NODE_APP_INSTANCE", "7")
	t.Setenv("CROSSROADS_AUTH_TOKEN_TTL", "2h")
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "7", cfg.Env.InstanceID)
	assert.Equal(t, 2*time.Hour, cfg.Env.TokenTTL)
}

func TestLoadConfigInstanceDefault(t *testing.T) {
	t.Setenv("NODE_APP_INSTANCE", "")
	require.NoError(t, os.Unsetenv("NODE_APP_INSTANCE"))
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "NONE", cfg.Env.InstanceID)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("CROSSROADS_SERVER_ADDR", ":9000")
	t.Setenv("CROSSROADS_GAME_ROOM_NAME", "plaza")
	t.Setenv("CROSSROADS_AUTH_REQUIRE_TOKEN", "true")
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, "plaza", cfg.Game.RoomName)
	assert.True(t, cfg.Auth.RequireToken)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crossroads.yaml")
	content := `
logging:
  level: debug
  format: json
  stdout: false
game:
  patch_interval: 100ms
ratelimit:
  messages_per_second: 0
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.False(t, cfg.Logging.Stdout)
	assert.Equal(t, 100*time.Millisecond, cfg.Game.PatchInterval)
	assert.Zero(t, cfg.RateLimit.MessagesPerSecond)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Addr = ""
	cfg.Logging.Level = "loud"
	cfg.Game.SendBuffer = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.addr")
	assert.Contains(t, err.Error(), "logging.level")
	assert.Contains(t, err.Error(), "game.send_buffer")
}

func TestValidatePingShorterThanReadTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Transport.PingInterval = cfg.Transport.ReadTimeout
	assert.Error(t, cfg.Validate())
}

func TestPropertyValidPatchInterval(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ms := rapid.IntRange(1, 10000).Draw(t, "ms")
		cfg := DefaultConfig()
		cfg.Game.PatchInterval = time.Duration(ms) * time.Millisecond
		if err := cfg.Validate(); err != nil {
			t.Fatalf("valid patch interval %dms rejected: %v", ms, err)
		}
	})
}

func TestPropertyBurstRequiredWhenLimiting(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		cfg := DefaultConfig()
		cfg.RateLimit.MessagesPerSecond = rapid.Float64Range(0.1, 1000).Draw(t, "mps")
		cfg.RateLimit.Burst = rapid.IntRange(-10, 0).Draw(t, "burst")
		if cfg.Validate() == nil {
			t.Fatalf("burst %d accepted with limiting enabled", cfg.RateLimit.Burst)
		}
	})
}
