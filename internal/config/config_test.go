package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "8080", cfg.Port)
	require.Equal(t, "!", cfg.CommandPrefix)
	require.Equal(t, 25565, cfg.MinecraftPort)
	require.Equal(t, 25575, cfg.RCONPort)
	require.Equal(t, 30*time.Second, cfg.FulfillInterval)
	require.Equal(t, 5*time.Minute, cfg.StatusPollInterval)
}

func TestAdminDiscordIDs(t *testing.T) {
	t.Setenv("ADMIN_DISCORD_IDS", "123, 456 ,789")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, []string{"123", "456", "789"}, cfg.AdminDiscordIDs)
	require.True(t, cfg.IsAdminDiscordID("456"))
	require.False(t, cfg.IsAdminDiscordID("999"))
}

func TestGetEnvInt_Invalid(t *testing.T) {
	t.Setenv("MINECRAFT_SERVER_PORT", "not-a-port")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 25565, cfg.MinecraftPort)
}
