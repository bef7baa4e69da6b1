package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "4001", cfg.Server.Port)
	require.Equal(t, "authkit", cfg.MongoDB.Database)
	require.Equal(t, "authkit_session", cfg.Session.CookieName)
	require.False(t, cfg.Session.CookieSecure)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("SERVER_ENVIRONMENT", "production")
	t.Setenv("REDIS_SESSIONS", "true")
	t.Setenv("RATE_LIMIT_ENABLED", "true")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "9000", cfg.Server.Port)
	require.True(t, cfg.Session.CookieSecure)
	require.True(t, cfg.Redis.Sessions)
	require.True(t, cfg.RateLimit.Enabled)
}
