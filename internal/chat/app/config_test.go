package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("CHAT_SIGNING_SECRET", "s3cret")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, "s3cret", cfg.SigningSecret)
	require.Equal(t, "chat.db", cfg.DatabaseFile)
	require.Equal(t, time.Hour, cfg.TokenTTL)
	require.Equal(t, "dev", cfg.Env)
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, "json", cfg.LogFormat)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, 10*time.Second, cfg.ShutdownGracePeriod)
}

func TestLoadConfigRequiresSecret(t *testing.T) {
	t.Setenv("CHAT_SIGNING_SECRET", "")

	_, err := LoadConfig()
	require.ErrorIs(t, err, ErrMissingSigningSecret)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("CHAT_SIGNING_SECRET", "s3cret")
	t.Setenv("CHAT_DATABASE_FILE", "/tmp/other.db")
	t.Setenv("CHAT_TOKEN_TTL", "30m")
	t.Setenv("PORT", "9999")
	t.Setenv("SHUTDOWN_GRACE_PERIOD", "5")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, "/tmp/other.db", cfg.DatabaseFile)
	require.Equal(t, 30*time.Minute, cfg.TokenTTL)
	require.Equal(t, 9999, cfg.Port)
	require.Equal(t, 5*time.Second, cfg.ShutdownGracePeriod, "bare integers parse as seconds")
}
