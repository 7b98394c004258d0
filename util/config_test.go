package util

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func clearConfigEnv(t *testing.T) {
	t.Helper()

	for _, key := range []string{
		"PORT", "ALLOWED_ORIGINS", "LOG_LEVEL", "ROOM_IDLE_TIMEOUT",
		"SWEEP_INTERVAL", "EVENT_RATE", "EVENT_BURST",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearConfigEnv(t)

	config, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))

	require.NoError(t, err)
	require.Equal(t, DefaultPort, config.Port)
	require.Equal(t, DefaultLogLevel, config.LogLevel)
	require.Equal(t, DefaultRoomIdleTimeout, config.RoomIdleTimeout)
	require.Equal(t, DefaultSweepInterval, config.SweepInterval)
	require.Equal(t, float64(DefaultEventRate), config.EventRate)
	require.Equal(t, DefaultEventBurst, config.EventBurst)
	require.Empty(t, config.AllowedOrigins)
}

func TestLoadConfigFromEnv(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("PORT", "8080")
	t.Setenv("ALLOWED_ORIGINS", "http://localhost:3000, https://example.com ,")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("ROOM_IDLE_TIMEOUT", "0s")
	t.Setenv("SWEEP_INTERVAL", "10s")
	t.Setenv("EVENT_RATE", "2.5")
	t.Setenv("EVENT_BURST", "5")

	config, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))

	require.NoError(t, err)
	require.Equal(t, "8080", config.Port)
	require.Equal(t, []string{"http://localhost:3000", "https://example.com"}, config.AllowedOrigins)
	require.Equal(t, "debug", config.LogLevel)
	require.Zero(t, config.RoomIdleTimeout)
	require.Equal(t, 10*time.Second, config.SweepInterval)
	require.Equal(t, 2.5, config.EventRate)
	require.Equal(t, 5, config.EventBurst)
}

func TestLoadConfigFromEnvFile(t *testing.T) {
	clearConfigEnv(t)
	os.Unsetenv("PORT")

	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("PORT=9191\n"), 0o600))

	config, err := LoadConfig(path)

	require.NoError(t, err)
	require.Equal(t, "9191", config.Port)
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	testCases := []struct {
		key   string
		value string
	}{
		{"PORT", "not-a-port"},
		{"LOG_LEVEL", "verbose"},
		{"ROOM_IDLE_TIMEOUT", "forever"},
		{"ROOM_IDLE_TIMEOUT", "-1m"},
		{"SWEEP_INTERVAL", "0s"},
		{"EVENT_RATE", "fast"},
		{"EVENT_BURST", "-1"},
	}

	for _, tc := range testCases {
		t.Run(tc.key+"="+tc.value, func(t *testing.T) {
			clearConfigEnv(t)
			t.Setenv(tc.key, tc.value)

			_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))

			require.Error(t, err)
		})
	}
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger("debug")
	require.NoError(t, err)
	require.NotNil(t, logger)

	_, err = NewLogger("loud")
	require.Error(t, err)
}
