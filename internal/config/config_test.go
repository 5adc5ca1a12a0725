package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allVars = []string{
	"PORT", "NUM_ROOMS", "TURN_SECONDS", "GRACE_SECONDS", "LOG_LEVEL", "LOG_FORMAT",
	"DATABASE_URL", "ALLOWED_ORIGINS", "MSG_RATE", "MSG_BURST",
}

// clearEnv blanks every variable Load reads; t.Setenv restores them afterwards.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, v := range allVars {
		t.Setenv(v, "")
	}
}

func missingFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "absent.env")
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(missingFile(t))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, 92*time.Second, cfg.TurnDuration)
}

func TestLoad_FromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("NUM_ROOMS", "5")
	t.Setenv("TURN_SECONDS", "30")
	t.Setenv("GRACE_SECONDS", "10")
	t.Setenv("LOG_FORMAT", "JSON")
	t.Setenv("LOG_LEVEL", "Debug")
	t.Setenv("ALLOWED_ORIGINS", "example.com, *.example.org ,")
	t.Setenv("MSG_RATE", "2.5")

	cfg, err := Load(missingFile(t))
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, 5, cfg.NumRooms)
	assert.Equal(t, 30*time.Second, cfg.TurnDuration)
	assert.Equal(t, 10*time.Second, cfg.GracePeriod)
	assert.True(t, cfg.LogJSON)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, []string{"example.com", "*.example.org"}, cfg.AllowedOrigins)
	assert.Equal(t, 2.5, cfg.MsgRate)
}

func TestLoad_DotEnvFile(t *testing.T) {
	clearEnv(t)
	// godotenv never overrides a variable that exists, even when empty
	os.Unsetenv("NUM_ROOMS")
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("NUM_ROOMS=7\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.NumRooms)
}

func TestLoad_InvalidValues(t *testing.T) {
	cases := map[string]string{
		"PORT":       "eighty",
		"NUM_ROOMS":  "0",
		"MSG_RATE":   "-1",
		"LOG_FORMAT": "xml",
	}
	for name, value := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(name, value)
			_, err := Load(missingFile(t))
			assert.Error(t, err)
		})
	}
}
