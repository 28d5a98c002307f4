package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.True(t, cfg.Safety.Enabled)
	assert.False(t, cfg.Safety.FailClosed)
	assert.Equal(t, 5*time.Second, cfg.Safety.Timeout)
	assert.Equal(t, "data/images", cfg.Storage.Root)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "promptgate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9090"
safety:
  enabled: false
  fail_closed: true
log:
  level: debug
  format: console
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.False(t, cfg.Safety.Enabled)
	assert.True(t, cfg.Safety.FailClosed)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PROMPTGATE_SERVER_ADDR", ":7070")
	t.Setenv("GROQ_API_KEY", "gsk-test")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, "gsk-test", cfg.GroqAPIKey)
	assert.True(t, cfg.HasProvider("groq"))
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestHasProvider(t *testing.T) {
	cfg := &Config{GroqAPIKey: "k", GoogleAPIKey: "k"}

	assert.True(t, cfg.HasProvider("groq"))
	assert.True(t, cfg.HasProvider("google"))
	assert.False(t, cfg.HasProvider("anthropic"))
	assert.False(t, cfg.HasProvider("openai"))
	assert.False(t, cfg.HasProvider("unknown"))

	assert.Equal(t, []string{"google", "groq"}, cfg.Providers())
}
