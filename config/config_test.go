package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, 100, cfg.Sessions.MaxSessions)
	assert.Equal(t, 900*time.Second, cfg.Sessions.TTL)
	assert.Equal(t, 30*time.Second, cfg.Sessions.SweepInterval)
	assert.Equal(t, 1280, cfg.Browser.ViewportWidth)
	assert.Equal(t, 0.5, cfg.Perception.MinConfidence)
	assert.True(t, cfg.Perception.HideCoveredOCROnCanvas)
	assert.Equal(t, "medium", cfg.Recording.Quality)
}

func TestLoadFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9000"
sessions:
  max_sessions: 5
  ttl: 2m
browser:
  editor_url: "http://editor:8601/"
  headless: false
recording:
  quality: high
`), 0o644))

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, 5, cfg.Sessions.MaxSessions)
	assert.Equal(t, 2*time.Minute, cfg.Sessions.TTL)
	assert.Equal(t, "http://editor:8601/", cfg.Browser.EditorURL)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, "high", cfg.Recording.Quality)

	// Untouched sections keep their defaults.
	assert.Equal(t, 30*time.Second, cfg.Sessions.SweepInterval)
}

func TestMissingFileUsesDefaults(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath("/nonexistent/config.yaml").Load()
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.Sessions.MaxSessions)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sessions:\n  max_sessions: 5\n"), 0o644))

	t.Setenv("BLOCKBENCH_SESSIONS_MAX_SESSIONS", "7")
	t.Setenv("BLOCKBENCH_SESSIONS_TTL", "45s")
	t.Setenv("BLOCKBENCH_BROWSER_HEADLESS", "false")
	t.Setenv("BLOCKBENCH_PERCEPTION_MIN_CONFIDENCE", "0.8")

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Sessions.MaxSessions)
	assert.Equal(t, 45*time.Second, cfg.Sessions.TTL)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, 0.8, cfg.Perception.MinConfidence)
}

func TestValidation(t *testing.T) {
	t.Setenv("BLOCKBENCH_RECORDING_QUALITY", "ultra")
	_, err := NewLoader().Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quality")
}

func TestInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sessions: [not a map"), 0o644))

	_, err := NewLoader().WithConfigPath(path).Load()
	require.Error(t, err)
}
