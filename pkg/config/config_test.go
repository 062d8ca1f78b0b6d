package config

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamaar/rsrefactor/pkg/types"
)

func TestDefault(t *testing.T) {
	c := Default()
	assert.Equal(t, "info", c.LogLevel)
	assert.Equal(t, 40, c.Search.ExactLimit)
	assert.Equal(t, 0, c.Search.SimilarLimit)
	assert.False(t, c.Watch.Enabled)
	assert.Equal(t, 300*time.Millisecond, c.Watch.Debounce)
	assert.Empty(t, c.Workspace.Exclude)
}

func TestParseOverlaysDefaults(t *testing.T) {
	c, err := Parse([]byte(`
log_level: debug
search:
  similar_limit: 25
workspace:
  exclude: ["target/", "*.generated.rs"]
`))
	require.NoError(t, err)
	assert.Equal(t, "debug", c.LogLevel)
	assert.Equal(t, 40, c.Search.ExactLimit, "unset keys keep their default")
	assert.Equal(t, 25, c.Search.SimilarLimit)
	assert.Equal(t, 300*time.Millisecond, c.Watch.Debounce)
	assert.Equal(t, []string{"target/", "*.generated.rs"}, c.Workspace.Exclude)

	level, err := c.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"malformed", "search: [1, 2"},
		{"unknown level", "log_level: loud"},
		{"zero exact limit", "search:\n  exact_limit: 0"},
		{"negative similar limit", "search:\n  similar_limit: -1"},
		{"negative debounce", "watch:\n  debounce: -1s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.True(t, errors.Is(err, &types.RefactorError{Type: types.ConfigError}))
		})
	}
}

func TestLoad(t *testing.T) {
	root := t.TempDir()

	c, err := Load("", root)
	require.NoError(t, err, "a workspace without a config file uses defaults")
	assert.Equal(t, Default(), c)

	require.NoError(t, os.WriteFile(filepath.Join(root, FileName), []byte("watch:\n  enabled: true\n"), 0o644))
	c, err = Load("", root)
	require.NoError(t, err)
	assert.True(t, c.Watch.Enabled)

	explicit := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(explicit, []byte("search:\n  exact_limit: -3\n"), 0o644))
	_, err = Load(explicit, root)
	var rerr *types.RefactorError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, types.ConfigError, rerr.Type)
	assert.Equal(t, explicit, rerr.File)

	_, err = Load(filepath.Join(root, "missing.yaml"), root)
	assert.True(t, errors.Is(err, &types.RefactorError{Type: types.ConfigError}), "an explicit path must exist")
}

func TestLoggerHonoursLevel(t *testing.T) {
	var buf bytes.Buffer
	c := Default()
	c.LogLevel = "warn"
	logger := c.Logger(&buf)
	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestEngine(t *testing.T) {
	c := Default()
	c.Workspace.Exclude = []string{"vendor/"}
	ec := c.Engine(true)
	assert.Equal(t, 40, ec.ExactLimit)
	assert.Equal(t, []string{"vendor/"}, ec.Exclude)
	assert.True(t, ec.Backup)
}
