// Package config loads rsrefactor settings from YAML. Unset keys keep the
// embedded defaults.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mamaar/rsrefactor/pkg/refactor"
	"github.com/mamaar/rsrefactor/pkg/types"
)

// FileName is the config file looked up in the workspace root.
const FileName = ".rsrefactor.yaml"

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	LogLevel  string          `yaml:"log_level"`
	Search    SearchConfig    `yaml:"search"`
	Watch     WatchConfig     `yaml:"watch"`
	Workspace WorkspaceConfig `yaml:"workspace"`
}

type SearchConfig struct {
	ExactLimit   int `yaml:"exact_limit"`
	SimilarLimit int `yaml:"similar_limit"`
}

type WatchConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce"`
}

type WorkspaceConfig struct {
	// Exclude holds gitignore-style patterns of files to leave out.
	Exclude []string `yaml:"exclude"`
}

// Default returns the embedded defaults.
func Default() *Config {
	var c Config
	if err := yaml.Unmarshal(defaultsYAML, &c); err != nil {
		panic(fmt.Sprintf("config: embedded defaults: %v", err))
	}
	return &c
}

// Parse overlays data on the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, &types.RefactorError{Type: types.ConfigError, Message: fmt.Sprintf("parsing YAML: %v", err), Cause: err}
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Load reads path, or FileName in root when path is empty. A missing file in
// root yields the defaults; a missing explicit path is an error.
func Load(path, root string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = filepath.Join(root, FileName)
	}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist) && !explicit:
		return Default(), nil
	case err != nil:
		return nil, &types.RefactorError{Type: types.ConfigError, Message: err.Error(), File: path, Cause: err}
	}
	c, err := Parse(data)
	if err != nil {
		var rerr *types.RefactorError
		if errors.As(err, &rerr) {
			rerr.File = path
		}
		return nil, err
	}
	return c, nil
}

func (c *Config) validate() error {
	var problems []error
	if _, err := c.Level(); err != nil {
		problems = append(problems, err)
	}
	if c.Search.ExactLimit < 1 {
		problems = append(problems, fmt.Errorf("search.exact_limit must be at least 1, got %d", c.Search.ExactLimit))
	}
	if c.Search.SimilarLimit < 0 {
		problems = append(problems, fmt.Errorf("search.similar_limit must not be negative, got %d", c.Search.SimilarLimit))
	}
	if c.Watch.Debounce < 0 {
		problems = append(problems, fmt.Errorf("watch.debounce must not be negative, got %s", c.Watch.Debounce))
	}
	if err := errors.Join(problems...); err != nil {
		return &types.RefactorError{Type: types.ConfigError, Message: err.Error(), Cause: err}
	}
	return nil
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return l, nil
}

// Logger returns a text logger writing to w at the configured level.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, err := c.Level()
	if err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Engine returns the refactoring engine settings.
func (c *Config) Engine(backup bool) *refactor.EngineConfig {
	return &refactor.EngineConfig{
		Exclude:      c.Workspace.Exclude,
		ExactLimit:   c.Search.ExactLimit,
		SimilarLimit: c.Search.SimilarLimit,
		Backup:       backup,
	}
}
