package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/3worlds/tw-apps-sub001/internal/vfs"
)

// FileNames are the config file names looked up in a project root, in order.
var FileNames = []string{"cfgedit.toml", "cfgedit.yaml", "cfgedit.yml"}

// Find returns the first config file present in dir, or "" if none is.
func Find(fsys vfs.FS, dir string) string {
	for _, name := range FileNames {
		p := fsys.Join(dir, name)
		if info, err := fsys.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}

// Load builds the configuration from defaults, the file at path (skipped when
// path is empty) and CFGEDIT_ environment variables, then validates it.
func Load(fsys vfs.FS, path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.mergeFile(fsys, path); err != nil {
			return nil, err
		}
	}

	if err := cfg.mergeEnv(NewEnvLoader(EnvPrefix)); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mergeFile overlays the settings present in a TOML or YAML file.
func (c *Config) mergeFile(fsys vfs.FS, path string) error {
	data, err := fsys.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config file %s: %w", path, err)
		}
		return fmt.Errorf("reading config file %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, c)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return &ParseError{Path: path, Message: err.Error(), Err: err}
	}
	return nil
}

// mergeEnv overlays environment overrides. The override map is re-encoded as
// TOML so it decodes through the same struct tags as the file.
func (c *Config) mergeEnv(l *EnvLoader) error {
	overrides := l.Load()
	if len(overrides) == 0 {
		return nil
	}

	data, err := toml.Marshal(overrides)
	if err != nil {
		return fmt.Errorf("encoding environment overrides: %w", err)
	}
	if err := toml.Unmarshal(data, c); err != nil {
		return &ParseError{Path: "<environment>", Message: err.Error(), Err: err}
	}
	return nil
}
