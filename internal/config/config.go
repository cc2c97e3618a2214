package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/3worlds/tw-apps-sub001/internal/export"
	"github.com/3worlds/tw-apps-sub001/internal/snapshot"
)

// Persistence failure policies.
const (
	PolicyReject  = "reject"
	PolicyProceed = "proceed"
)

// Config is the complete cfgedit configuration.
type Config struct {
	Project ProjectConfig `toml:"project" yaml:"project"`
	History HistoryConfig `toml:"history" yaml:"history"`
	Storage StorageConfig `toml:"storage" yaml:"storage"`
	Logging LoggingConfig `toml:"logging" yaml:"logging"`
	Metrics MetricsConfig `toml:"metrics" yaml:"metrics"`
	Watch   WatchConfig   `toml:"watch" yaml:"watch"`
}

// ProjectConfig locates the history storage area.
type ProjectConfig struct {
	// StorageDir overrides <root>/.cfgedit/history. Relative paths are
	// resolved against the project root.
	StorageDir string `toml:"storage_dir" yaml:"storage_dir"`
}

// HistoryConfig controls the undo history.
type HistoryConfig struct {
	// MaxEntries bounds the history length; 0 means unbounded.
	MaxEntries int `toml:"max_entries" yaml:"max_entries"`

	// OnPersistFailure is "reject" (the edit fails) or "proceed"
	// (the edit is applied in memory without an undo entry).
	OnPersistFailure string `toml:"on_persist_failure" yaml:"on_persist_failure"`
}

// StorageConfig selects how snapshot artifacts are stored.
type StorageConfig struct {
	Backend    string      `toml:"backend" yaml:"backend"`
	Format     string      `toml:"format" yaml:"format"`
	SyncWrites bool        `toml:"sync_writes" yaml:"sync_writes"`
	Stems      StemsConfig `toml:"stems" yaml:"stems"`
}

// StemsConfig names the artifact prefixes.
type StemsConfig struct {
	Config string `toml:"config" yaml:"config"`
	Layout string `toml:"layout" yaml:"layout"`
	Prefs  string `toml:"prefs" yaml:"prefs"`
}

// Snapshot converts the stems for the snapshot package.
func (s StemsConfig) Snapshot() snapshot.Stems {
	return snapshot.Stems{Config: s.Config, Layout: s.Layout, Prefs: s.Prefs}
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"`
}

// MetricsConfig controls the prometheus registry.
type MetricsConfig struct {
	Enabled bool `toml:"enabled" yaml:"enabled"`
	// Addr serves /metrics when non-empty (e.g. "127.0.0.1:9464").
	Addr string `toml:"addr" yaml:"addr"`
}

// WatchConfig controls the storage directory watcher.
type WatchConfig struct {
	Enabled bool `toml:"enabled" yaml:"enabled"`
}

// Default returns the built-in configuration.
func Default() *Config {
	stems := snapshot.DefaultStems()
	return &Config{
		History: HistoryConfig{
			MaxEntries:       100,
			OnPersistFailure: PolicyReject,
		},
		Storage: StorageConfig{
			Backend: "dir",
			Format:  string(export.FormatJSON),
			Stems: StemsConfig{
				Config: stems.Config,
				Layout: stems.Layout,
				Prefs:  stems.Prefs,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks every setting and returns all failures joined.
func (c *Config) Validate() error {
	var errs []error
	add := func(path, msg string, value any) {
		errs = append(errs, &ValidationError{Path: path, Message: msg, Value: value})
	}

	if c.History.MaxEntries < 0 {
		add("history.max_entries", "must not be negative", c.History.MaxEntries)
	}
	if !oneOf(c.History.OnPersistFailure, PolicyReject, PolicyProceed) {
		add("history.on_persist_failure", "must be reject or proceed", c.History.OnPersistFailure)
	}
	if !oneOf(c.Storage.Backend, "dir", "badger") {
		add("storage.backend", "must be dir or badger", c.Storage.Backend)
	}
	if _, err := export.New(c.Storage.Format); err != nil {
		add("storage.format", "must be json, yaml or toml", c.Storage.Format)
	}
	if err := c.Storage.Stems.Snapshot().Validate(); err != nil {
		add("storage.stems", err.Error(), c.Storage.Stems)
	}
	if !oneOf(strings.ToLower(c.Logging.Level), "debug", "info", "warn", "warning", "error") {
		add("logging.level", "must be debug, info, warn or error", c.Logging.Level)
	}
	if !oneOf(c.Logging.Format, "text", "json") {
		add("logging.format", "must be text or json", c.Logging.Format)
	}
	if c.Metrics.Addr != "" && !c.Metrics.Enabled {
		add("metrics.addr", "requires metrics.enabled", c.Metrics.Addr)
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
