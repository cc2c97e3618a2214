package config

import (
	"os"
	"strconv"
	"strings"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CFGEDIT_"

// EnvLoader loads configuration overrides from environment variables.
type EnvLoader struct {
	prefix  string            // Environment variable prefix (e.g., "CFGEDIT_")
	mapping map[string]string // Env var -> config path
}

// NewEnvLoader creates a new environment variable loader.
// The prefix should include the trailing underscore.
func NewEnvLoader(prefix string) *EnvLoader {
	return &EnvLoader{
		prefix:  prefix,
		mapping: defaultEnvMapping(prefix),
	}
}

// defaultEnvMapping returns the short names for common settings.
func defaultEnvMapping(prefix string) map[string]string {
	return map[string]string{
		prefix + "STORAGE_DIR":        "project.storage_dir",
		prefix + "MAX_ENTRIES":        "history.max_entries",
		prefix + "ON_PERSIST_FAILURE": "history.on_persist_failure",
		prefix + "BACKEND":            "storage.backend",
		prefix + "FORMAT":             "storage.format",
		prefix + "SYNC_WRITES":        "storage.sync_writes",
		prefix + "STEM_CONFIG":        "storage.stems.config",
		prefix + "STEM_LAYOUT":        "storage.stems.layout",
		prefix + "STEM_PREFS":         "storage.stems.prefs",
		prefix + "LOG_LEVEL":          "logging.level",
		prefix + "LOG_FORMAT":         "logging.format",
		prefix + "METRICS":            "metrics.enabled",
		prefix + "METRICS_ADDR":       "metrics.addr",
		prefix + "WATCH":              "watch.enabled",
	}
}

// AddMapping adds a custom environment variable mapping.
func (l *EnvLoader) AddMapping(envVar, configPath string) {
	if l.mapping == nil {
		l.mapping = make(map[string]string)
	}
	l.mapping[envVar] = configPath
}

// Load reads environment variables and returns a nested configuration map.
// Mapped variables use their configured path; any other prefixed variable
// FOO_BAR_BAZ becomes foo.bar_baz.
func (l *EnvLoader) Load() map[string]any {
	config := make(map[string]any)

	for env, path := range l.mapping {
		if val, ok := os.LookupEnv(env); ok {
			setByPath(config, path, parseValue(val))
		}
	}

	for _, env := range os.Environ() {
		name, value, ok := strings.Cut(env, "=")
		if !ok || !strings.HasPrefix(name, l.prefix) {
			continue
		}
		if _, mapped := l.mapping[name]; mapped {
			continue
		}
		path := l.envToPath(name)
		if path == "" {
			continue
		}
		setByPath(config, path, parseValue(value))
	}

	return config
}

// envToPath converts CFGEDIT_HISTORY_MAX_ENTRIES to history.max_entries.
func (l *EnvLoader) envToPath(env string) string {
	name := strings.ToLower(strings.TrimPrefix(env, l.prefix))
	section, setting, ok := strings.Cut(name, "_")
	if !ok || section == "" || setting == "" {
		return ""
	}
	return section + "." + setting
}

// parseValue converts booleans and integers; everything else stays a string.
func parseValue(s string) any {
	switch strings.ToLower(s) {
	case "true", "yes", "on":
		return true
	case "false", "no", "off":
		return false
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	return s
}

// setByPath sets a value in a nested map using a dot-separated path.
func setByPath(data map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	current := data

	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			current[part] = next
		}
		current = next
	}
	current[parts[len(parts)-1]] = value
}
