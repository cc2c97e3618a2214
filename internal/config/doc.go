// Package config loads cfgedit settings.
//
// Settings come from three layers, later ones overriding earlier ones:
//
//	┌─────────────────────────────┐
//	│  3. Environment Variables   │  ← CFGEDIT_*, highest priority
//	├─────────────────────────────┤
//	│  2. Project config file     │  ← cfgedit.toml / cfgedit.yaml
//	├─────────────────────────────┤
//	│  1. Built-in Defaults       │  ← Lowest priority
//	└─────────────────────────────┘
//
// Example cfgedit.toml:
//
//	[history]
//	max_entries = 200
//	on_persist_failure = "reject"
//
//	[storage]
//	backend = "dir"
//	format = "json"
//
// Basic usage:
//
//	fsys := vfs.NewOSFS()
//	cfg, err := config.Load(fsys, config.Find(fsys, root))
package config
