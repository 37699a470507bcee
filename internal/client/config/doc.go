// Package config loads runtime configuration for the BandTrack client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string       base URL of the backend sync server
//	-l string       bind address for the local app-shell host
//	-t string       bearer token for sync requests
//	-d string       path to the local SQLite database file
//	-cache string   root directory for versioned asset caches
//	-i int          online status check interval (seconds)
//
// # JSON schema
//
// The JSON loader uses timex.Duration for intervals, so values can be either
// strings like "3s" or integer nanoseconds:
//
//	{
//	  "server_addr": "http://127.0.0.1:8080",
//	  "token": "eyJ...",
//	  "database_path": "bandtrack.db",
//	  "cache_dir": "bandtrack-cache",
//	  "sync_debounce": "500ms",
//	  "online_check_interval": "3s"
//	}
//
// Primary API
//
//   - type Config                     — holds the client connection and storage settings
//   - func LoadConfig() *Config       — builds Config by applying defaults, JSON, then flags
//   - func (*Config) LoadDefaults()   — sets sensible defaults
//
// Note: This package does not read environment variables directly; use the
// JSON file or flags to configure values.
package config
