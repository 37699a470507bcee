package config

import "time"

// Config holds runtime settings for the BandTrack client.
//
// Fields:
//   - ServerAddr: base URL of the backend sync server.
//   - LocalAddr: bind address for the local app-shell host.
//   - Token: bearer token used to authenticate sync requests.
//   - DatabasePath: location of the local SQLite database file.
//   - CacheDir: root directory for the versioned asset caches.
//   - SyncDebounce: how long to wait after a local change before syncing.
//   - OnlineCheckInterval: how often the client probes server reachability.
//
// Units: SyncDebounce and OnlineCheckInterval are time.Durations.
type Config struct {
	ServerAddr          string
	LocalAddr           string
	Token               string
	DatabasePath        string
	CacheDir            string
	SyncDebounce        time.Duration
	OnlineCheckInterval time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerAddr = "http://127.0.0.1:8080"
	c.LocalAddr = "127.0.0.1:8099"
	c.DatabasePath = "bandtrack.db"
	c.CacheDir = "bandtrack-cache"
	c.SyncDebounce = 500 * time.Millisecond
	c.OnlineCheckInterval = 3 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
