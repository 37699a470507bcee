package config

import (
	"flag"
	"os"
	"time"

	"github.com/mzhdanov/bandtrack/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   base URL of the backend sync server (default from Config)
//	-l string   bind address for the local app-shell host
//	-t string   bearer token for sync requests
//	-d string   path to the local SQLite database file
//	-cache string  root directory for versioned asset caches
//	-i int      online check interval in seconds (default from Config)
//
// Note: The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	// Filter args to include only those handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-l", "-t", "-d", "-cache", "-i"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerAddr, "a", cfg.ServerAddr, "base URL of the sync server")
	fs.StringVar(&cfg.LocalAddr, "l", cfg.LocalAddr, "bind address for the local app-shell host")
	fs.StringVar(&cfg.Token, "t", cfg.Token, "bearer token for sync requests")
	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "path to the local database file")
	fs.StringVar(&cfg.CacheDir, "cache", cfg.CacheDir, "root directory for asset caches")
	onlineCheckInterval := fs.Int("i", int(cfg.OnlineCheckInterval.Seconds()), "online check interval (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.OnlineCheckInterval = time.Duration(*onlineCheckInterval) * time.Second
}
