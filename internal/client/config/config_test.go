package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, "http://127.0.0.1:8080", c.ServerAddr)
	assert.Equal(t, "127.0.0.1:8099", c.LocalAddr)
	assert.Equal(t, "bandtrack.db", c.DatabasePath)
	assert.Equal(t, "bandtrack-cache", c.CacheDir)
	assert.Equal(t, 500*time.Millisecond, c.SyncDebounce)
	assert.Equal(t, 3*time.Second, c.OnlineCheckInterval)
}

func TestLoadConfig_UsesDefaultsBeforeParsing(t *testing.T) {
	cfg := LoadConfig()

	require.NotNil(t, cfg, "LoadConfig must not return nil")
	assert.Equal(t, "http://127.0.0.1:8080", cfg.ServerAddr)
	assert.Equal(t, 3*time.Second, cfg.OnlineCheckInterval)
}
