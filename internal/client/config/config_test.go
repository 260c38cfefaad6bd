package config

import (
	"testing"
	"time"

	"github.com/dmitrijs2005/gophsync/internal/netx"
	"github.com/dmitrijs2005/gophsync/internal/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, "127.0.0.1:50051", c.ServerEndpointAddr)
	assert.Equal(t, 3*time.Second, c.OnlineCheckInterval)
	assert.Equal(t, "sqlite", c.Persist.Engine)
	assert.Equal(t, 1000, c.TodoPageSize)
	assert.Equal(t, 100, c.ClientPageSize)
	assert.Equal(t, time.Second, c.WatermarkSkew)
	assert.Equal(t, netx.Backoff{Base: time.Second, Max: 30 * time.Second}, c.Backoff())
}

func TestLoadConfig_UsesDefaultsWithoutArgs(t *testing.T) {
	cfg := LoadConfig(nil)

	require.NotNil(t, cfg, "LoadConfig must not return nil")
	assert.Equal(t, "127.0.0.1:50051", cfg.ServerEndpointAddr)
	assert.Equal(t, 3*time.Second, cfg.OnlineCheckInterval)
	assert.Empty(t, cfg.ConfigFile)
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	path := writeTempFile(t, "cfg.yaml", `
server_endpoint_addr: file:1
persist:
  engine: memory
`)
	cfg := LoadConfig([]string{"-c", path, "-a", "flag:2"})

	assert.Equal(t, "flag:2", cfg.ServerEndpointAddr)
	assert.Equal(t, "memory", cfg.Persist.Engine)
	assert.Equal(t, path, cfg.ConfigFile)
}

func TestPageSize(t *testing.T) {
	c := Config{TodoPageSize: 5}
	assert.Equal(t, 5, c.PageSize(shared.Todo))
	assert.Equal(t, shared.Client.PageSize, c.PageSize(shared.Client))
	assert.Equal(t, 7, c.PageSize(shared.Model{Name: "other", PageSize: 7}))
}
