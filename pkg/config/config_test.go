package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/stratum/pkg/errors"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
	assert.Equal(t, [2]int{256, 256}, c.Model.Shape)
	assert.Equal(t, 0.25, c.Model.Overlap)
	assert.Equal(t, CacheFile, c.Cache.Backend)
	assert.Equal(t, 7*24*time.Hour, c.Cache.TTL.Duration)
	assert.Equal(t, ":8080", c.Server.Addr)
	assert.Equal(t, log.InfoLevel, c.LogLevel())
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "config.toml", `
[log]
level = "debug"

[model]
shape = [128, 64]
tiling = [2, 1]
overlap = 0.1

[cache]
backend = "redis"
redis_addr = "cache:6379"
ttl = "1h"
`)
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, log.DebugLevel, c.LogLevel())
	assert.Equal(t, [2]int{128, 64}, c.Model.Shape)
	assert.Equal(t, [2]int{2, 1}, c.Model.Tiling)
	assert.Equal(t, CacheRedis, c.Cache.Backend)
	assert.Equal(t, "cache:6379", c.Cache.RedisAddr)
	assert.Equal(t, time.Hour, c.Cache.TTL.Duration)
	assert.Equal(t, StoreFile, c.Store.Backend, "unset sections keep defaults")
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
model:
  shape: [32, 32]
store:
  backend: mongo
  mongo_uri: mongodb://localhost:27017
server:
  addr: 127.0.0.1:9000
`)
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, [2]int{32, 32}, c.Model.Shape)
	assert.Equal(t, [2]int{1, 1}, c.Model.Tiling)
	assert.Equal(t, StoreMongo, c.Store.Backend)
	assert.Equal(t, "projects", c.Store.Collection)
	assert.Equal(t, "127.0.0.1:9000", c.Server.Addr)
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"bad syntax", "c.toml", "[log\nlevel="},
		{"bad level", "c.toml", "[log]\nlevel = \"loud\""},
		{"bad cache backend", "c.toml", "[cache]\nbackend = \"memcached\""},
		{"mongo without uri", "c.yaml", "store:\n  backend: mongo"},
		{"tiny shape", "c.toml", "[model]\nshape = [1, 1]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.file, tt.content))
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
		})
	}
}

func TestLoadOrDefaultMissingFile(t *testing.T) {
	c, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
}

func TestWriteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.toml")
	want := Default()
	want.Cache.Backend = CacheNone
	require.NoError(t, Write(path, want))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
