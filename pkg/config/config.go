// Package config loads stratum settings from TOML or YAML.
//
// The format is chosen by file extension: ".yaml" and ".yml" are YAML,
// anything else is TOML. Missing sections keep their defaults.
//
//	[log]
//	level = "info"
//
//	[model]
//	shape = [256, 256]
//	tiling = [1, 1]
//	overlap = 0.25
//
//	[cache]
//	backend = "file"        # file | redis | none
//	ttl = "168h"
//
//	[store]
//	backend = "file"        # file | mongo
//
//	[server]
//	addr = ":8080"
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"

	errs "github.com/matzehuels/stratum/pkg/errors"
	"github.com/matzehuels/stratum/pkg/node"
)

// Cache backends.
const (
	CacheFile  = "file"
	CacheRedis = "redis"
	CacheNone  = "none"
)

// Store backends.
const (
	StoreFile  = "file"
	StoreMongo = "mongo"
)

// Config is the full application configuration.
type Config struct {
	Log    LogConfig    `toml:"log" yaml:"log"`
	Model  node.Config  `toml:"model" yaml:"model"`
	Cache  CacheConfig  `toml:"cache" yaml:"cache"`
	Store  StoreConfig  `toml:"store" yaml:"store"`
	Server ServerConfig `toml:"server" yaml:"server"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `toml:"level" yaml:"level"`
}

// CacheConfig selects and configures the artifact cache.
type CacheConfig struct {
	Backend   string   `toml:"backend" yaml:"backend"`
	Dir       string   `toml:"dir" yaml:"dir"`
	RedisAddr string   `toml:"redis_addr" yaml:"redis_addr"`
	RedisDB   int      `toml:"redis_db" yaml:"redis_db"`
	Prefix    string   `toml:"prefix" yaml:"prefix"`
	TTL       Duration `toml:"ttl" yaml:"ttl"`
}

// StoreConfig selects and configures the project store.
type StoreConfig struct {
	Backend    string `toml:"backend" yaml:"backend"`
	Dir        string `toml:"dir" yaml:"dir"`
	MongoURI   string `toml:"mongo_uri" yaml:"mongo_uri"`
	Database   string `toml:"database" yaml:"database"`
	Collection string `toml:"collection" yaml:"collection"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr string `toml:"addr" yaml:"addr"`
}

// Duration is a time.Duration written as a Go duration string.
type Duration struct{ time.Duration }

// UnmarshalText parses a duration string such as "24h".
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText writes the duration string.
func (d Duration) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// Default returns the configuration used when no file is present.
func Default() *Config {
	c := &Config{Model: node.DefaultConfig()}
	c.SetDefaults()
	return c
}

// SetDefaults fills every unset field.
func (c *Config) SetDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	def := node.DefaultConfig()
	if c.Model.Shape == [2]int{} {
		c.Model.Shape = def.Shape
	}
	if c.Model.Tiling == [2]int{} {
		c.Model.Tiling = def.Tiling
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = CacheFile
	}
	if c.Cache.Dir == "" {
		c.Cache.Dir = filepath.Join(cacheHome(), "stratum")
	}
	if c.Cache.RedisAddr == "" {
		c.Cache.RedisAddr = "localhost:6379"
	}
	if c.Cache.Prefix == "" {
		c.Cache.Prefix = "stratum:"
	}
	if c.Cache.TTL.Duration == 0 {
		c.Cache.TTL.Duration = 7 * 24 * time.Hour
	}
	if c.Store.Backend == "" {
		c.Store.Backend = StoreFile
	}
	if c.Store.Database == "" {
		c.Store.Database = "stratum"
	}
	if c.Store.Collection == "" {
		c.Store.Collection = "projects"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
}

// Validate checks enumerations and the model configuration.
func (c *Config) Validate() error {
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return errs.New(errs.ErrCodeInvalidInput, "log.level: %v", err)
	}
	if err := c.Model.Validate(); err != nil {
		return errs.Wrap(errs.ErrCodeInvalidInput, err, "model")
	}
	switch c.Cache.Backend {
	case CacheFile, CacheRedis, CacheNone:
	default:
		return errs.New(errs.ErrCodeInvalidInput, "cache.backend: unknown backend %q", c.Cache.Backend)
	}
	switch c.Store.Backend {
	case StoreFile:
	case StoreMongo:
		if c.Store.MongoURI == "" {
			return errs.New(errs.ErrCodeInvalidInput, "store.mongo_uri is required for the mongo backend")
		}
	default:
		return errs.New(errs.ErrCodeInvalidInput, "store.backend: unknown backend %q", c.Store.Backend)
	}
	return nil
}

// LogLevel returns the parsed log level.
func (c *Config) LogLevel() log.Level {
	lvl, err := log.ParseLevel(c.Log.Level)
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}

// Load reads path, applies defaults and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	c := &Config{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	default:
		err = toml.Unmarshal(data, c)
	}
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidInput, err, "parse %s", path)
	}
	c.SetDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadOrDefault loads path when it exists and returns defaults otherwise.
// An empty path means [DefaultPath].
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return Load(path)
}

// Write encodes c as TOML to path.
func Write(path string, c *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := toml.NewEncoder(f).Encode(c); err != nil {
		f.Close()
		return fmt.Errorf("encode config: %w", err)
	}
	return f.Close()
}

// DefaultPath is $XDG_CONFIG_HOME/stratum/config.toml.
func DefaultPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "stratum", "config.toml")
}

func cacheHome() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return dir
	}
	return os.TempDir()
}
