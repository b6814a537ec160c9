// Package cli implements the stratum command-line interface.
//
// Every command works on a project file (--project, default
// "stratum.json"): it is loaded into a registry, the command runs, and
// mutating commands write the file back.
//
// # Commands
//
//   - new: create an empty project
//   - layer, node: edit the layer stack and node graphs
//   - order: reorder layers, interactively when no ids are given
//   - tags: list published broadcast tags
//   - export: flatten the export sources to PNG
//   - graph: draw the project topology as DOT or SVG
//   - watch: re-export whenever the project file changes
//   - serve: expose the project over HTTP
//   - project: push and pull projects to the configured store
//   - cache, config, completion: housekeeping
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/stratum/pkg/buildinfo"
	"github.com/matzehuels/stratum/pkg/cache"
	"github.com/matzehuels/stratum/pkg/config"
	"github.com/matzehuels/stratum/pkg/document"
	"github.com/matzehuels/stratum/pkg/pipeline"
	"github.com/matzehuels/stratum/pkg/store"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "stratum"

	// defaultProject is the project file used when --project is not given.
	defaultProject = "stratum.json"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	project    string
	configPath string
	cfg        *config.Config
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level), project: defaultProject}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "Stratum composites layered terrain graphs",
		Long:         `Stratum builds terrain from a stack of layers. Each layer holds a graph of field-producing nodes; layers share fields through broadcast tags, and the export flattens selected outputs into one heightmap.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.config()
			if err != nil {
				return err
			}
			c.SetLogLevel(cfg.LogLevel())
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVarP(&c.project, "project", "p", defaultProject, "project file")
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/stratum/config.toml)")

	root.AddCommand(c.newCommand())
	root.AddCommand(c.layerCommand())
	root.AddCommand(c.nodeCommand())
	root.AddCommand(c.orderCommand())
	root.AddCommand(c.tagsCommand())
	root.AddCommand(c.exportCommand())
	root.AddCommand(c.graphCommand())
	root.AddCommand(c.watchCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.projectCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.configCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// config loads the configuration once.
func (c *CLI) config() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	cfg, err := config.LoadOrDefault(c.configPath)
	if err != nil {
		return nil, err
	}
	c.cfg = cfg
	return cfg, nil
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner creates a pipeline runner for CLI use.
func (c *CLI) newRunner(ctx context.Context, noCache bool) (*pipeline.Runner, error) {
	cfg, err := c.config()
	if err != nil {
		return nil, err
	}
	ch, err := newCache(ctx, cfg, noCache, c.Logger)
	if err != nil {
		return nil, err
	}
	// Keys are scoped by document format version.
	r := pipeline.NewRunner(ch, cache.NewScopedKeyer(nil, "v"+document.Version+":"), c.Logger)
	r.TTL = cfg.Cache.TTL.Duration
	return r, nil
}

// newCache opens the configured cache. An unreachable Redis falls back to
// no caching with a warning.
func newCache(ctx context.Context, cfg *config.Config, noCache bool, logger *log.Logger) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	switch cfg.Cache.Backend {
	case config.CacheNone:
		return cache.NewNullCache(), nil
	case config.CacheRedis:
		rc, err := cache.NewRedisCache(ctx, cache.RedisOptions{
			Addr:   cfg.Cache.RedisAddr,
			DB:     cfg.Cache.RedisDB,
			Prefix: cfg.Cache.Prefix,
		})
		if err != nil {
			logger.Warn("redis unavailable, caching disabled", "addr", cfg.Cache.RedisAddr, "err", err)
			return cache.NewNullCache(), nil
		}
		return rc, nil
	}
	return cache.NewFileCache(cfg.Cache.Dir)
}

// newStore opens the configured project store.
func (c *CLI) newStore(ctx context.Context) (store.Store, error) {
	cfg, err := c.config()
	if err != nil {
		return nil, err
	}
	if cfg.Store.Backend == config.StoreMongo {
		return store.NewMongoStore(ctx, store.MongoOptions{
			URI:        cfg.Store.MongoURI,
			Database:   cfg.Store.Database,
			Collection: cfg.Store.Collection,
		}, c.Logger)
	}
	dir := cfg.Store.Dir
	if dir == "" {
		if dir, err = dataDir(); err != nil {
			return nil, fmt.Errorf("get data dir: %w", err)
		}
	}
	return store.NewFileStore(dir, c.Logger)
}

// =============================================================================
// Paths
// =============================================================================

// dataDir returns the project store directory using the XDG standard
// (~/.local/share/stratum/projects).
func dataDir() (string, error) {
	if dataHome := os.Getenv("XDG_DATA_HOME"); dataHome != "" {
		return filepath.Join(dataHome, appName, "projects"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share", appName, "projects"), nil
}
