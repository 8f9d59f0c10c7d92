// Package config loads chessnotes settings from a config file, environment
// variables (CHESSNOTES_*) and flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the environment variable prefix, e.g. CHESSNOTES_ENGINE_PATH.
const EnvPrefix = "CHESSNOTES"

// Engine configures the UCI engine process.
type Engine struct {
	Path         string        `mapstructure:"path"`
	HashMB       int           `mapstructure:"hash_mb"`
	Threads      int           `mapstructure:"threads"`
	InitTimeout  time.Duration `mapstructure:"init_timeout"`
	SettleDelay  time.Duration `mapstructure:"settle_delay"`
	DefaultDepth int           `mapstructure:"default_depth"`
	ReviewDepth  int           `mapstructure:"review_depth"`
}

// Import configures game fetching.
type Import struct {
	UserAgent   string        `mapstructure:"user_agent"`
	Timeout     time.Duration `mapstructure:"timeout"`
	ArchivePath string        `mapstructure:"archive_path"`
	ECODir      string        `mapstructure:"eco_dir"`
	Folder      string        `mapstructure:"folder"`
	Workers     int           `mapstructure:"workers"`
}

// Ingest configures the drop-folder PGN importer. An empty WatchDir disables it.
type Ingest struct {
	WatchDir     string        `mapstructure:"watch_dir"`
	ProcessedDir string        `mapstructure:"processed_dir"`
	RatingMin    int           `mapstructure:"rating_min"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// Graph configures the default layout viewport.
type Graph struct {
	Width  float64 `mapstructure:"width"`
	Height float64 `mapstructure:"height"`
}

// Config is the full application configuration.
type Config struct {
	VaultDir string `mapstructure:"vault_dir"`
	Addr     string `mapstructure:"addr"`
	LogLevel string `mapstructure:"log_level"`
	SearchDB string `mapstructure:"search_db"`
	Debug    bool   `mapstructure:"debug"`

	Engine Engine `mapstructure:"engine"`
	Import Import `mapstructure:"import"`
	Ingest Ingest `mapstructure:"ingest"`
	Graph  Graph  `mapstructure:"graph"`
}

// New returns a viper instance with defaults and environment binding set up.
func New() *viper.Viper {
	v := viper.New()
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	base := filepath.Join(home, ".chessnotes")

	v.SetDefault("vault_dir", filepath.Join(base, "vault"))
	v.SetDefault("addr", "127.0.0.1:7317")
	v.SetDefault("log_level", "info")
	v.SetDefault("search_db", filepath.Join(base, "search.db"))
	v.SetDefault("debug", false)

	v.SetDefault("engine.path", "stockfish")
	v.SetDefault("engine.hash_mb", 64)
	v.SetDefault("engine.threads", 0)
	v.SetDefault("engine.init_timeout", "10s")
	v.SetDefault("engine.settle_delay", "100ms")
	v.SetDefault("engine.default_depth", 20)
	v.SetDefault("engine.review_depth", 14)

	v.SetDefault("import.user_agent", "chessnotes/1.0")
	v.SetDefault("import.timeout", "30s")
	v.SetDefault("import.archive_path", filepath.Join(base, "games.pgn.zst"))
	v.SetDefault("import.eco_dir", "")
	v.SetDefault("import.folder", "games")
	v.SetDefault("import.workers", 4)

	v.SetDefault("ingest.watch_dir", "")
	v.SetDefault("ingest.processed_dir", "")
	v.SetDefault("ingest.rating_min", 0)
	v.SetDefault("ingest.poll_interval", "10s")

	v.SetDefault("graph.width", 800)
	v.SetDefault("graph.height", 600)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the config file at path into v (when path is empty it looks
// for config.{toml,yaml,json} in ~/.chessnotes and the working directory,
// and a missing file is not an error), then decodes the result.
func Load(v *viper.Viper, path string) (Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".chessnotes"))
		}
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that have no usable fallback.
func (c Config) Validate() error {
	switch {
	case c.VaultDir == "":
		return errors.New("config: vault_dir is required")
	case c.Engine.HashMB < 0:
		return errors.New("config: engine.hash_mb must not be negative")
	case c.Import.Workers < 1:
		return errors.New("config: import.workers must be at least 1")
	case c.Ingest.RatingMin < 0:
		return errors.New("config: ingest.rating_min must not be negative")
	case c.Graph.Width <= 0 || c.Graph.Height <= 0:
		return errors.New("config: graph.width and graph.height must be positive")
	}
	return nil
}
