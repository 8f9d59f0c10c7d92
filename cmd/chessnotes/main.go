// Command chessnotes runs the chess notes bridge and its one-shot tools.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/freeeve/chessnotes/internal/archive"
	"github.com/freeeve/chessnotes/internal/config"
	"github.com/freeeve/chessnotes/internal/eco"
	"github.com/freeeve/chessnotes/internal/gameimport"
	"github.com/freeeve/chessnotes/internal/logx"
	"github.com/freeeve/chessnotes/internal/vault"
)

var (
	cfgFile string
	v       = config.New()

	rootCmd = &cobra.Command{
		Use:           "chessnotes",
		Short:         "Import chess games into a notes vault and analyze them with a UCI engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.chessnotes/config.toml)")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.String("vault", "", "vault directory")
	pf.String("engine", "", "path to the UCI engine binary")
	_ = v.BindPFlag("log_level", pf.Lookup("log-level"))
	_ = v.BindPFlag("vault_dir", pf.Lookup("vault"))
	_ = v.BindPFlag("engine.path", pf.Lookup("engine"))

	rootCmd.AddCommand(serveCmd, importCmd, analyzeCmd, reviewCmd, graphCmd, archiveCmd)
}

// setup loads configuration and builds the logger every command starts with.
func setup() (config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(v, cfgFile)
	if err != nil {
		return config.Config{}, zerolog.Nop(), err
	}
	return cfg, logx.NewLogger(cfg.LogLevel), nil
}

func openVault(cfg config.Config, logger zerolog.Logger) (*vault.Store, error) {
	return vault.NewStore(vault.Config{Dir: cfg.VaultDir, Logger: logger})
}

// loadOpenings returns nil when no ECO directory is configured or it fails to load.
func loadOpenings(cfg config.Config, logger zerolog.Logger) *eco.Database {
	if cfg.Import.ECODir == "" {
		return nil
	}
	db := eco.NewDatabase()
	if err := db.LoadDir(cfg.Import.ECODir); err != nil {
		logger.Warn().Err(err).Str("dir", cfg.Import.ECODir).Msg("failed to load ECO database")
		return nil
	}
	logger.Info().Int("openings", db.Count()).Msg("ECO database loaded")
	return db
}

func newFetcher(cfg config.Config, openings *eco.Database, logger zerolog.Logger) *gameimport.Fetcher {
	return gameimport.NewFetcher(gameimport.Config{
		UserAgent: cfg.Import.UserAgent,
		Timeout:   cfg.Import.Timeout,
		Openings:  openings,
		Logger:    logger,
	})
}

// openArchive returns nil when archiving is disabled.
func openArchive(cfg config.Config, logger zerolog.Logger) (*archive.Archive, error) {
	if cfg.Import.ArchivePath == "" {
		return nil, nil
	}
	return archive.Open(archive.Config{Path: cfg.Import.ArchivePath, Logger: logger})
}
