package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/freeeve/chessnotes/internal/httpapi"
	"github.com/freeeve/chessnotes/internal/ingest"
	"github.com/freeeve/chessnotes/internal/layout"
	"github.com/freeeve/chessnotes/internal/review"
	"github.com/freeeve/chessnotes/internal/search"
	"github.com/freeeve/chessnotes/internal/uciengine"
	"github.com/freeeve/chessnotes/internal/vault"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local bridge the notes UI talks to",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		store, err := openVault(cfg, logger)
		if err != nil {
			return err
		}
		idx, err := search.Open(search.Config{Path: cfg.SearchDB, Logger: logger})
		if err != nil {
			return err
		}
		defer idx.Close()
		if _, err := idx.Rebuild(ctx, store); err != nil {
			logger.Warn().Err(err).Msg("initial index build failed")
		}
		notes := &indexingWriter{store: store, index: idx, log: logger}

		watcher, err := store.Watch()
		if err != nil {
			return err
		}
		defer watcher.Close()
		go reindex(ctx, store, idx, watcher, logger)

		session := uciengine.NewSession(uciengine.Config{
			Launcher:     uciengine.ExecLauncher{Path: cfg.Engine.Path},
			HashMB:       cfg.Engine.HashMB,
			Threads:      cfg.Engine.Threads,
			InitTimeout:  cfg.Engine.InitTimeout,
			SettleDelay:  cfg.Engine.SettleDelay,
			DefaultDepth: cfg.Engine.DefaultDepth,
			Logger:       logger,
		})
		defer session.Destroy()

		openings := loadOpenings(cfg, logger)
		lcfg := layout.DefaultConfig(cfg.Graph.Width, cfg.Graph.Height)
		lcfg.Logger = logger
		routes := httpapi.Config{
			Importer: newFetcher(cfg, openings, logger),
			Analyzer: session,
			Reviewer: review.NewReviewer(review.Config{
				Evaluator: review.SessionEvaluator{Session: session},
				Depth:     cfg.Engine.ReviewDepth,
				Logger:    logger,
			}),
			Searcher: idx,
			Notes:    notes,
			Graph:    func() ([]string, []layout.Edge, error) { return vault.Graph(store) },
			Layout:   layout.NewEngine(lcfg),
			Debug:    cfg.Debug,
			Logger:   logger,
		}

		arch, err := openArchive(cfg, logger)
		if err != nil {
			return err
		}
		ingestCfg := ingest.Config{
			WatchDir:     cfg.Ingest.WatchDir,
			ProcessedDir: cfg.Ingest.ProcessedDir,
			Folder:       cfg.Import.Folder,
			RatingMin:    cfg.Ingest.RatingMin,
			Workers:      cfg.Import.Workers,
			PollInterval: cfg.Ingest.PollInterval,
			Openings:     openings,
			Logger:       logger,
		}
		if arch != nil {
			defer arch.Close()
			logger.Info().Str("archive", arch.Path()).Msg("archiving imported games")
			routes.Archive = arch
			ingestCfg.Archive = arch
		}

		worker, err := ingest.NewWorker(ingestCfg, notes)
		if err != nil {
			return err
		}
		if worker != nil {
			go func() {
				if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error().Err(err).Msg("ingest worker stopped")
				}
			}()
		}

		srv := &http.Server{
			Addr:         cfg.Addr,
			Handler:      httpapi.NewRouter(routes),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 5 * time.Minute, // reviews run one search per ply
			IdleTimeout:  60 * time.Second,
		}
		errc := make(chan error, 1)
		go func() {
			logger.Info().Str("addr", srv.Addr).Str("vault", store.Root()).Msg("bridge listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errc <- err
			}
		}()

		select {
		case <-ctx.Done():
		case err := <-errc:
			return err
		}
		logger.Info().Msg("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("http server shutdown error")
		}
		logger.Info().Msg("shutdown complete")
		return nil
	},
}

// indexingWriter creates notes and indexes them right away; the watcher
// suppresses the store's own writes.
type indexingWriter struct {
	store *vault.Store
	index *search.Index
	log   zerolog.Logger
}

func (w *indexingWriter) Create(rel, text string) (string, error) {
	saved, err := w.store.Create(rel, text)
	if err != nil {
		return "", err
	}
	note, err := w.store.Note(saved)
	if err != nil {
		return "", err
	}
	if err := w.index.Upsert(context.Background(), note, text); err != nil {
		w.log.Warn().Err(err).Str("note", saved).Msg("index update failed")
	}
	return saved, nil
}

// reindex keeps the search index in step with edits made outside the bridge.
func reindex(ctx context.Context, store *vault.Store, idx *search.Index, w *vault.Watcher, logger zerolog.Logger) {
	for ev := range w.Events() {
		note, ok := store.NoteAt(ev.Path)
		if !ok {
			continue
		}
		var err error
		if ev.Kind == vault.EventDelete {
			err = idx.Remove(ctx, note.Path)
		} else {
			var body string
			if body, err = store.Read(note.Path); err == nil {
				err = idx.Upsert(ctx, note, body)
			}
		}
		if err != nil {
			logger.Warn().Err(err).Str("note", note.Path).Str("kind", string(ev.Kind)).Msg("reindex failed")
		}
	}
}
