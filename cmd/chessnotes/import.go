package main

import (
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/freeeve/chessnotes/internal/gameimport"
)

var (
	importFolder string
	importPrint  bool
)

var importCmd = &cobra.Command{
	Use:   "import <url>...",
	Short: "Fetch lichess.org or chess.com games and save them as notes",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, urls []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		for _, u := range urls {
			if !gameimport.IsGameURL(u) {
				return fmt.Errorf("%w: %s", gameimport.ErrUnrecognizedURL, u)
			}
		}
		folder := cfg.Import.Folder
		if cmd.Flags().Changed("folder") {
			folder = importFolder
		}

		fetcher := newFetcher(cfg, loadOpenings(cfg, logger), logger)
		store, err := openVault(cfg, logger)
		if err != nil {
			return err
		}
		arch, err := openArchive(cfg, logger)
		if err != nil {
			return err
		}
		if arch != nil {
			defer arch.Close()
		}

		records := make([]*gameimport.GameRecord, len(urls))
		var mu sync.Mutex // guards archive appends
		g, ctx := errgroup.WithContext(cmd.Context())
		g.SetLimit(cfg.Import.Workers)
		for i, u := range urls {
			g.Go(func() error {
				rec, err := fetcher.Fetch(ctx, u)
				if err != nil {
					return fmt.Errorf("%s: %w", u, err)
				}
				records[i] = rec
				if arch != nil {
					mu.Lock()
					defer mu.Unlock()
					if err := arch.Append(rec.PGN); err != nil {
						logger.Warn().Err(err).Str("game", rec.GameID).Msg("archive append failed")
					}
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, rec := range records {
			if importPrint {
				fmt.Fprintln(out, rec.PGN)
				continue
			}
			rel := path.Join(strings.Trim(folder, "/"), gameimport.NoteTitle(rec)+".md")
			saved, err := store.Create(rel, gameimport.NoteBody(rec))
			if err != nil {
				return err
			}
			fmt.Fprintln(out, saved)
		}
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importFolder, "folder", "", "vault folder for the notes (default from config)")
	importCmd.Flags().BoolVar(&importPrint, "print", false, "print the PGN instead of saving notes")
}
