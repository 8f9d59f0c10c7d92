package main

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/freeeve/chessnotes/internal/archive"
	"github.com/freeeve/chessnotes/internal/config"
	"github.com/freeeve/chessnotes/internal/gameimport"
)

var (
	archiveLimit  int
	restoreFolder string
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Inspect the compressed archive of imported games",
}

var archiveListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived games",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		file, err := archivePath(cfg)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "DATE\tWHITE\tBLACK\tRESULT\tPLIES\tSITE")
		n := 0
		err = archive.Games(file, func(s archive.Summary) bool {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
				s.Tags["Date"], s.Tags["White"], s.Tags["Black"], s.Tags["Result"], s.Plies, s.Tags["Site"])
			n++
			return archiveLimit <= 0 || n < archiveLimit
		})
		if err != nil {
			return fmt.Errorf("read archive: %w", err)
		}
		logger.Debug().Str("archive", file).Int("games", n).Msg("archive listed")
		return tw.Flush()
	},
}

var archiveExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Print every archived game as PGN",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := setup()
		if err != nil {
			return err
		}
		file, err := archivePath(cfg)
		if err != nil {
			return err
		}
		docs, err := archive.ReadAll(file)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, doc := range docs {
			fmt.Fprintln(out, doc)
			fmt.Fprintln(out)
		}
		return nil
	},
}

var archiveRestoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Write a note for every archived game",
	Long: `Write a note for every archived game. Existing notes are never
overwritten: a game whose title is taken is saved as "<title> (2).md".`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		file, err := archivePath(cfg)
		if err != nil {
			return err
		}
		folder := cfg.Import.Folder
		if cmd.Flags().Changed("folder") {
			folder = restoreFolder
		}
		store, err := openVault(cfg, logger)
		if err != nil {
			return err
		}
		docs, err := archive.ReadAll(file)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, doc := range docs {
			rec := gameimport.RecordFromPGN(doc)
			rel := path.Join(strings.Trim(folder, "/"), gameimport.NoteTitle(rec)+".md")
			saved, err := store.Create(rel, gameimport.NoteBody(rec))
			if err != nil {
				return err
			}
			fmt.Fprintln(out, saved)
		}
		logger.Info().Str("archive", file).Int("games", len(docs)).Msg("archive restored")
		return nil
	},
}

func archivePath(cfg config.Config) (string, error) {
	if cfg.Import.ArchivePath == "" {
		return "", errors.New("no archive configured (set import.archive_path)")
	}
	return cfg.Import.ArchivePath, nil
}

func init() {
	archiveListCmd.Flags().IntVar(&archiveLimit, "limit", 0, "stop after this many games (0 lists all)")
	archiveRestoreCmd.Flags().StringVar(&restoreFolder, "folder", "", "vault folder for the notes (default from config)")
	archiveCmd.AddCommand(archiveListCmd, archiveExportCmd, archiveRestoreCmd)
}
