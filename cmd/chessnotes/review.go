package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/freeeve/chessnotes/internal/pgnfmt"
	"github.com/freeeve/chessnotes/internal/review"
	"github.com/freeeve/chessnotes/internal/vault"
)

var (
	reviewDepth    int
	reviewNote     bool
	reviewAnnotate bool
)

var reviewCmd = &cobra.Command{
	Use:   "review <file.pgn | note.md>",
	Short: "Evaluate every move of a game and flag inaccuracies, mistakes and blunders",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}

		var text string
		if reviewNote {
			store, err := openVault(cfg, logger)
			if err != nil {
				return err
			}
			if text, err = store.Read(args[0]); err != nil {
				return err
			}
		} else {
			b, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			text = string(b)
		}
		if strings.EqualFold(filepath.Ext(args[0]), ".md") {
			blocks := vault.PGNBlocks(text)
			if len(blocks) == 0 {
				return errors.New("note has no pgn code block")
			}
			text = blocks[0]
		}

		san, result := pgnfmt.SplitMoveText(text)
		if len(san) == 0 {
			return errors.New("no moves to review")
		}
		if reviewDepth <= 0 {
			reviewDepth = cfg.Engine.ReviewDepth
		}

		ev, err := review.NewEngineEvaluator(review.EngineConfig{
			Path:    cfg.Engine.Path,
			HashMB:  cfg.Engine.HashMB,
			Threads: cfg.Engine.Threads,
			Logger:  logger,
		})
		if err != nil {
			return err
		}
		defer ev.Close()

		plies, err := review.NewReviewer(review.Config{
			Evaluator: ev,
			Depth:     reviewDepth,
			Logger:    logger,
		}).Review(cmd.Context(), pgnfmt.ParseHeaders(text)["FEN"], san)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if reviewAnnotate {
			fmt.Fprintln(out, review.Annotate(plies, result))
			return nil
		}
		for _, p := range plies {
			mover := "white"
			if p.Ply%2 == 0 {
				mover = "black"
			}
			fmt.Fprintf(out, "%3d %-5s %-8s %7s", p.Ply, mover, p.SAN+p.Judgement.Suffix(), review.FormatEval(p.Eval))
			if p.Judgement != review.JudgementNone {
				fmt.Fprintf(out, "  %s (-%d)", p.Judgement, p.Loss)
			}
			fmt.Fprintln(out)
		}
		return nil
	},
}

func init() {
	reviewCmd.Flags().IntVar(&reviewDepth, "depth", 0, "search depth per ply (default from config)")
	reviewCmd.Flags().BoolVar(&reviewNote, "note", false, "read the game from a vault note path instead of a file")
	reviewCmd.Flags().BoolVar(&reviewAnnotate, "annotate", false, "print PGN move text with [%eval] comments")
}
