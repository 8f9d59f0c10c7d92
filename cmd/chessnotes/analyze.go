package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/freeeve/chessnotes/internal/uciengine"
)

var (
	analyzeDepth   int
	analyzeMultiPV int
	analyzeJSON    bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <fen>",
	Short: "Run one engine search and print the result from White's point of view",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		fen := strings.TrimSpace(args[0])
		if analyzeDepth <= 0 {
			analyzeDepth = cfg.Engine.DefaultDepth
		}

		session := uciengine.NewSession(uciengine.Config{
			Launcher:     uciengine.ExecLauncher{Path: cfg.Engine.Path},
			HashMB:       cfg.Engine.HashMB,
			Threads:      cfg.Engine.Threads,
			InitTimeout:  cfg.Engine.InitTimeout,
			SettleDelay:  cfg.Engine.SettleDelay,
			DefaultDepth: cfg.Engine.DefaultDepth,
			OnUpdate: func(u uciengine.Update) {
				logger.Debug().Int("depth", u.Analysis.Depth).Int("score", u.Analysis.Score).Msg("info")
			},
			Logger: logger,
		})
		defer session.Destroy()

		a, err := session.Analyze(cmd.Context(), fen, analyzeDepth, analyzeMultiPV)
		if err != nil {
			return err
		}
		pov := a.WhitePOV()

		out := cmd.OutOrStdout()
		if analyzeJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(pov)
		}
		fmt.Fprintf(out, "bestmove %s  depth %d\n", pov.BestMove, pov.Depth)
		for _, l := range pov.Lines {
			fmt.Fprintf(out, "%d. %-8s %s\n", l.MultiPV, formatScore(l.Score, l.Mate), strings.Join(l.PV, " "))
		}
		return nil
	},
}

func formatScore(cp int, mate *int) string {
	if mate != nil {
		return fmt.Sprintf("#%d", *mate)
	}
	return fmt.Sprintf("%+.2f", float64(cp)/100)
}

func init() {
	analyzeCmd.Flags().IntVar(&analyzeDepth, "depth", 0, "search depth (default from config)")
	analyzeCmd.Flags().IntVar(&analyzeMultiPV, "multipv", 1, "number of lines to report (1-5)")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "print the analysis as JSON")
}
