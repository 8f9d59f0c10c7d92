package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/freeeve/chessnotes/internal/layout"
	"github.com/freeeve/chessnotes/internal/vault"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Lay out the note link graph and print node positions as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		store, err := openVault(cfg, logger)
		if err != nil {
			return err
		}
		ids, edges, err := vault.Graph(store)
		if err != nil {
			return err
		}

		lcfg := layout.DefaultConfig(cfg.Graph.Width, cfg.Graph.Height)
		lcfg.Logger = logger
		eng := layout.NewEngine(lcfg)
		eng.SetGraph(ids, edges)
		ticks, converged := eng.Settle()
		logger.Info().Int("nodes", len(ids)).Int("edges", len(edges)).Int("ticks", ticks).Bool("converged", converged).Msg("layout settled")

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Nodes []layout.Node `json:"nodes"`
			Edges []layout.Edge `json:"edges"`
		}{eng.Snapshot(), edges})
	},
}
