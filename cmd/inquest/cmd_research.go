package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"inquest/internal/graph"
	"inquest/internal/research"
	"inquest/internal/state"
)

var researchFlags struct {
	ticker     string
	mode       string
	corpusPath string
	jsonOut    bool
}

var researchCmd = &cobra.Command{
	Use:   "research <subject>",
	Short: "Run the research workflow for a company",
	Args:  cobra.ExactArgs(1),
	RunE:  runResearch,
}

func init() {
	f := researchCmd.Flags()
	f.StringVar(&researchFlags.ticker, "ticker", "", "Stock ticker hint")
	f.StringVar(&researchFlags.mode, "mode", "fast", "Research depth: fast or deep")
	f.StringVar(&researchFlags.corpusPath, "corpus", "", "JSON evidence corpus file (required)")
	f.BoolVar(&researchFlags.jsonOut, "json", false, "Print the full final state as JSON")

	_ = researchCmd.MarkFlagRequired("corpus")
}

func runResearch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	mode := state.Mode(researchFlags.mode)
	if mode != state.ModeFast && mode != state.ModeDeep {
		return fmt.Errorf("invalid mode %q: want fast or deep", researchFlags.mode)
	}

	ctx := cmd.Context()
	inv, err := buildInvoker(ctx, cfg)
	if err != nil {
		return err
	}
	fetcher, err := loadCorpus(researchFlags.corpusPath)
	if err != nil {
		return err
	}
	c, closeCache, err := buildCache(cfg)
	if err != nil {
		return err
	}
	defer closeCache()

	svc := research.NewService(inv, fetcher, c, newChunker(cfg), cfg.CacheTTL.Std())
	final, err := research.Run(ctx, svc, args[0], researchFlags.ticker, mode,
		graph.WithMaxParallel(cfg.MaxParallel),
		graph.WithNodeTimeout(cfg.NodeTimeout.Std()),
		graph.WithObserver(graph.NewSlogObserver()),
	)
	if err != nil {
		return fmt.Errorf("research run: %w", err)
	}

	out := cmd.OutOrStdout()
	if researchFlags.jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(final)
	}
	printReport(out, final, inv)
	return nil
}
