package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "Show the configured model provider chain",
	RunE:  runProviders,
}

func runProviders(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Provider chain (fallback order):")
	for i, p := range cfg.Providers {
		status := "no key"
		if p.APIKey != "" {
			status = "ready"
		}
		fmt.Fprintf(out, "  %d. %-10s %-28s [%s]", i+1, p.Name, p.Model, status)
		if p.FallbackModel != "" {
			fmt.Fprintf(out, " fallback=%s", p.FallbackModel)
		}
		fmt.Fprintln(out)
	}
	if ready := cfg.ConfiguredProviders(); len(ready) == 0 {
		fmt.Fprintln(out, "\nNo provider is ready. Set an API key env var (e.g. GOOGLE_API_KEY).")
	}
	return nil
}
