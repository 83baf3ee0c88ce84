package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"inquest/internal/cache"
	"inquest/internal/chunk"
	"inquest/internal/config"
	"inquest/internal/invoke"
	"inquest/internal/logging"
	"inquest/internal/research"
	"inquest/internal/state"
	"inquest/internal/trust"
)

const timeRound = 10 * time.Millisecond

// loadConfig merges the config file with root-flag overrides and initializes
// logging.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(rootFlags.configPath)
	if err != nil {
		return nil, err
	}
	if rootFlags.logLevel != "" {
		cfg.LogLevel = rootFlags.logLevel
	}
	if rootFlags.logFormat != "" {
		cfg.LogFormat = rootFlags.logFormat
	}
	logging.Init(parseLevel(cfg.LogLevel), cfg.LogFormat)
	return cfg, nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// buildInvoker constructs the provider chain from configured (keyed)
// providers, preserving config order.
func buildInvoker(ctx context.Context, cfg *config.Config) (*invoke.Invoker, error) {
	var specs []invoke.Spec
	for _, p := range cfg.Providers {
		if p.APIKey == "" {
			continue
		}
		provider, err := buildProvider(ctx, p)
		if err != nil {
			return nil, err
		}
		specs = append(specs, invoke.Spec{
			Provider:      provider,
			Model:         p.Model,
			FallbackModel: p.FallbackModel,
			MaxRetries:    p.MaxRetries,
		})
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("no provider has an API key; set one of GOOGLE_API_KEY, ANTHROPIC_API_KEY, OPENAI_API_KEY")
	}
	return invoke.New(cfg.RetryBackoff.Std(), specs...), nil
}

func buildProvider(ctx context.Context, p config.Provider) (invoke.Provider, error) {
	switch p.Name {
	case "gemini":
		return invoke.NewGeminiProvider(ctx, p.APIKey)
	case "anthropic":
		return invoke.NewAnthropicProvider(p.APIKey), nil
	case "openai", "groq", "together":
		// groq and together speak the OpenAI chat-completions dialect.
		return invoke.NewOpenAIProvider(p.Name, p.APIKey, p.BaseURL), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", p.Name)
	}
}

// buildCache picks the SQLite layer when a path is configured.
func buildCache(cfg *config.Config) (cache.Cache, func(), error) {
	if cfg.CachePath == "" {
		return cache.NewMem(), func() {}, nil
	}
	sq, err := cache.OpenSQLite(cfg.CachePath)
	if err != nil {
		return nil, nil, fmt.Errorf("open cache: %w", err)
	}
	return sq, func() { _ = sq.Close() }, nil
}

// corpusDoc is the on-disk evidence document format for --corpus files.
type corpusDoc struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Type    string `json:"type"`
	Content string `json:"content"`
}

// loadCorpus reads a JSON evidence corpus into a deterministic fetcher.
func loadCorpus(path string) (*research.StaticFetcher, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read corpus: %w", err)
	}
	var raw []corpusDoc
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse corpus %s: %w", path, err)
	}
	docs := make([]research.Document, len(raw))
	for i, d := range raw {
		docs[i] = research.Document{
			URL:     d.URL,
			Title:   d.Title,
			Type:    trust.SourceType(d.Type),
			Content: d.Content,
		}
	}
	return &research.StaticFetcher{Docs: docs}, nil
}

func newChunker(cfg *config.Config) *chunk.Chunker {
	return chunk.New(cfg.Chunker.MaxTokens, cfg.Chunker.OverlapTokens)
}

// printReport renders the final state for humans.
func printReport(w io.Writer, final *state.ResearchState, inv *invoke.Invoker) {
	fmt.Fprintln(w, final.Synthesis)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Run:      %s (%s mode)\n", final.RunID, final.Mode)
	fmt.Fprintf(w, "Duration: %s\n", final.FinishedAt.Sub(final.StartedAt).Round(timeRound))

	if len(final.TrustScores) > 0 {
		fmt.Fprintln(w, "Trust scores:")
		for _, worker := range sortedKeys(final.TrustScores) {
			fmt.Fprintf(w, "  %-16s %.2f\n", worker, final.TrustScores[worker])
		}
	}
	if len(final.Warnings) > 0 {
		fmt.Fprintln(w, "Warnings:")
		for _, warn := range final.Warnings {
			fmt.Fprintf(w, "  - %s\n", warn)
		}
	}
	if len(final.Errors) > 0 {
		fmt.Fprintln(w, "Errors:")
		for _, e := range final.Errors {
			fmt.Fprintf(w, "  - %s\n", e)
		}
	}
	printUsage(w, inv)
}

func printUsage(w io.Writer, inv *invoke.Invoker) {
	stats := inv.Stats()
	if len(stats) == 0 {
		return
	}
	fmt.Fprintln(w, "Model usage:")
	for _, name := range sortedKeys(stats) {
		s := stats[name]
		fmt.Fprintf(w, "  %-16s %d calls, %d failures\n", name, s.Calls, s.Failures)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
