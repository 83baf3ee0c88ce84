package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"inquest/internal/invoke"
	"inquest/internal/state"
	"inquest/internal/trust"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, tc := range cases {
		if got := parseLevel(tc.in); got != tc.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestLoadCorpus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.json")
	data := `[
		{"url": "https://sec.gov/x-10k", "title": "X 10-K", "type": "filing", "content": "Revenue of $1B."},
		{"url": "https://x.example.com", "title": "About X", "type": "official", "content": "X builds widgets."}
	]`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	f, err := loadCorpus(path)
	if err != nil {
		t.Fatalf("loadCorpus: %v", err)
	}
	if len(f.Docs) != 2 {
		t.Fatalf("got %d docs, want 2", len(f.Docs))
	}
	if f.Docs[0].Type != trust.TypeFiling {
		t.Errorf("doc type = %q, want filing", f.Docs[0].Type)
	}
}

func TestLoadCorpusRejectsBadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadCorpus(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestPrintReport(t *testing.T) {
	final := state.New("run-1", "X Corp", "X", state.ModeFast)
	final.Synthesis = "# X Corp Report"
	final.TrustScores["financial"] = 0.93
	final.Warnings = append(final.Warnings, "news: low confidence in gathered sources")
	final.FinishedAt = final.StartedAt.Add(3 * time.Second)

	var b strings.Builder
	printReport(&b, final, invoke.New(time.Second))
	out := b.String()

	for _, want := range []string{"# X Corp Report", "run-1", "fast mode", "financial", "0.93", "low confidence"} {
		if !strings.Contains(out, want) {
			t.Errorf("report output missing %q:\n%s", want, out)
		}
	}
}
