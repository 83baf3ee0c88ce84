package chunk

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

// buildDoc produces n paragraphs of multi-sentence filler text.
func buildDoc(n int) string {
	var paras []string
	for i := 0; i < n; i++ {
		paras = append(paras, fmt.Sprintf(
			"Paragraph %d opens with revenue of $%d million. Margins held at %d percent. Outlook remains steady.",
			i, 100+i, 20+i))
	}
	return strings.Join(paras, "\n\n")
}

func TestSplitSmallTextSingleChunk(t *testing.T) {
	c := New(DefaultMaxTokens, DefaultOverlapTokens)
	text := "Short filing note. Nothing to split."
	chunks := c.Split(text)
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if chunks[0].Text != text || chunks[0].Overlap != "" {
		t.Errorf("single chunk should be the text verbatim with no overlap")
	}
	if chunks[0].Start != 0 || chunks[0].End != len(text) {
		t.Errorf("span = [%d:%d], want [0:%d]", chunks[0].Start, chunks[0].End, len(text))
	}
}

func TestSplitEmptyText(t *testing.T) {
	if got := New(100, 10).Split(""); got != nil {
		t.Errorf("Split(\"\") = %v, want nil", got)
	}
}

func TestSplitOverlapRoundTrip(t *testing.T) {
	c := New(50, 10) // 200 chars per chunk, 40 char overlap
	text := buildDoc(12)
	chunks := c.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	// Stripping each chunk's overlap prefix and concatenating the bodies
	// must reproduce the source document exactly.
	var b strings.Builder
	for _, ch := range chunks {
		if !strings.HasPrefix(ch.Text, ch.Overlap) {
			t.Fatalf("chunk %d text does not start with its overlap", ch.Index)
		}
		b.WriteString(ch.Text[len(ch.Overlap):])
	}
	if b.String() != text {
		t.Error("de-duplicated chunk concatenation does not reproduce the source")
	}

	for i, ch := range chunks {
		if i > 0 && ch.Overlap == "" {
			t.Errorf("chunk %d missing overlap window", i)
		}
		if ch.Total != len(chunks) {
			t.Errorf("chunk %d Total = %d, want %d", i, ch.Total, len(chunks))
		}
	}
}

func TestSplitOversizedParagraphFallsToSentences(t *testing.T) {
	c := New(30, 5) // 120 chars max
	// One paragraph, well over the limit, with clear sentence boundaries.
	var sb strings.Builder
	for i := 0; i < 10; i++ {
		fmt.Fprintf(&sb, "Sentence number %d reports a figure of %d units. ", i, i*37)
	}
	text := strings.TrimSpace(sb.String())

	chunks := c.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected sentence-level split, got %d chunks", len(chunks))
	}
	var b strings.Builder
	for _, ch := range chunks {
		b.WriteString(ch.Text[len(ch.Overlap):])
	}
	if b.String() != text {
		t.Error("sentence-split chunks do not reproduce the source")
	}
}

func TestOverlapSnapsToSentenceBoundary(t *testing.T) {
	c := New(100, 10) // overlap window 40 chars
	// The 40-char tail window lands mid-x; the ". " boundary sits past the
	// window midpoint, so the overlap must snap forward to the sentence.
	prev := strings.Repeat("x", 200) + ". Short tail."
	got := c.overlapOf(prev)
	if got != "Short tail." {
		t.Errorf("overlap = %q, want %q", got, "Short tail.")
	}
	if !strings.HasSuffix(prev, got) {
		t.Errorf("overlap %q must be a suffix of the previous chunk", got)
	}
}

func TestEstimateTokens(t *testing.T) {
	c := New(100, 10)
	if got := c.EstimateTokens(strings.Repeat("a", 400)); got != 100 {
		t.Errorf("EstimateTokens = %d, want 100", got)
	}
}

func TestChunkAndSummarizeShortTextPassthrough(t *testing.T) {
	c := New(DefaultMaxTokens, DefaultOverlapTokens)
	text := "Fits in one chunk."
	called := false
	got := c.ChunkAndSummarize(context.Background(), text, func(context.Context, string, float64, int) (string, error) {
		called = true
		return "", nil
	}, "report")
	if got != text {
		t.Errorf("got %q, want passthrough", got)
	}
	if called {
		t.Error("model should not be invoked for single-chunk text")
	}
}

func TestChunkAndSummarizeMapReduce(t *testing.T) {
	c := New(50, 5)
	text := buildDoc(12)

	var calls int
	got := c.ChunkAndSummarize(context.Background(), text, func(_ context.Context, prompt string, _ float64, _ int) (string, error) {
		calls++
		if !strings.Contains(prompt, "Preserve all specific financial figures") {
			t.Error("map prompt missing data-preservation instruction")
		}
		return fmt.Sprintf("summary %d", calls), nil
	}, "annual report")

	want := len(c.Split(text))
	if calls != want {
		t.Errorf("model called %d times, want one per chunk (%d)", calls, want)
	}
	if !strings.Contains(got, "Section 1:") || !strings.Contains(got, "summary 1") {
		t.Errorf("combined summary malformed: %q", got)
	}
}

func TestChunkAndSummarizeSingleBoundedReducePass(t *testing.T) {
	c := New(50, 5)
	text := buildDoc(12)
	long := strings.Repeat("dense summary text. ", 40)

	var mapCalls, reduceCalls int
	got := c.ChunkAndSummarize(context.Background(), text, func(_ context.Context, prompt string, _ float64, _ int) (string, error) {
		if strings.Contains(prompt, "comprehensive final summary") {
			reduceCalls++
			return "final", nil
		}
		mapCalls++
		return long, nil
	}, "report")

	if reduceCalls != 1 {
		t.Errorf("reduce pass ran %d times, want exactly 1", reduceCalls)
	}
	if got != "final" {
		t.Errorf("got %q, want reduced summary", got)
	}
}

func TestChunkAndSummarizeAllFailuresTruncates(t *testing.T) {
	c := New(50, 5)
	text := buildDoc(12)
	got := c.ChunkAndSummarize(context.Background(), text, func(context.Context, string, float64, int) (string, error) {
		return "", errors.New("provider down")
	}, "report")
	if got != text && got != text[:10000] {
		t.Error("all-failure path should fall back to (truncated) source text")
	}
	if len(got) > 10000 && len(text) > 10000 {
		t.Errorf("fallback not truncated: %d chars", len(got))
	}
}
