// Package chunk splits oversized documents into overlapping segments and
// summarizes them with a map-reduce pass over an injected model callable.
package chunk

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"inquest/internal/logging"
)

// Token estimation is a deliberate approximation: ~4 characters per token
// for English text. A real tokenizer would be more accurate but drags in a
// model-specific dependency; the slack in DefaultMaxTokens absorbs the error.
const charsPerToken = 4

const (
	DefaultMaxTokens     = 6000
	DefaultOverlapTokens = 500
)

// Chunk is one contiguous segment of a source document. Text is
// Overlap + the segment body; the body is exactly the source slice
// [Start:End), so stripping each chunk's Overlap prefix and concatenating
// the remainders reproduces the original document.
type Chunk struct {
	Text            string
	Index           int
	Total           int
	Start           int
	End             int
	Overlap         string
	EstimatedTokens int
}

// Chunker splits text on paragraph boundaries, falling back to sentence
// boundaries for paragraphs that exceed the limit on their own.
type Chunker struct {
	maxTokens     int
	overlapTokens int
	maxChars      int
	overlapChars  int
	log           *slog.Logger
}

func New(maxTokens, overlapTokens int) *Chunker {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	if overlapTokens < 0 {
		overlapTokens = DefaultOverlapTokens
	}
	return &Chunker{
		maxTokens:     maxTokens,
		overlapTokens: overlapTokens,
		maxChars:      maxTokens * charsPerToken,
		overlapChars:  overlapTokens * charsPerToken,
		log:           logging.New("chunk"),
	}
}

// EstimateTokens approximates the token count of text.
func (c *Chunker) EstimateTokens(text string) int {
	return len(text) / charsPerToken
}

var (
	paragraphSep = regexp.MustCompile(`\n\n+`)
	sentenceSep  = regexp.MustCompile(`[.!?]\s+`)
)

// Split chunks text into overlapping segments. Text at or under the limit
// comes back as a single chunk with no overlap.
func (c *Chunker) Split(text string) []Chunk {
	if text == "" {
		return nil
	}

	tokens := c.EstimateTokens(text)
	if tokens <= c.maxTokens {
		return []Chunk{{
			Text:            text,
			Index:           0,
			Total:           1,
			Start:           0,
			End:             len(text),
			EstimatedTokens: tokens,
		}}
	}
	c.log.Info("chunking oversized text", "estimated_tokens", tokens, "max_tokens", c.maxTokens)

	spans := c.spans(text)
	cuts := c.pack(spans)

	chunks := make([]Chunk, 0, len(cuts))
	for i, cut := range cuts {
		body := text[cut.start:cut.end]
		var overlap string
		if i > 0 {
			overlap = c.overlapOf(text[cuts[i-1].start:cuts[i-1].end])
		}
		full := overlap + body
		chunks = append(chunks, Chunk{
			Text:            full,
			Index:           i,
			Total:           len(cuts),
			Start:           cut.start,
			End:             cut.end,
			Overlap:         overlap,
			EstimatedTokens: c.EstimateTokens(full),
		})
	}
	c.log.Info("created chunks", "count", len(chunks))
	return chunks
}

type span struct{ start, end int }

// spans cuts text into contiguous paragraph spans; any paragraph longer
// than the chunk limit is further cut into sentence spans. Separators stay
// attached to the preceding span so the spans tile the text exactly.
func (c *Chunker) spans(text string) []span {
	var out []span
	for _, p := range tile(text, paragraphSep) {
		if p.end-p.start <= c.maxChars {
			out = append(out, p)
			continue
		}
		out = append(out, tile(text[p.start:p.end], sentenceSep).offset(p.start)...)
	}
	return out
}

// pack greedily accumulates spans into chunks of at most maxChars. A single
// span over the limit (one unbroken sentence) becomes its own oversized
// chunk rather than being cut mid-word.
func (c *Chunker) pack(spans []span) []span {
	var cuts []span
	cur := span{start: spans[0].start, end: spans[0].start}
	for _, s := range spans {
		if cur.end > cur.start && (s.end-cur.start) > c.maxChars {
			cuts = append(cuts, cur)
			cur = span{start: s.start, end: s.start}
		}
		cur.end = s.end
	}
	if cur.end > cur.start {
		cuts = append(cuts, cur)
	}
	return cuts
}

// overlapOf takes the tail of the previous chunk body as the next chunk's
// context window, snapped forward to the sentence boundary nearest the tail
// start when one sits past the window midpoint.
func (c *Chunker) overlapOf(prev string) string {
	if c.overlapChars == 0 {
		return ""
	}
	if len(prev) <= c.overlapChars {
		return prev
	}
	tail := prev[len(prev)-c.overlapChars:]
	if idx := strings.LastIndex(tail, ". "); idx > c.overlapChars/2 {
		tail = tail[idx+2:]
	}
	return tail
}

type spanList []span

func (l spanList) offset(by int) []span {
	out := make([]span, len(l))
	for i, s := range l {
		out[i] = span{start: s.start + by, end: s.end + by}
	}
	return out
}

// tile splits text at every separator match, keeping each separator with
// the span before it, so the returned spans cover every byte of text.
func tile(text string, sep *regexp.Regexp) spanList {
	var out spanList
	start := 0
	for _, m := range sep.FindAllStringIndex(text, -1) {
		if m[1] >= len(text) {
			break
		}
		out = append(out, span{start: start, end: m[1]})
		start = m[1]
	}
	if start < len(text) {
		out = append(out, span{start: start, end: len(text)})
	}
	return out
}

// GenerateFunc is the injected model callable used by ChunkAndSummarize.
// It decouples the chunker from any particular provider stack.
type GenerateFunc func(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error)

// ChunkAndSummarize reduces an oversized document to a summary via
// map-reduce: each chunk is summarized independently, the summaries are
// concatenated, and if the concatenation still exceeds the limit exactly one
// further reduction pass runs. Text already under the limit is returned
// unchanged.
func (c *Chunker) ChunkAndSummarize(ctx context.Context, text string, generate GenerateFunc, topic string) string {
	chunks := c.Split(text)
	if len(chunks) <= 1 {
		return text
	}
	c.log.Info("summarizing chunks", "count", len(chunks), "topic", topic)

	var summaries []string
	for _, ch := range chunks {
		prompt := fmt.Sprintf(`Summarize the following section of a %s (chunk %d/%d).
IMPORTANT: Preserve all specific financial figures, numbers, and tables.
Do not generalize numerical data. If you see a table, keep its key values.

%s

Provide a data-rich summary of the key points and specific figures in this section.`,
			topic, ch.Index+1, ch.Total, ch.Text)

		out, err := generate(ctx, prompt, 0.3, 1000)
		if err != nil {
			c.log.Warn("chunk summary failed", "chunk", ch.Index+1, "total", ch.Total, "error", err)
			continue
		}
		summaries = append(summaries, fmt.Sprintf("Section %d:\n%s", ch.Index+1, strings.TrimSpace(out)))
	}

	if len(summaries) == 0 {
		if len(text) > 10000 {
			return text[:10000]
		}
		return text
	}

	combined := strings.Join(summaries, "\n\n")
	if c.EstimateTokens(combined) <= c.maxTokens {
		return combined
	}

	// One bounded reduce pass, never recursive.
	c.log.Info("combined summaries over limit, running final reduction")
	prompt := fmt.Sprintf(`The following are summaries of different sections of a %s.
Create a comprehensive final summary that captures all key information.

%s

Provide a cohesive summary of the entire document.`, topic, combined)

	out, err := generate(ctx, prompt, 0.3, 2000)
	if err != nil {
		c.log.Warn("final reduction failed", "error", err)
		return combined
	}
	return strings.TrimSpace(out)
}
