// Package research implements the company-research workers and wires them
// into a workflow graph: a profile entry node fans out into financial, news
// and competitive branches, news feeds sentiment in deep mode, and a barrier
// gates the synthesis join.
package research

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"inquest/internal/cache"
	"inquest/internal/chunk"
	"inquest/internal/config"
	"inquest/internal/invoke"
	"inquest/internal/logging"
	"inquest/internal/state"
	"inquest/internal/trust"
)

// Document is one fetched piece of evidence.
type Document struct {
	URL     string
	Title   string
	Type    trust.SourceType
	Content string
}

// Fetcher retrieves candidate evidence for a query. Implementations decide
// where evidence comes from; workers only consume the documents.
type Fetcher interface {
	Fetch(ctx context.Context, query string, limit int) ([]Document, error)
}

// Service bundles the collaborators every worker needs. It is constructed
// once at process start and passed explicitly; there are no package-level
// singletons.
type Service struct {
	Invoker  *invoke.Invoker
	Fetcher  Fetcher
	Cache    cache.Cache
	Chunker  *chunk.Chunker
	CacheTTL time.Duration

	log *slog.Logger
}

func NewService(inv *invoke.Invoker, fetcher Fetcher, c cache.Cache, chunker *chunk.Chunker, cacheTTL time.Duration) *Service {
	if c == nil {
		c = cache.Nop{}
	}
	return &Service{
		Invoker:  inv,
		Fetcher:  fetcher,
		Cache:    c,
		Chunker:  chunker,
		CacheTTL: cacheTTL,
		log:      logging.New("research"),
	}
}

// generate adapts the invoker to the chunker's injected-callable contract.
func (s *Service) generate(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error) {
	res := s.Invoker.Generate(ctx, prompt, temperature, maxTokens)
	if !res.Success {
		return "", fmt.Errorf("model generation failed: %w", res.Err)
	}
	return res.Text, nil
}

// gatherSources fetches and scores evidence for a worker query.
func (s *Service) gatherSources(ctx context.Context, query string, limit int) ([]Document, []state.Source, error) {
	docs, err := s.Fetcher.Fetch(ctx, query, limit)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch %q: %w", query, err)
	}
	sources := make([]state.Source, len(docs))
	for i, d := range docs {
		sources[i] = state.Source{
			URL:        d.URL,
			Title:      d.Title,
			Type:       d.Type,
			AccessedAt: time.Now().UTC(),
			TrustScore: trust.ScoreSource(d.URL, d.Type),
		}
	}
	return docs, sources, nil
}

// evidenceBlock renders documents for a prompt, compressing any document
// that exceeds the chunker limit through map-reduce summarization first.
func (s *Service) evidenceBlock(ctx context.Context, docs []Document, topic string) string {
	var b strings.Builder
	for i, d := range docs {
		content := d.Content
		if s.Chunker != nil && s.Chunker.EstimateTokens(content) > chunk.DefaultMaxTokens {
			content = s.Chunker.ChunkAndSummarize(ctx, content, s.generate, topic)
		}
		fmt.Fprintf(&b, "[Source %d] %s (%s)\n%s\n\n", i+1, d.Title, d.URL, content)
	}
	return b.String()
}

func aggregateTrust(sources []state.Source) float64 {
	scores := make([]float64, len(sources))
	for i, src := range sources {
		scores[i] = src.TrustScore
	}
	return trust.Aggregate(scores)
}

func scoredSources(sources []state.Source) []trust.Scored {
	out := make([]trust.Scored, len(sources))
	for i, src := range sources {
		out[i] = trust.Scored{URL: src.URL, Type: src.Type, Score: src.TrustScore}
	}
	return out
}

// cacheKey derives the per-worker cache key for a run's inputs.
func cacheKey(worker string, snap *state.ResearchState) string {
	return cache.Key(worker, snap.Subject, snap.Ticker, snap.Mode)
}

func knobs(snap *state.ResearchState) config.ModeKnobs {
	return config.KnobsFor(snap.Mode)
}

// StaticFetcher serves documents from a fixed corpus, matching queries
// against document titles and content. It backs demos and tests where
// deterministic evidence matters more than freshness.
type StaticFetcher struct {
	Docs []Document
}

func (f *StaticFetcher) Fetch(_ context.Context, query string, limit int) ([]Document, error) {
	terms := strings.Fields(strings.ToLower(query))
	type ranked struct {
		doc  Document
		hits int
	}
	var matches []ranked
	for _, d := range f.Docs {
		haystack := strings.ToLower(d.Title + " " + d.Content)
		hits := 0
		for _, t := range terms {
			if strings.Contains(haystack, t) {
				hits++
			}
		}
		if hits > 0 {
			matches = append(matches, ranked{doc: d, hits: hits})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].hits > matches[j].hits })
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	out := make([]Document, len(matches))
	for i, m := range matches {
		out[i] = m.doc
	}
	return out, nil
}
