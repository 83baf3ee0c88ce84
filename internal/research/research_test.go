package research

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"inquest/internal/cache"
	"inquest/internal/graph"
	"inquest/internal/invoke"
	"inquest/internal/state"
	"inquest/internal/trust"
)

// scriptedProvider answers each worker prompt with canned JSON so runs are
// deterministic end to end.
type scriptedProvider struct {
	mu    sync.Mutex
	calls []string
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Generate(_ context.Context, _, prompt string, _ float64, _ int) (string, error) {
	p.mu.Lock()
	p.calls = append(p.calls, prompt)
	p.mu.Unlock()

	switch {
	case strings.Contains(prompt, "extract the company profile"):
		return `{"company_name": "Acme Corp", "ticker": "ACME", "industry": "Robotics",
			"description": "Makes everything.", "products": ["anvils", "rockets"],
			"confidence": 0.9}`, nil
	case strings.Contains(prompt, "Extract financial data"):
		return `{"fiscal_year": "2025", "revenue": "$10B",
			"revenue_by_source": [{"source": 1, "value": "$10B"}, {"source": 2, "value": "$9B"}],
			"net_income": "$1B", "financial_health": "stable", "confidence": 0.85}`, nil
	case strings.Contains(prompt, "Summarize news coverage"):
		return `{"articles": [
			{"date": "2026-07-01", "title": "Acme ships rockets", "summary": "Big launch.",
			 "source": 1, "category": "product", "significance": 0.8},
			{"date": "2026-06-15", "title": "Acme earnings beat", "summary": "Strong quarter.",
			 "source": 2, "category": "financial", "significance": 0.9}],
			"confidence": 0.8}`, nil
	case strings.Contains(prompt, "Analyze the sentiment"):
		return `{"overall_sentiment": "positive", "sentiment_score": 0.6,
			"distribution": {"positive": 0.7, "negative": 0.1, "neutral": 0.2},
			"themes": ["growth"], "confidence": 0.75}`, nil
	case strings.Contains(prompt, "competitive landscape"):
		return `{"competitors": [{"name": "Globex", "market_position": "challenger"}],
			"market_size": "$100B", "market_trends": ["automation"],
			"positioning": "leader", "confidence": 0.7}`, nil
	case strings.Contains(prompt, "Write a research report"):
		return "# Acme Corp Research Report\n\nExecutive summary goes here.", nil
	case strings.Contains(prompt, "Review this draft"):
		return "# Acme Corp Research Report (revised)\n\nTighter summary.", nil
	default:
		return "", nil
	}
}

func (p *scriptedProvider) prompts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

type countingFetcher struct {
	inner Fetcher
	mu    sync.Mutex
	n     int
}

func (f *countingFetcher) Fetch(ctx context.Context, query string, limit int) ([]Document, error) {
	f.mu.Lock()
	f.n++
	f.mu.Unlock()
	return f.inner.Fetch(ctx, query, limit)
}

func (f *countingFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.n
}

func testCorpus() []Document {
	return []Document{
		{URL: "https://sec.gov/acme-10k", Title: "Acme Corp 10-K filing", Type: trust.TypeFiling,
			Content: "Acme Corp annual report. Revenue of $10B for fiscal 2025. Financial results."},
		{URL: "https://acme.example.com/about", Title: "Acme Corp company profile overview", Type: trust.TypeOfficial,
			Content: "Acme Corp builds robotics. Company profile: founded 1952, HQ in Phoenix."},
		{URL: "https://reuters.com/acme-q2", Title: "Acme news announcement earnings", Type: trust.TypeNews,
			Content: "Acme reported revenue of $9B, sources said. News of a strong quarter."},
		{URL: "https://techblog.example.net/acme", Title: "Acme competitors market share industry", Type: trust.TypeOther,
			Content: "Acme versus Globex in the industrial robotics market share race."},
	}
}

func newTestService(t *testing.T) (*Service, *scriptedProvider, *countingFetcher) {
	t.Helper()
	provider := &scriptedProvider{}
	inv := invoke.New(time.Millisecond, invoke.Spec{
		Provider:   provider,
		Model:      "scripted-1",
		MaxRetries: 1,
	})
	fetcher := &countingFetcher{inner: &StaticFetcher{Docs: testCorpus()}}
	svc := NewService(inv, fetcher, cache.NewMem(), nil, time.Hour)
	return svc, provider, fetcher
}

func TestRunFastMode(t *testing.T) {
	svc, provider, _ := newTestService(t)

	final, err := Run(context.Background(), svc, "Acme Corp", "ACME", state.ModeFast)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	for _, id := range []string{NodeProfile, NodeFinancial, NodeNews, NodeCompetitive, NodeSynthesis} {
		if !final.HasCompleted(id) {
			t.Errorf("node %s did not complete; completed=%v", id, final.CompletedNodes)
		}
	}
	if final.HasCompleted(NodeSentiment) {
		t.Errorf("sentiment ran in fast mode; completed=%v", final.CompletedNodes)
	}
	if final.Sentiment != nil {
		t.Error("fast mode produced sentiment data")
	}

	if final.Profile == nil || final.Profile.CompanyName.Value != "Acme Corp" {
		t.Errorf("profile = %+v", final.Profile)
	}
	if final.Financial == nil || final.Financial.Revenue == nil {
		t.Fatalf("financial = %+v", final.Financial)
	}
	// Filing trust (1.0) outweighs the news outlet (0.85): $10B wins.
	if got := final.Financial.Revenue.Value; got != "$10B" {
		t.Errorf("revenue = %q, want $10B", got)
	}
	if final.Synthesis == "" {
		t.Error("no synthesis report produced")
	}
	if len(final.Errors) != 0 {
		t.Errorf("unexpected errors: %v", final.Errors)
	}
	if final.FinishedAt.IsZero() {
		t.Error("FinishedAt not set")
	}

	// Each worker leaves a reasoning chain behind.
	for _, id := range []string{NodeProfile, NodeFinancial, NodeNews, NodeCompetitive, NodeSynthesis} {
		if len(final.ReasoningChains[id]) == 0 {
			t.Errorf("no reasoning chain for %s", id)
		}
	}

	// Synthesis runs exactly once.
	count := 0
	for _, id := range final.CompletedNodes {
		if id == NodeSynthesis {
			count++
		}
	}
	if count != 1 {
		t.Errorf("synthesis completed %d times, want 1", count)
	}

	// Fast mode is single-pass synthesis.
	for _, p := range provider.prompts() {
		if strings.Contains(p, "Review this draft") {
			t.Error("fast mode ran a refinement pass")
		}
	}
}

func TestRunDeepModeIncludesSentiment(t *testing.T) {
	svc, provider, _ := newTestService(t)

	final, err := Run(context.Background(), svc, "Acme Corp", "ACME", state.ModeDeep)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !final.HasCompleted(NodeSentiment) {
		t.Fatalf("sentiment did not run in deep mode; completed=%v", final.CompletedNodes)
	}
	if final.Sentiment == nil || final.Sentiment.Overall.Value != "positive" {
		t.Errorf("sentiment = %+v", final.Sentiment)
	}
	if final.Sentiment != nil && final.Sentiment.Score != 0.6 {
		t.Errorf("sentiment score = %v, want 0.6", final.Sentiment.Score)
	}

	refined := false
	for _, p := range provider.prompts() {
		if strings.Contains(p, "Review this draft") {
			refined = true
		}
	}
	if !refined {
		t.Error("deep mode skipped the synthesis refinement pass")
	}
}

func TestRunReusesCache(t *testing.T) {
	svc, _, fetcher := newTestService(t)
	ctx := context.Background()

	if _, err := Run(ctx, svc, "Acme Corp", "ACME", state.ModeFast); err != nil {
		t.Fatalf("first run: %v", err)
	}
	first := fetcher.count()
	if first == 0 {
		t.Fatal("first run fetched nothing")
	}

	final, err := Run(ctx, svc, "Acme Corp", "ACME", state.ModeFast)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if got := fetcher.count(); got != first {
		t.Errorf("second run fetched %d more times; cache not used", got-first)
	}
	if final.Profile == nil || final.Profile.CompanyName.Value != "Acme Corp" {
		t.Errorf("cached profile = %+v", final.Profile)
	}
	if final.Synthesis == "" {
		t.Error("cached run produced no synthesis")
	}
}

func TestFinancialContradictionRecorded(t *testing.T) {
	svc, _, _ := newTestService(t)

	final, err := Run(context.Background(), svc, "Acme Corp", "ACME", state.ModeFast)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	var found bool
	for _, step := range final.ReasoningChains[NodeFinancial] {
		if strings.Contains(step.Decision, "revenue") && len(step.Alternatives) == 2 {
			found = true
			if step.Chosen != "$10B" {
				t.Errorf("contradiction resolved to %q, want $10B", step.Chosen)
			}
		}
	}
	if !found {
		t.Errorf("no contradiction-resolution step in %+v", final.ReasoningChains[NodeFinancial])
	}
}

func TestWorkerErrorSurfacesInState(t *testing.T) {
	provider := &scriptedProvider{}
	inv := invoke.New(time.Millisecond, invoke.Spec{Provider: provider, Model: "scripted-1", MaxRetries: 1})
	// Empty corpus: every fetching worker fails with "no ... evidence".
	svc := NewService(inv, &StaticFetcher{}, cache.Nop{}, nil, time.Hour)

	final, err := Run(context.Background(), svc, "Acme Corp", "", state.ModeFast)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(final.Errors) == 0 {
		t.Fatal("expected worker errors in state")
	}
	// Failed branches still count as completed so the barrier releases.
	if !final.HasCompleted(NodeSynthesis) {
		t.Errorf("synthesis blocked by failed branches; completed=%v", final.CompletedNodes)
	}
}

func TestRunFailsWithoutProviders(t *testing.T) {
	svc := NewService(invoke.New(time.Second), &StaticFetcher{Docs: testCorpus()}, cache.Nop{}, nil, time.Hour)
	_, err := Run(context.Background(), svc, "Acme Corp", "", state.ModeFast)
	if !errors.Is(err, invoke.ErrNoProviders) {
		t.Errorf("err = %v, want ErrNoProviders", err)
	}
}

func TestStaticFetcherRanksByQueryTerms(t *testing.T) {
	f := &StaticFetcher{Docs: testCorpus()}
	docs, err := f.Fetch(context.Background(), "Acme financial results revenue filing", 2)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("got %d docs, want 2", len(docs))
	}
	if docs[0].URL != "https://sec.gov/acme-10k" {
		t.Errorf("top doc = %s, want the 10-K filing", docs[0].URL)
	}
}

func TestBuildGraphShape(t *testing.T) {
	svc, _, _ := newTestService(t)
	g, err := Build(svc, graph.WithMaxParallel(2))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if g == nil {
		t.Fatal("Build returned nil graph")
	}
}
