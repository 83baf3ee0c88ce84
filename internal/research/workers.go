package research

import (
	"context"
	"fmt"
	"strings"
	"time"

	"inquest/internal/cache"
	"inquest/internal/graph"
	"inquest/internal/jsonx"
	"inquest/internal/ledger"
	"inquest/internal/state"
	"inquest/internal/trust"
)

// Node IDs of the research workflow.
const (
	NodeProfile     = "company_profile"
	NodeFinancial   = "financial"
	NodeNews        = "news"
	NodeSentiment   = "sentiment"
	NodeCompetitive = "competitive"
	NodeSynthesis   = "synthesis"
)

// workerDelta assembles the common delta fields every worker produces.
func workerDelta(worker string, led *ledger.Ledger, sources []state.Source, trustScore float64) state.Delta {
	d := state.Delta{
		ReasoningChains: state.Dict[[]ledger.Step]{worker: led.Steps()},
		TrustScores:     state.Dict[float64]{worker: trustScore},
	}
	if len(sources) > 0 {
		d.Sources = state.Dict[[]state.Source]{worker: sources}
	}
	if trust.FlagLowConfidence(scoredSources(sources), trust.DefaultLowConfidenceThreshold) {
		d.Warnings = state.List[string]{fmt.Sprintf("%s: low confidence in gathered sources", worker)}
	}
	return d
}

// cachedResult is the per-worker payload persisted in the cache.
type cachedResult[T any] struct {
	Data       T              `json:"data"`
	Sources    []state.Source `json:"sources"`
	TrustScore float64        `json:"trust_score"`
}

// ProfileNode builds the entry worker: it resolves who the subject is.
func (s *Service) ProfileNode() graph.Node {
	return graph.Node{ID: NodeProfile, Run: s.runProfile}
}

type profilePayload struct {
	CompanyName  string   `json:"company_name"`
	Ticker       string   `json:"ticker"`
	Website      string   `json:"website"`
	Industry     string   `json:"industry"`
	Sector       string   `json:"sector"`
	Founded      string   `json:"founded"`
	Headquarters string   `json:"headquarters"`
	Employees    string   `json:"employees"`
	Description  string   `json:"description"`
	Products     []string `json:"products"`
	Confidence   float64  `json:"confidence"`
}

func (s *Service) runProfile(ctx context.Context, snap *state.ResearchState) (state.Delta, error) {
	led := ledger.New(NodeProfile)
	key := cacheKey(NodeProfile, snap)

	if hit, ok := cacheGet[state.ProfileData](s, key); ok {
		_, _ = led.AddStep("reuse cached profile", "cache entry within freshness window",
			[]string{"re-fetch", "reuse"}, "reuse", 0.9)
		d := workerDelta(NodeProfile, led, hit.Sources, hit.TrustScore)
		d.Profile = &hit.Data
		return d, nil
	}

	k := knobs(snap)
	docs, sources, err := s.gatherSources(ctx, snap.Subject+" company profile overview", k.ProfileMaxSources)
	if err != nil {
		return state.Delta{}, err
	}
	if len(docs) == 0 {
		return state.Delta{}, fmt.Errorf("no profile evidence found for %q", snap.Subject)
	}
	_, _ = led.AddSourceSelection("company profile", sourceURLs(sources), sources[0].URL,
		"highest-trust sources within mode budget", aggregateTrust(sources))

	prompt := fmt.Sprintf(`You are researching the company %q%s.
Using ONLY the evidence below, extract the company profile.
Respond with a single JSON object:
{"company_name": "", "ticker": "", "website": "", "industry": "", "sector": "",
 "founded": "", "headquarters": "", "employees": "", "description": "",
 "products": [], "confidence": 0.0}
Leave unknown fields empty. confidence is your 0-1 extraction confidence.

Evidence:
%s`, snap.Subject, tickerHint(snap), s.evidenceBlock(ctx, docs, "company profile"))

	payload, err := jsonxDecode[profilePayload](ctx, s, prompt)
	if err != nil {
		return state.Delta{}, err
	}

	if payload.CompanyName != "" && !strings.EqualFold(payload.CompanyName, snap.Subject) {
		// The evidence may describe a different entity with a similar name.
		_, _ = led.AddDisambiguation(snap.Subject,
			[]string{snap.Subject, payload.CompanyName}, payload.CompanyName,
			"evidence consistently names this entity", clamp01(payload.Confidence))
	}

	profile := &state.ProfileData{
		CompanyName: state.NewTrustedValue(payload.CompanyName, sources, ""),
		Products:    payload.Products,
	}
	setOptional(&profile.Ticker, payload.Ticker, sources)
	setOptional(&profile.Website, payload.Website, sources)
	setOptional(&profile.Industry, payload.Industry, sources)
	setOptional(&profile.Sector, payload.Sector, sources)
	setOptional(&profile.Founded, payload.Founded, sources)
	setOptional(&profile.Headquarters, payload.Headquarters, sources)
	setOptional(&profile.Employees, payload.Employees, sources)
	setOptional(&profile.Description, payload.Description, sources)

	score := aggregateTrust(sources)
	_, _ = led.AddStep("extract company profile", "structured extraction over gathered evidence",
		nil, "extracted", clamp01(payload.Confidence))

	cacheSet(s, key, cachedResult[state.ProfileData]{Data: *profile, Sources: sources, TrustScore: score})

	d := workerDelta(NodeProfile, led, sources, score)
	d.Profile = profile
	return d, nil
}

// FinancialNode builds the financial research worker.
func (s *Service) FinancialNode() graph.Node {
	return graph.Node{ID: NodeFinancial, Run: s.runFinancial}
}

type financialPayload struct {
	FiscalYear      string            `json:"fiscal_year"`
	Revenue         string            `json:"revenue"`
	RevenueBySource []sourcedValue    `json:"revenue_by_source"`
	NetIncome       string            `json:"net_income"`
	TotalAssets     string            `json:"total_assets"`
	KeyMetrics      map[string]string `json:"key_metrics"`
	FinancialHealth string            `json:"financial_health"`
	Risks           []string          `json:"risks"`
	Confidence      float64           `json:"confidence"`
}

// sourcedValue attributes one extracted value to the numbered evidence
// source it came from, so contradictions can be resolved by trust.
type sourcedValue struct {
	Source int    `json:"source"`
	Value  string `json:"value"`
}

func (s *Service) runFinancial(ctx context.Context, snap *state.ResearchState) (state.Delta, error) {
	led := ledger.New(NodeFinancial)
	key := cacheKey(NodeFinancial, snap)

	if hit, ok := cacheGet[state.FinancialData](s, key); ok {
		_, _ = led.AddStep("reuse cached financials", "cache entry within freshness window",
			[]string{"re-fetch", "reuse"}, "reuse", 0.9)
		d := workerDelta(NodeFinancial, led, hit.Sources, hit.TrustScore)
		d.Financial = &hit.Data
		return d, nil
	}

	k := knobs(snap)
	docs, sources, err := s.gatherSources(ctx,
		fmt.Sprintf("%s financial results revenue filing", snap.Subject), k.FinancialMaxSections)
	if err != nil {
		return state.Delta{}, err
	}
	if len(docs) == 0 {
		return state.Delta{}, fmt.Errorf("no financial evidence found for %q", snap.Subject)
	}
	_, _ = led.AddSourceSelection("financial data", sourceURLs(sources), sources[0].URL,
		"filings and top-tier outlets preferred", aggregateTrust(sources))

	prompt := fmt.Sprintf(`Extract financial data for %q covering the last %d fiscal year(s),
using ONLY the numbered evidence below. Respond with a single JSON object:
{"fiscal_year": "", "revenue": "",
 "revenue_by_source": [{"source": 1, "value": ""}],
 "net_income": "", "total_assets": "", "key_metrics": {},
 "financial_health": "", "risks": [], "confidence": 0.0}
revenue_by_source must list the revenue figure each source states, by its
[Source N] number. Keep exact figures; never round or generalize.

Evidence:
%s`, snap.Subject, k.FinancialYearsBack, s.evidenceBlock(ctx, docs, "financial report"))

	payload, err := jsonxDecode[financialPayload](ctx, s, prompt)
	if err != nil {
		return state.Delta{}, err
	}

	var ambiguities state.List[state.Ambiguity]
	revenue := payload.Revenue
	rationale := ""
	if vals, srcs := alignSourcedValues(payload.RevenueBySource, sources); len(vals) > 1 && distinct(vals) {
		value, confidence, why := trust.ResolveContradiction(srcs, vals)
		if v, ok := value.(string); ok && v != "" {
			revenue = v
		}
		rationale = why
		_, _ = led.AddContradictionResolution("revenue", toStrings(vals), revenue, why, clamp01(confidence))
		if confidence < 0.7 {
			ambiguities = append(ambiguities, state.Ambiguity{
				Worker: NodeFinancial,
				Field:  "revenue",
				Detail: why,
			})
		}
	}

	fin := &state.FinancialData{
		FiscalYear: state.NewTrustedValue(payload.FiscalYear, sources, ""),
		Risks:      payload.Risks,
	}
	if revenue != "" {
		tv := state.NewTrustedValue(revenue, sources, rationale)
		fin.Revenue = &tv
	}
	setOptional(&fin.NetIncome, payload.NetIncome, sources)
	setOptional(&fin.TotalAssets, payload.TotalAssets, sources)
	setOptional(&fin.FinancialHealth, payload.FinancialHealth, sources)
	if len(payload.KeyMetrics) > 0 {
		fin.KeyMetrics = make(map[string]state.TrustedValue, len(payload.KeyMetrics))
		for name, v := range payload.KeyMetrics {
			fin.KeyMetrics[name] = state.NewTrustedValue(v, sources, "")
		}
	}

	score := aggregateTrust(sources)
	_, _ = led.AddStep("extract financial data", "structured extraction with per-source revenue attribution",
		nil, "extracted", clamp01(payload.Confidence))

	cacheSet(s, key, cachedResult[state.FinancialData]{Data: *fin, Sources: sources, TrustScore: score})

	d := workerDelta(NodeFinancial, led, sources, score)
	d.Financial = fin
	d.Ambiguities = ambiguities
	return d, nil
}

// NewsNode builds the news intelligence worker.
func (s *Service) NewsNode() graph.Node {
	return graph.Node{ID: NodeNews, Run: s.runNews}
}

type newsPayload struct {
	Articles []struct {
		Date     string  `json:"date"`
		Title    string  `json:"title"`
		Summary  string  `json:"summary"`
		Source   int     `json:"source"`
		Category string  `json:"category"`
		Weight   float64 `json:"significance"`
	} `json:"articles"`
	Confidence float64 `json:"confidence"`
}

func (s *Service) runNews(ctx context.Context, snap *state.ResearchState) (state.Delta, error) {
	led := ledger.New(NodeNews)
	key := cacheKey(NodeNews, snap)

	if hit, ok := cacheGet[state.NewsData](s, key); ok {
		_, _ = led.AddStep("reuse cached news", "cache entry within freshness window",
			[]string{"re-fetch", "reuse"}, "reuse", 0.9)
		d := workerDelta(NodeNews, led, hit.Sources, hit.TrustScore)
		d.News = &hit.Data
		return d, nil
	}

	k := knobs(snap)
	docs, sources, err := s.gatherSources(ctx,
		fmt.Sprintf("%s news announcement", snap.Subject), k.NewsMaxArticles)
	if err != nil {
		return state.Delta{}, err
	}
	if len(docs) == 0 {
		return state.Delta{}, fmt.Errorf("no news evidence found for %q", snap.Subject)
	}
	_, _ = led.AddSourceSelection("news coverage", sourceURLs(sources), sources[0].URL,
		fmt.Sprintf("coverage within the last %d months", k.NewsMonthsBack), aggregateTrust(sources))

	prompt := fmt.Sprintf(`Summarize news coverage of %q from the numbered evidence below
(at most %d articles, last %d months). Respond with a single JSON object:
{"articles": [{"date": "", "title": "", "summary": "", "source": 1,
  "category": "", "significance": 0.0}], "confidence": 0.0}
source is the [Source N] number the article came from.

Evidence:
%s`, snap.Subject, k.NewsMaxArticles, k.NewsMonthsBack, s.evidenceBlock(ctx, docs, "news coverage"))

	payload, err := jsonxDecode[newsPayload](ctx, s, prompt)
	if err != nil {
		return state.Delta{}, err
	}

	news := &state.NewsData{Categories: make(map[string]int)}
	for _, a := range payload.Articles {
		src := state.Source{URL: "", Type: trust.TypeNews, AccessedAt: time.Now().UTC(), TrustScore: 0.5}
		if a.Source >= 1 && a.Source <= len(sources) {
			src = sources[a.Source-1]
		}
		news.Articles = append(news.Articles, state.NewsArticle{
			Date:         a.Date,
			Title:        a.Title,
			Summary:      a.Summary,
			Source:       src,
			Category:     a.Category,
			Significance: a.Weight,
		})
		if a.Category != "" {
			news.Categories[a.Category]++
		}
	}
	news.TotalArticles = len(news.Articles)

	score := aggregateTrust(sources)
	_, _ = led.AddStep("extract news timeline", "article extraction with source attribution",
		nil, "extracted", clamp01(payload.Confidence))

	cacheSet(s, key, cachedResult[state.NewsData]{Data: *news, Sources: sources, TrustScore: score})

	d := workerDelta(NodeNews, led, sources, score)
	d.News = news
	return d, nil
}

// SentimentNode analyzes tone over the news worker's articles; it fetches
// nothing itself and is the optional branch of the synthesis barrier.
func (s *Service) SentimentNode() graph.Node {
	return graph.Node{ID: NodeSentiment, Run: s.runSentiment}
}

type sentimentPayload struct {
	Overall      string             `json:"overall_sentiment"`
	Score        float64            `json:"sentiment_score"`
	Distribution map[string]float64 `json:"distribution"`
	Themes       []string           `json:"themes"`
	Confidence   float64            `json:"confidence"`
}

func (s *Service) runSentiment(ctx context.Context, snap *state.ResearchState) (state.Delta, error) {
	led := ledger.New(NodeSentiment)

	if snap.News == nil || len(snap.News.Articles) == 0 {
		return state.Delta{
			Warnings: state.List[string]{"sentiment: no news articles to analyze"},
		}, nil
	}

	k := knobs(snap)
	articles := snap.News.Articles
	if len(articles) > k.SentimentSampleSize {
		articles = articles[:k.SentimentSampleSize]
	}

	var b strings.Builder
	var sources []state.Source
	for _, a := range articles {
		fmt.Fprintf(&b, "- [%s] %s: %s\n", a.Date, a.Title, a.Summary)
		sources = append(sources, a.Source)
	}

	prompt := fmt.Sprintf(`Analyze the sentiment toward %q in these article summaries.
Respond with a single JSON object:
{"overall_sentiment": "positive|negative|neutral|mixed", "sentiment_score": 0.0,
 "distribution": {"positive": 0.0, "negative": 0.0, "neutral": 0.0},
 "themes": [], "confidence": 0.0}
sentiment_score ranges -1.0 (hostile) to 1.0 (glowing).

Articles:
%s`, snap.Subject, b.String())

	payload, err := jsonxDecode[sentimentPayload](ctx, s, prompt)
	if err != nil {
		return state.Delta{}, err
	}

	sent := &state.SentimentData{
		Overall:      state.NewTrustedValue(payload.Overall, sources, ""),
		Score:        payload.Score,
		Distribution: payload.Distribution,
		Themes:       payload.Themes,
	}
	_, _ = led.AddStep("classify sentiment", "aggregated over sampled news articles",
		[]string{"positive", "negative", "neutral", "mixed"}, payload.Overall, clamp01(payload.Confidence))

	d := workerDelta(NodeSentiment, led, sources, aggregateTrust(sources))
	d.Sentiment = sent
	return d, nil
}

// CompetitiveNode builds the market-intelligence worker.
func (s *Service) CompetitiveNode() graph.Node {
	return graph.Node{ID: NodeCompetitive, Run: s.runCompetitive}
}

type competitivePayload struct {
	Competitors []struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Position    string `json:"market_position"`
		Reasoning   string `json:"reasoning"`
	} `json:"competitors"`
	MarketSize  string              `json:"market_size"`
	Trends      []string            `json:"market_trends"`
	SWOT        map[string][]string `json:"swot"`
	Positioning string              `json:"positioning"`
	Confidence  float64             `json:"confidence"`
}

func (s *Service) runCompetitive(ctx context.Context, snap *state.ResearchState) (state.Delta, error) {
	led := ledger.New(NodeCompetitive)
	key := cacheKey(NodeCompetitive, snap)

	if hit, ok := cacheGet[state.CompetitiveData](s, key); ok {
		_, _ = led.AddStep("reuse cached competitive analysis", "cache entry within freshness window",
			[]string{"re-fetch", "reuse"}, "reuse", 0.9)
		d := workerDelta(NodeCompetitive, led, hit.Sources, hit.TrustScore)
		d.Competitive = &hit.Data
		return d, nil
	}

	k := knobs(snap)
	docs, sources, err := s.gatherSources(ctx,
		fmt.Sprintf("%s competitors market share industry", snap.Subject), k.CompetitiveMaxCompetitors)
	if err != nil {
		return state.Delta{}, err
	}
	if len(docs) == 0 {
		return state.Delta{}, fmt.Errorf("no competitive evidence found for %q", snap.Subject)
	}
	_, _ = led.AddSourceSelection("competitive landscape", sourceURLs(sources), sources[0].URL,
		"market analyses within mode budget", aggregateTrust(sources))

	swotClause := ""
	if k.CompetitiveDetailedSWOT {
		swotClause = `"swot": {"strengths": [], "weaknesses": [], "opportunities": [], "threats": []}, `
	}
	prompt := fmt.Sprintf(`Map the competitive landscape for %q from the evidence below
(at most %d competitors). Respond with a single JSON object:
{"competitors": [{"name": "", "description": "", "market_position": "", "reasoning": ""}],
 "market_size": "", "market_trends": [], %s"positioning": "", "confidence": 0.0}

Evidence:
%s`, snap.Subject, k.CompetitiveMaxCompetitors, swotClause, s.evidenceBlock(ctx, docs, "market analysis"))

	payload, err := jsonxDecode[competitivePayload](ctx, s, prompt)
	if err != nil {
		return state.Delta{}, err
	}

	comp := &state.CompetitiveData{
		MarketTrends: payload.Trends,
		SWOT:         payload.SWOT,
		Positioning:  payload.Positioning,
	}
	for _, c := range payload.Competitors {
		comp.Competitors = append(comp.Competitors, state.Competitor{
			Name:           c.Name,
			Description:    c.Description,
			MarketPosition: c.Position,
			Reasoning:      c.Reasoning,
		})
	}
	if payload.MarketSize != "" {
		tv := state.NewTrustedValue(payload.MarketSize, sources, "")
		comp.MarketSize = &tv
	}

	score := aggregateTrust(sources)
	_, _ = led.AddStep("map competitive landscape",
		fmt.Sprintf("identified %d competitors", len(comp.Competitors)),
		nil, "extracted", clamp01(payload.Confidence))

	cacheSet(s, key, cachedResult[state.CompetitiveData]{Data: *comp, Sources: sources, TrustScore: score})

	d := workerDelta(NodeCompetitive, led, sources, score)
	d.Competitive = comp
	return d, nil
}

// --- small helpers ---

func tickerHint(snap *state.ResearchState) string {
	if snap.Ticker == "" {
		return ""
	}
	return fmt.Sprintf(" (ticker %s)", snap.Ticker)
}

func sourceURLs(sources []state.Source) []string {
	out := make([]string, len(sources))
	for i, s := range sources {
		out[i] = s.URL
	}
	return out
}

func setOptional(dst **state.TrustedValue, value string, sources []state.Source) {
	if value == "" {
		return
	}
	tv := state.NewTrustedValue(value, sources, "")
	*dst = &tv
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// alignSourcedValues pairs LLM-attributed values with their sources,
// dropping entries whose source index is out of range.
func alignSourcedValues(vals []sourcedValue, sources []state.Source) ([]any, []trust.Scored) {
	var values []any
	var scored []trust.Scored
	for _, v := range vals {
		if v.Value == "" || v.Source < 1 || v.Source > len(sources) {
			continue
		}
		src := sources[v.Source-1]
		values = append(values, v.Value)
		scored = append(scored, trust.Scored{URL: src.URL, Type: src.Type, Score: src.TrustScore})
	}
	return values, scored
}

func distinct(vals []any) bool {
	seen := make(map[string]bool)
	for _, v := range vals {
		seen[fmt.Sprint(v)] = true
	}
	return len(seen) > 1
}

func toStrings(vals []any) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = fmt.Sprint(v)
	}
	return out
}

// cacheGet and cacheSet wrap the cache with the service TTL.
func cacheGet[T any](s *Service, key string) (*cachedResult[T], bool) {
	return cache.GetJSON[cachedResult[T]](s.Cache, key, s.CacheTTL)
}

func cacheSet[T any](s *Service, key string, v cachedResult[T]) {
	if !cache.SetJSON(s.Cache, key, v) {
		s.log.Warn("cache write skipped", "key", key)
	}
}

// jsonxDecode prompts the model and decodes the first JSON object in its
// reply into T.
func jsonxDecode[T any](ctx context.Context, s *Service, prompt string) (*T, error) {
	res := s.Invoker.Generate(ctx, prompt, 0.2, 2000)
	if !res.Success {
		return nil, fmt.Errorf("model generation failed: %w", res.Err)
	}
	return jsonx.Decode[T](res.Text)
}
