// Package trust scores evidence sources and resolves contradictions
// between them. All functions are pure; the engine holds no state.
//
// Trust hierarchy:
//
//	0.9-1.0  official filings (SEC, SEDAR, Companies House), audited reports
//	0.7-0.9  major news outlets (Reuters, Bloomberg, FT, WSJ)
//	0.5-0.7  general news, industry publications
//	0.3-0.5  blogs, unverified sources, social aggregates
//	0.0-0.3  individual social posts, rumors
package trust

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// SourceType is the declared provenance class of a source.
type SourceType string

const (
	TypeOfficial SourceType = "official"
	TypeFiling   SourceType = "filing"
	TypeNews     SourceType = "news"
	TypeSocial   SourceType = "social"
	TypeResearch SourceType = "research"
	TypeOther    SourceType = "other"
)

// Bucket scores by category. Declared "news" maps to the tier-2 bucket;
// tier-1 status is only granted by the domain table.
const (
	scoreFiling    = 1.0
	scoreOfficial  = 0.95
	scoreResearch  = 0.85
	scoreNewsTier1 = 0.85
	scoreNewsTier2 = 0.65
	scoreBlog      = 0.4
	scoreSocial    = 0.2
	scoreUnknown   = 0.5
)

type domainEntry struct {
	category string
	score    float64
}

// trustedDomains maps a registered host (www. stripped) to its category
// and score. Exact-match lookup; subdomain hosts get their own entries.
var trustedDomains = map[string]domainEntry{
	// Regulatory / official
	"sec.gov":               {"filing", 1.0},
	"sedar.com":             {"filing", 1.0},
	"companieshouse.gov.uk": {"filing", 1.0},
	"annualreports.com":     {"official", 0.95},

	// Top-tier news
	"reuters.com":   {"news_tier1", 0.90},
	"bloomberg.com": {"news_tier1", 0.90},
	"ft.com":        {"news_tier1", 0.88},
	"wsj.com":       {"news_tier1", 0.88},
	"economist.com": {"news_tier1", 0.85},
	"apnews.com":    {"news_tier1", 0.85},
	"bbc.com":       {"news_tier1", 0.83},

	// Second-tier news
	"cnbc.com":            {"news_tier2", 0.75},
	"cnn.com":             {"news_tier2", 0.70},
	"forbes.com":          {"news_tier2", 0.70},
	"businessinsider.com": {"news_tier2", 0.65},
	"techcrunch.com":      {"news_tier2", 0.68},
	"theverge.com":        {"news_tier2", 0.65},
	"marketwatch.com":     {"news_tier2", 0.70},

	// Reference / research
	"wikipedia.org":      {"research", 0.75},
	"crunchbase.com":     {"research", 0.75},
	"linkedin.com":       {"official", 0.70},
	"finance.yahoo.com":  {"research", 0.75},
	"finance.google.com": {"research", 0.75},

	// Social (low trust)
	"twitter.com":  {"social", 0.25},
	"x.com":        {"social", 0.25},
	"reddit.com":   {"social", 0.30},
	"facebook.com": {"social", 0.20},
}

// ScoreSource scores a URL. The domain table wins when the host matches
// exactly; otherwise the declared type's bucket score applies; otherwise 0.5.
func ScoreSource(rawURL string, declared SourceType) float64 {
	if entry, ok := trustedDomains[hostOf(rawURL)]; ok {
		return entry.score
	}

	switch declared {
	case TypeFiling:
		return scoreFiling
	case TypeOfficial:
		return scoreOfficial
	case TypeResearch:
		return scoreResearch
	case TypeNews:
		return scoreNewsTier2
	case TypeSocial:
		return scoreSocial
	}
	return scoreUnknown
}

// Categorize returns the category label and score for a URL, applying
// domain heuristics when the table misses.
func Categorize(rawURL string) (string, float64) {
	host := hostOf(rawURL)
	if entry, ok := trustedDomains[host]; ok {
		return entry.category, entry.score
	}

	switch {
	case containsAny(host, "sec.gov", "edgar", "sedar", "companieshouse"):
		return "filing", scoreFiling
	case containsAny(host, "twitter", "facebook", "reddit", "instagram"):
		return "social", scoreSocial
	case containsAny(host, "blog", "wordpress", "medium.com"):
		return "blog", scoreBlog
	case containsAny(host, "news", "times", "post"):
		return "news_tier2", scoreNewsTier2
	}
	return "unknown", scoreUnknown
}

// Aggregate combines per-source scores into one value using sum(s^3)/sum(s^2).
// The cubic weighting deliberately amplifies high-trust sources: a single
// source reduces to its own score, and adding a higher-trust source can only
// raise the aggregate, never drag it below the minimum contributor.
func Aggregate(scores []float64) float64 {
	if len(scores) == 0 {
		return 0.0
	}
	var sumSq, sumCube float64
	for _, s := range scores {
		sumSq += s * s
		sumCube += s * s * s
	}
	if sumSq == 0 {
		var sum float64
		for _, s := range scores {
			sum += s
		}
		return sum / float64(len(scores))
	}
	return sumCube / sumSq
}

// Scored pairs a source with its trust score. A zero or negative Score
// means "not yet scored" and is derived from the URL and declared type.
type Scored struct {
	URL   string
	Type  SourceType
	Score float64
}

func (s Scored) score() float64 {
	if s.Score > 0 {
		return s.Score
	}
	return ScoreSource(s.URL, s.Type)
}

// ResolveContradiction picks one value among conflicting ones by weighted
// voting: sources are grouped by identical rendered value, member trust is
// summed per group, and the group with the highest total wins. Confidence is
// the winner's share of the total. Ties break to the first-encountered value
// in input order — an arbitrary but stable policy, kept as documented
// behavior.
func ResolveContradiction(sources []Scored, values []any) (any, float64, string) {
	if len(sources) == 0 || len(values) == 0 || len(sources) != len(values) {
		return nil, 0.0, "no valid sources or values provided"
	}

	if len(sources) == 1 {
		score := sources[0].score()
		return values[0], score, fmt.Sprintf("single source (trust: %.2f)", score)
	}

	type group struct {
		value      any
		totalTrust float64
		count      int
		firstIndex int
	}
	groups := make(map[string]*group)
	var order []string
	var totalAll float64

	for i, src := range sources {
		key := fmt.Sprint(values[i])
		score := src.score()
		totalAll += score
		g, ok := groups[key]
		if !ok {
			g = &group{value: values[i], firstIndex: i}
			groups[key] = g
			order = append(order, key)
		}
		g.totalTrust += score
		g.count++
	}

	if len(groups) == 1 {
		avg := totalAll / float64(len(sources))
		return values[0], avg, fmt.Sprintf("all %d sources agree (avg trust: %.2f)", len(sources), avg)
	}

	// Highest total trust wins; ties resolve to the earliest group.
	var best *group
	var bestKey string
	for _, key := range order {
		g := groups[key]
		if best == nil || g.totalTrust > best.totalTrust {
			best = g
			bestKey = key
		}
	}

	confidence := 0.5
	if totalAll > 0 {
		confidence = best.totalTrust / totalAll
	}

	var others []string
	for _, key := range order {
		if key != bestKey {
			others = append(others, key)
		}
	}
	sort.Strings(others)

	rationale := fmt.Sprintf(
		"resolved %q from %d conflicting values: %d source(s) with total trust %.2f vs alternatives %s (confidence %.2f)",
		bestKey, len(groups), best.count, best.totalTrust, strings.Join(others, ", "), confidence,
	)
	return best.value, confidence, rationale
}

// FlagLowConfidence reports whether the mean trust across sources falls
// below threshold. No sources at all is always low confidence.
func FlagLowConfidence(sources []Scored, threshold float64) bool {
	if len(sources) == 0 {
		return true
	}
	var total float64
	for _, s := range sources {
		total += s.score()
	}
	return total/float64(len(sources)) < threshold
}

// DefaultLowConfidenceThreshold is the flagging cutoff used by workers
// unless configured otherwise.
const DefaultLowConfidenceThreshold = 0.6

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
