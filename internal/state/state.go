// Package state defines the shared research accumulator and its merge
// semantics. Nodes never mutate the state directly; they return a Delta and
// the executor applies it, so every field carries exactly one merge policy.
package state

import (
	"fmt"
	"time"

	"inquest/internal/ledger"
	"inquest/internal/trust"
)

// Mode selects the research depth trade-off.
type Mode string

const (
	ModeFast Mode = "fast"
	ModeDeep Mode = "deep"
)

// Source is one piece of evidence. Immutable once created.
type Source struct {
	URL        string           `json:"url"`
	Title      string           `json:"title,omitempty"`
	Type       trust.SourceType `json:"source_type"`
	AccessedAt time.Time        `json:"access_date"`
	TrustScore float64          `json:"trust_score"`
}

// TrustedValue pairs an extracted value with its supporting sources and
// aggregate trust. Never mutated after a worker produces it.
type TrustedValue struct {
	Value      any      `json:"value"`
	Sources    []Source `json:"sources,omitempty"`
	TrustScore float64  `json:"trust_score"`
	Rationale  string   `json:"reasoning,omitempty"`
}

// NewTrustedValue aggregates the sources' scores into the value's trust.
func NewTrustedValue(value any, sources []Source, rationale string) TrustedValue {
	scores := make([]float64, len(sources))
	for i, s := range sources {
		scores[i] = s.TrustScore
	}
	return TrustedValue{
		Value:      value,
		Sources:    sources,
		TrustScore: trust.Aggregate(scores),
		Rationale:  rationale,
	}
}

// Ambiguity records a contradiction or open question a worker could not
// settle on its own.
type Ambiguity struct {
	Worker string `json:"worker"`
	Field  string `json:"field"`
	Detail string `json:"detail"`
}

// Dict is a worker-keyed map with dict-union merge: later writer wins per
// key. Workers write only under their own name, so keys never collide in
// practice.
type Dict[V any] map[string]V

// Merge unions other into a copy of d. Neither input is mutated.
func (d Dict[V]) Merge(other Dict[V]) Dict[V] {
	if len(other) == 0 {
		return d
	}
	out := make(Dict[V], len(d)+len(other))
	for k, v := range d {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// Clone returns an independent copy of the map header.
func (d Dict[V]) Clone() Dict[V] {
	out := make(Dict[V], len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// List is an append-only sequence; merge concatenates.
type List[T any] []T

// Merge returns d followed by other as a fresh slice.
func (l List[T]) Merge(other List[T]) List[T] {
	if len(other) == 0 {
		return l
	}
	out := make(List[T], 0, len(l)+len(other))
	out = append(out, l...)
	return append(out, other...)
}

// ResearchState is the accumulator for one research run. Field policies:
// scalar and result-slot fields overwrite (single-owner convention), Dict
// fields union per key, List fields append.
type ResearchState struct {
	RunID     string    `json:"run_id"`
	Subject   string    `json:"subject"`
	Ticker    string    `json:"ticker,omitempty"`
	Mode      Mode      `json:"mode"`
	StartedAt time.Time `json:"start_time"`

	Profile     *ProfileData     `json:"company_profile,omitempty"`
	Financial   *FinancialData   `json:"financial_data,omitempty"`
	News        *NewsData        `json:"news_data,omitempty"`
	Sentiment   *SentimentData   `json:"sentiment_data,omitempty"`
	Competitive *CompetitiveData `json:"competitive_data,omitempty"`
	Synthesis   string           `json:"synthesis_result,omitempty"`

	ReasoningChains Dict[[]ledger.Step] `json:"reasoning_chains"`
	Sources         Dict[[]Source]      `json:"sources"`
	TrustScores     Dict[float64]       `json:"trust_scores"`

	Errors         List[string]    `json:"errors"`
	Warnings       List[string]    `json:"warnings"`
	Ambiguities    List[Ambiguity] `json:"ambiguities"`
	CompletedNodes List[string]    `json:"completed_nodes"`

	FinishedAt time.Time `json:"end_time,omitempty"`
}

// New creates the initial state for a run.
func New(runID, subject, ticker string, mode Mode) *ResearchState {
	return &ResearchState{
		RunID:           runID,
		Subject:         subject,
		Ticker:          ticker,
		Mode:            mode,
		StartedAt:       time.Now(),
		ReasoningChains: Dict[[]ledger.Step]{},
		Sources:         Dict[[]Source]{},
		TrustScores:     Dict[float64]{},
	}
}

// Delta is the partial state a node returns. Nil or zero fields are not
// merged; set fields merge by the declared policy of the target field.
type Delta struct {
	Mode      *Mode
	Synthesis *string

	Profile     *ProfileData
	Financial   *FinancialData
	News        *NewsData
	Sentiment   *SentimentData
	Competitive *CompetitiveData

	ReasoningChains Dict[[]ledger.Step]
	Sources         Dict[[]Source]
	TrustScores     Dict[float64]

	Errors         List[string]
	Warnings       List[string]
	Ambiguities    List[Ambiguity]
	CompletedNodes List[string]

	FinishedAt *time.Time
}

// Apply merges d into s following each field's policy. Dict-union and
// append are associative and commutative, so concurrently completed deltas
// may apply in any order and converge.
func (s *ResearchState) Apply(d Delta) {
	if d.Mode != nil {
		s.Mode = *d.Mode
	}
	if d.Synthesis != nil {
		s.Synthesis = *d.Synthesis
	}
	if d.Profile != nil {
		s.Profile = d.Profile
	}
	if d.Financial != nil {
		s.Financial = d.Financial
	}
	if d.News != nil {
		s.News = d.News
	}
	if d.Sentiment != nil {
		s.Sentiment = d.Sentiment
	}
	if d.Competitive != nil {
		s.Competitive = d.Competitive
	}

	s.ReasoningChains = s.ReasoningChains.Merge(d.ReasoningChains)
	s.Sources = s.Sources.Merge(d.Sources)
	s.TrustScores = s.TrustScores.Merge(d.TrustScores)

	s.Errors = s.Errors.Merge(d.Errors)
	s.Warnings = s.Warnings.Merge(d.Warnings)
	s.Ambiguities = s.Ambiguities.Merge(d.Ambiguities)
	s.CompletedNodes = s.CompletedNodes.Merge(d.CompletedNodes)

	if d.FinishedAt != nil {
		s.FinishedAt = *d.FinishedAt
	}
}

// HasCompleted reports whether nodeID appears in the completion list.
func (s *ResearchState) HasCompleted(nodeID string) bool {
	for _, id := range s.CompletedNodes {
		if id == nodeID {
			return true
		}
	}
	return false
}

// Snapshot returns a copy safe for a node to read while other branches
// merge. Container headers are copied; element values are shared, which is
// safe because Source, TrustedValue and ledger steps are never mutated.
func (s *ResearchState) Snapshot() *ResearchState {
	cp := *s
	cp.ReasoningChains = s.ReasoningChains.Clone()
	cp.Sources = s.Sources.Clone()
	cp.TrustScores = s.TrustScores.Clone()
	cp.Errors = append(List[string]{}, s.Errors...)
	cp.Warnings = append(List[string]{}, s.Warnings...)
	cp.Ambiguities = append(List[Ambiguity]{}, s.Ambiguities...)
	cp.CompletedNodes = append(List[string]{}, s.CompletedNodes...)
	return &cp
}

// Validate checks structural invariants and returns any violations.
func (s *ResearchState) Validate() []string {
	var problems []string
	if s.Subject == "" {
		problems = append(problems, "subject is required")
	}
	if s.Mode != ModeFast && s.Mode != ModeDeep {
		problems = append(problems, fmt.Sprintf("mode must be %q or %q, got %q", ModeFast, ModeDeep, s.Mode))
	}
	for key, score := range s.TrustScores {
		if score < 0 || score > 1 {
			problems = append(problems, fmt.Sprintf("trust score for %s out of range: %v", key, score))
		}
	}
	for worker, steps := range s.ReasoningChains {
		for i, step := range steps {
			if step.Decision == "" {
				problems = append(problems, fmt.Sprintf("reasoning chain %s[%d] missing decision", worker, i))
			}
			if step.Confidence < 0 || step.Confidence > 1 {
				problems = append(problems, fmt.Sprintf("reasoning chain %s[%d] confidence out of range", worker, i))
			}
		}
	}
	return problems
}
