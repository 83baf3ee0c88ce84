// Package ledger records the decision trail of a research worker.
// Each worker keeps an append-only sequence of steps that is embedded
// into the shared state when the worker finishes, making the run
// auditable after the fact.
package ledger

import (
	"fmt"
	"time"
)

// Step is one recorded decision: what was decided, why, what else was
// on the table, and how confident the worker was. Immutable once appended.
type Step struct {
	Decision     string    `json:"decision"`
	Rationale    string    `json:"rationale"`
	Alternatives []string  `json:"alternatives_considered"`
	Chosen       string    `json:"chosen_option"`
	Confidence   float64   `json:"confidence"`
	Timestamp    time.Time `json:"timestamp"`
}

// NewStep builds a Step, rejecting confidence outside [0,1].
// The bounds themselves are accepted.
func NewStep(decision, rationale string, alternatives []string, chosen string, confidence float64) (Step, error) {
	if confidence < 0.0 || confidence > 1.0 {
		return Step{}, fmt.Errorf("ledger: confidence must be in [0,1], got %v", confidence)
	}
	return Step{
		Decision:     decision,
		Rationale:    rationale,
		Alternatives: alternatives,
		Chosen:       chosen,
		Confidence:   confidence,
		Timestamp:    time.Now().UTC(),
	}, nil
}

// Ledger accumulates reasoning steps for one named worker.
// Not safe for concurrent use; each worker owns its ledger.
type Ledger struct {
	worker string
	steps  []Step
}

// New returns an empty ledger for the named worker.
func New(worker string) *Ledger {
	return &Ledger{worker: worker}
}

// Worker returns the owning worker's name.
func (l *Ledger) Worker() string { return l.worker }

// AddStep validates and appends a step.
func (l *Ledger) AddStep(decision, rationale string, alternatives []string, chosen string, confidence float64) (Step, error) {
	step, err := NewStep(decision, rationale, alternatives, chosen, confidence)
	if err != nil {
		return Step{}, err
	}
	l.steps = append(l.steps, step)
	return step, nil
}

// AddDisambiguation records an entity-disambiguation decision.
func (l *Ledger) AddDisambiguation(entity string, candidates []string, chosen, rationale string, confidence float64) (Step, error) {
	return l.AddStep(
		fmt.Sprintf("Disambiguate %q", entity),
		rationale,
		candidates,
		chosen,
		confidence,
	)
}

// AddSourceSelection records which source was picked for a data field.
func (l *Ledger) AddSourceSelection(dataType string, considered []string, chosen, rationale string, confidence float64) (Step, error) {
	return l.AddStep(
		fmt.Sprintf("Select source for %s", dataType),
		rationale,
		considered,
		chosen,
		confidence,
	)
}

// AddContradictionResolution records how a conflicting field was resolved.
func (l *Ledger) AddContradictionResolution(field string, conflicting []string, resolved, rationale string, confidence float64) (Step, error) {
	return l.AddStep(
		fmt.Sprintf("Resolve contradiction for %s", field),
		rationale,
		conflicting,
		resolved,
		confidence,
	)
}

// Steps returns a copy of the recorded steps in append order.
func (l *Ledger) Steps() []Step {
	out := make([]Step, len(l.steps))
	copy(out, l.steps)
	return out
}

// Len returns the number of recorded steps.
func (l *Ledger) Len() int { return len(l.steps) }

// AverageConfidence returns the mean confidence across all steps,
// or 0 for an empty ledger.
func (l *Ledger) AverageConfidence() float64 {
	if len(l.steps) == 0 {
		return 0.0
	}
	var sum float64
	for _, s := range l.steps {
		sum += s.Confidence
	}
	return sum / float64(len(l.steps))
}

// LowConfidenceSteps returns steps with confidence strictly below threshold.
func (l *Ledger) LowConfidenceSteps(threshold float64) []Step {
	var out []Step
	for _, s := range l.steps {
		if s.Confidence < threshold {
			out = append(out, s)
		}
	}
	return out
}
