package ledger

import (
	"testing"
)

func TestNewStep_ConfidenceBounds(t *testing.T) {
	cases := []struct {
		confidence float64
		wantErr    bool
	}{
		{0.0, false},
		{1.0, false},
		{0.5, false},
		{1.5, true},
		{-0.1, true},
	}
	for _, tc := range cases {
		_, err := NewStep("d", "r", nil, "c", tc.confidence)
		if (err != nil) != tc.wantErr {
			t.Errorf("NewStep(confidence=%v) error = %v, wantErr %v", tc.confidence, err, tc.wantErr)
		}
	}
}

func TestAddStep_AppendsInOrder(t *testing.T) {
	l := New("financial")
	if _, err := l.AddStep("first", "r1", []string{"a", "b"}, "a", 0.9); err != nil {
		t.Fatal(err)
	}
	if _, err := l.AddStep("second", "r2", nil, "x", 0.4); err != nil {
		t.Fatal(err)
	}

	steps := l.Steps()
	if len(steps) != 2 {
		t.Fatalf("len(Steps()) = %d, want 2", len(steps))
	}
	if steps[0].Decision != "first" || steps[1].Decision != "second" {
		t.Errorf("steps out of order: %q, %q", steps[0].Decision, steps[1].Decision)
	}
}

func TestAddStep_RejectsBadConfidence(t *testing.T) {
	l := New("news")
	if _, err := l.AddStep("d", "r", nil, "c", 2.0); err == nil {
		t.Fatal("expected error for confidence 2.0")
	}
	if l.Len() != 0 {
		t.Errorf("rejected step must not be appended, Len = %d", l.Len())
	}
}

func TestAverageConfidence(t *testing.T) {
	l := New("profile")
	if got := l.AverageConfidence(); got != 0.0 {
		t.Errorf("empty ledger AverageConfidence = %v, want 0", got)
	}

	l.AddStep("a", "r", nil, "c", 0.8)
	l.AddStep("b", "r", nil, "c", 0.4)
	if got := l.AverageConfidence(); got != 0.6 {
		t.Errorf("AverageConfidence = %v, want 0.6", got)
	}
}

func TestLowConfidenceSteps(t *testing.T) {
	l := New("sentiment")
	l.AddStep("high", "r", nil, "c", 0.9)
	l.AddStep("low", "r", nil, "c", 0.3)
	l.AddStep("boundary", "r", nil, "c", 0.6)

	low := l.LowConfidenceSteps(0.6)
	if len(low) != 1 {
		t.Fatalf("LowConfidenceSteps(0.6) returned %d steps, want 1", len(low))
	}
	if low[0].Decision != "low" {
		t.Errorf("wrong step flagged: %q", low[0].Decision)
	}
}

func TestConvenienceRecorders(t *testing.T) {
	l := New("competitive")
	if _, err := l.AddDisambiguation("Apple", []string{"Apple Inc", "Apple Records"}, "Apple Inc", "ticker matches", 0.8); err != nil {
		t.Fatal(err)
	}
	if _, err := l.AddSourceSelection("revenue", []string{"sec.gov", "blog"}, "sec.gov", "filing beats blog", 0.9); err != nil {
		t.Fatal(err)
	}
	if _, err := l.AddContradictionResolution("founded", []string{"1976", "1977"}, "1976", "higher trust group", 0.7); err != nil {
		t.Fatal(err)
	}

	steps := l.Steps()
	if len(steps) != 3 {
		t.Fatalf("Len = %d, want 3", len(steps))
	}
	if steps[0].Decision != `Disambiguate "Apple"` {
		t.Errorf("disambiguation decision = %q", steps[0].Decision)
	}
	if steps[1].Chosen != "sec.gov" {
		t.Errorf("source selection chosen = %q", steps[1].Chosen)
	}
	if steps[2].Chosen != "1976" {
		t.Errorf("contradiction resolution chosen = %q", steps[2].Chosen)
	}
}

func TestSteps_ReturnsCopy(t *testing.T) {
	l := New("w")
	l.AddStep("a", "r", nil, "c", 0.5)

	steps := l.Steps()
	steps[0].Decision = "mutated"

	if l.Steps()[0].Decision != "a" {
		t.Error("Steps() must return a copy, not the backing slice")
	}
}
