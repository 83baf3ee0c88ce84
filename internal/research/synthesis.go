package research

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"inquest/internal/graph"
	"inquest/internal/ledger"
	"inquest/internal/state"
)

// SynthesisNode builds the join node. It runs once all required branches
// have merged their results and writes the final report.
func (s *Service) SynthesisNode() graph.Node {
	return graph.Node{ID: NodeSynthesis, Run: s.runSynthesis}
}

func (s *Service) runSynthesis(ctx context.Context, snap *state.ResearchState) (state.Delta, error) {
	led := ledger.New(NodeSynthesis)
	k := knobs(snap)

	var missing []string
	for _, branch := range []struct {
		name string
		ok   bool
	}{
		{NodeProfile, snap.Profile != nil},
		{NodeFinancial, snap.Financial != nil},
		{NodeNews, snap.News != nil},
		{NodeCompetitive, snap.Competitive != nil},
	} {
		if !branch.ok {
			missing = append(missing, branch.name)
		}
	}

	brief := renderBrief(snap)
	prompt := fmt.Sprintf(`Write a research report on %q in markdown, synthesizing the
findings below. Sections: Executive Summary, Company Overview, Financial
Analysis, Recent Developments, Competitive Position, Risks and Concerns,
Outlook. Attribute nothing that the findings do not support; flag gaps
explicitly. Keep exact figures as given.

Findings:
%s`, snap.Subject, brief)
	if len(missing) > 0 {
		prompt += fmt.Sprintf("\nNote: no results were produced for: %s. Say so where relevant.\n",
			strings.Join(missing, ", "))
	}

	report, err := s.generate(ctx, prompt, 0.4, 4000)
	if err != nil {
		return state.Delta{}, err
	}
	_, _ = led.AddStep("draft report", "single synthesis pass over merged findings",
		nil, "drafted", 0.8)

	if k.SynthesisMultiPass {
		for i := 1; i < k.SynthesisMaxIterations; i++ {
			revised, err := s.generate(ctx, fmt.Sprintf(`Review this draft research report on %q against the findings.
Fix any claim the findings do not support, restore any dropped figure, and
tighten the prose. Return the full revised report only.

Findings:
%s

Draft:
%s`, snap.Subject, brief, report), 0.2, 4000)
			if err != nil {
				// Keep the best draft we have rather than failing the run.
				s.log.Warn("synthesis refinement failed", "pass", i+1, "error", err)
				break
			}
			report = revised
			_, _ = led.AddStep(fmt.Sprintf("refine report (pass %d)", i+1),
				"fact-check pass against merged findings", nil, "revised", 0.85)
		}
	}

	now := time.Now()
	d := state.Delta{
		Synthesis:       &report,
		ReasoningChains: state.Dict[[]ledger.Step]{NodeSynthesis: led.Steps()},
		FinishedAt:      &now,
	}
	if len(missing) > 0 {
		d.Warnings = state.List[string]{
			fmt.Sprintf("synthesis: produced with missing branches: %s", strings.Join(missing, ", ")),
		}
	}
	return d, nil
}

// renderBrief serializes the merged worker outputs into the synthesis
// prompt. JSON keeps the trusted-value provenance visible to the model.
func renderBrief(snap *state.ResearchState) string {
	var b strings.Builder
	writeSection := func(name string, v any) {
		if v == nil {
			return
		}
		raw, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return
		}
		fmt.Fprintf(&b, "## %s\n%s\n\n", name, raw)
	}
	if snap.Profile != nil {
		writeSection("Company Profile", snap.Profile)
	}
	if snap.Financial != nil {
		writeSection("Financial Data", snap.Financial)
	}
	if snap.News != nil {
		// The full article list can dwarf everything else; cap it.
		news := *snap.News
		if len(news.Articles) > 25 {
			news.Articles = news.Articles[:25]
		}
		writeSection("News", &news)
	}
	if snap.Sentiment != nil {
		writeSection("Sentiment", snap.Sentiment)
	}
	if snap.Competitive != nil {
		writeSection("Competitive Landscape", snap.Competitive)
	}
	if len(snap.TrustScores) > 0 {
		writeSection("Per-Worker Trust Scores", snap.TrustScores)
	}
	if len(snap.Ambiguities) > 0 {
		writeSection("Unresolved Ambiguities", snap.Ambiguities)
	}
	if len(snap.Warnings) > 0 {
		writeSection("Warnings", snap.Warnings)
	}
	return b.String()
}
