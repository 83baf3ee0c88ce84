package research

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"inquest/internal/graph"
	"inquest/internal/invoke"
	"inquest/internal/state"
)

// Build assembles the research workflow:
//
//	company_profile ──> financial ────┐
//	        │─────────> news ─────────┤ barrier ──> synthesis
//	        │             └> sentiment┤  (sentiment optional)
//	        └─────────> competitive ──┘
//
// Sentiment only runs in deep mode, riding on the news worker's output.
// The synthesis barrier treats it as optional so a fast-mode run is never
// blocked by a branch that was never scheduled.
func Build(svc *Service, opts ...graph.Option) (*graph.Graph, error) {
	g := graph.New(opts...)

	for _, n := range []graph.Node{
		svc.ProfileNode(),
		svc.FinancialNode(),
		svc.NewsNode(),
		svc.SentimentNode(),
		svc.CompetitiveNode(),
		svc.SynthesisNode(),
	} {
		if err := g.Register(n); err != nil {
			return nil, err
		}
	}

	if err := g.SetEntry(NodeProfile); err != nil {
		return nil, err
	}
	for _, branch := range []string{NodeFinancial, NodeNews, NodeCompetitive} {
		if err := g.AddEdge(NodeProfile, branch); err != nil {
			return nil, err
		}
	}

	// Deep mode extends the news branch with sentiment analysis.
	sentimentRoute := func(rc graph.RouteContext) string {
		if rc.State.Mode == state.ModeDeep {
			return "analyze"
		}
		return "skip"
	}
	if err := g.AddConditionalEdge(NodeNews, sentimentRoute,
		map[string]string{"analyze": NodeSentiment}); err != nil {
		return nil, err
	}

	barrier := graph.Barrier{
		Required: []string{NodeProfile, NodeFinancial, NodeNews, NodeCompetitive},
		Optional: []string{NodeSentiment},
	}
	targets := map[string]string{graph.RouteProceed: NodeSynthesis}
	for _, branch := range []string{NodeFinancial, NodeNews, NodeSentiment, NodeCompetitive} {
		if err := g.AddConditionalEdge(branch, barrier.Route, targets); err != nil {
			return nil, err
		}
	}

	return g, nil
}

// Run executes one research run end to end and returns the final state.
func Run(ctx context.Context, svc *Service, subject, ticker string, mode state.Mode, opts ...graph.Option) (*state.ResearchState, error) {
	// Without a provider no worker can function; fail before scheduling.
	if len(svc.Invoker.Providers()) == 0 {
		return nil, invoke.ErrNoProviders
	}
	g, err := Build(svc, opts...)
	if err != nil {
		return nil, fmt.Errorf("build workflow: %w", err)
	}
	initial := state.New(uuid.NewString(), subject, ticker, mode)
	final, err := g.Run(ctx, initial)
	if err != nil {
		return nil, err
	}
	if problems := final.Validate(); len(problems) > 0 {
		svc.log.Warn("run finished with state problems", "run_id", final.RunID, "problems", problems)
	}
	return final, nil
}
