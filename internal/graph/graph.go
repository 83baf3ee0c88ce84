// Package graph runs a directed workflow of research nodes. Branches with no
// dependency on each other execute concurrently; each node returns a partial
// state delta that the executor merges under a single lock, so node functions
// themselves stay free of synchronization.
package graph

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"inquest/internal/state"
)

// NodeFunc does the work of one node. It receives a read-only snapshot of
// the merged state and returns the delta to merge. It must not retain or
// mutate the snapshot's containers.
type NodeFunc func(ctx context.Context, snap *state.ResearchState) (state.Delta, error)

// Node is one unit of work in the workflow.
type Node struct {
	ID      string
	Run     NodeFunc
	Timeout time.Duration // 0 means the executor default applies
}

// RouteContext is what a router may inspect: the merged state at the moment
// of evaluation plus executor bookkeeping about which nodes have started.
type RouteContext struct {
	State   *state.ResearchState
	Started func(nodeID string) bool
}

// RouterFunc picks a routing key after a node completes. It must be a pure
// function of its inputs.
type RouterFunc func(rc RouteContext) string

type conditionalEdge struct {
	route   RouterFunc
	targets map[string]string // routing key -> successor node ID
}

// Graph holds the workflow topology. Build it fully before calling Run;
// a Graph is not safe for concurrent mutation.
type Graph struct {
	nodes       map[string]*Node
	entry       string
	edges       map[string][]string
	conditional map[string][]conditionalEdge

	maxParallel int
	nodeTimeout time.Duration
	observer    Observer
}

// Option configures a Graph during construction.
type Option func(*Graph)

// WithMaxParallel bounds how many nodes execute at once. Defaults to 4.
func WithMaxParallel(n int) Option {
	return func(g *Graph) { g.maxParallel = n }
}

// WithNodeTimeout sets the default per-node deadline. Zero means no deadline
// beyond the run context.
func WithNodeTimeout(d time.Duration) Option {
	return func(g *Graph) { g.nodeTimeout = d }
}

// WithObserver attaches an observer for run events.
func WithObserver(obs Observer) Option {
	return func(g *Graph) { g.observer = obs }
}

func New(opts ...Option) *Graph {
	g := &Graph{
		nodes:       make(map[string]*Node),
		edges:       make(map[string][]string),
		conditional: make(map[string][]conditionalEdge),
		maxParallel: 4,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.observer == nil {
		g.observer = NewSlogObserver()
	}
	return g
}

// Register adds a node. IDs must be unique.
func (g *Graph) Register(n Node) error {
	if n.ID == "" {
		return fmt.Errorf("graph: node ID must not be empty")
	}
	if n.Run == nil {
		return fmt.Errorf("graph: node %q has no work function", n.ID)
	}
	if _, exists := g.nodes[n.ID]; exists {
		return fmt.Errorf("graph: node %q already registered", n.ID)
	}
	g.nodes[n.ID] = &n
	return nil
}

// SetEntry names the single node execution starts from.
func (g *Graph) SetEntry(nodeID string) error {
	if _, ok := g.nodes[nodeID]; !ok {
		return fmt.Errorf("graph: entry node %q not registered", nodeID)
	}
	g.entry = nodeID
	return nil
}

// AddEdge makes `to` start when `from` completes.
func (g *Graph) AddEdge(from, to string) error {
	if _, ok := g.nodes[from]; !ok {
		return fmt.Errorf("graph: edge source %q not registered", from)
	}
	if _, ok := g.nodes[to]; !ok {
		return fmt.Errorf("graph: edge target %q not registered", to)
	}
	g.edges[from] = append(g.edges[from], to)
	return nil
}

// AddConditionalEdge evaluates router after `from` completes and starts the
// node mapped to the returned key. A key with no mapping is a no-op, which
// is how "wait" routes are expressed.
func (g *Graph) AddConditionalEdge(from string, router RouterFunc, targets map[string]string) error {
	if _, ok := g.nodes[from]; !ok {
		return fmt.Errorf("graph: conditional edge source %q not registered", from)
	}
	for key, to := range targets {
		if to == "" {
			continue
		}
		if _, ok := g.nodes[to]; !ok {
			return fmt.Errorf("graph: conditional target %q (key %q) not registered", to, key)
		}
	}
	g.conditional[from] = append(g.conditional[from], conditionalEdge{route: router, targets: targets})
	return nil
}

// run tracks one execution of the graph.
type run struct {
	g  *Graph
	eg *errgroup.Group
	// tokens bounds concurrent node execution; goroutine scheduling itself
	// is never blocked, so successor fan-out under mu cannot deadlock.
	tokens chan struct{}
	ctx    context.Context

	mu      sync.Mutex
	st      *state.ResearchState
	started map[string]bool
}

// Run executes the workflow from the entry node and returns the merged final
// state. Node errors and panics are captured into the state's error list and
// never abort the run; Run itself fails only on configuration problems or
// context cancellation.
func (g *Graph) Run(ctx context.Context, initial *state.ResearchState) (*state.ResearchState, error) {
	if g.entry == "" {
		return nil, fmt.Errorf("graph: no entry node set")
	}
	if initial == nil {
		return nil, fmt.Errorf("graph: initial state must not be nil")
	}

	eg, runCtx := errgroup.WithContext(ctx)
	r := &run{
		g:       g,
		eg:      eg,
		tokens:  make(chan struct{}, g.maxParallel),
		ctx:     runCtx,
		st:      initial,
		started: make(map[string]bool),
	}

	r.mu.Lock()
	r.startLocked(g.entry)
	r.mu.Unlock()

	_ = eg.Wait() // node errors live in the state, not the group

	if err := ctx.Err(); err != nil {
		return initial, err
	}
	g.observer.OnEvent(Event{Type: EventRunComplete})
	return initial, nil
}

// startLocked schedules a node exactly once. Callers hold r.mu.
func (r *run) startLocked(nodeID string) {
	if r.started[nodeID] {
		return
	}
	r.started[nodeID] = true
	node := r.g.nodes[nodeID]
	r.eg.Go(func() error {
		r.execute(node)
		return nil
	})
}

func (r *run) execute(node *Node) {
	select {
	case r.tokens <- struct{}{}:
	case <-r.ctx.Done():
		r.finish(node.ID, state.Delta{
			Errors:         state.List[string]{fmt.Sprintf("node %s: %v", node.ID, r.ctx.Err())},
			CompletedNodes: state.List[string]{node.ID},
		})
		return
	}
	defer func() { <-r.tokens }()

	r.g.observer.OnEvent(Event{Type: EventNodeStart, Node: node.ID})
	start := time.Now()

	r.mu.Lock()
	snap := r.st.Snapshot()
	r.mu.Unlock()

	delta, err := r.invoke(node, snap)
	elapsed := time.Since(start)

	if err != nil {
		// A failing branch still completes: the barrier must progress
		// deterministically, so the executor synthesizes the delta.
		r.g.observer.OnEvent(Event{Type: EventNodeError, Node: node.ID, Err: err, Elapsed: elapsed})
		delta = state.Delta{
			Errors:         state.List[string]{fmt.Sprintf("node %s: %v", node.ID, err)},
			CompletedNodes: state.List[string]{node.ID},
		}
	} else {
		r.g.observer.OnEvent(Event{Type: EventNodeComplete, Node: node.ID, Elapsed: elapsed})
		if !containsNode(delta.CompletedNodes, node.ID) {
			delta.CompletedNodes = append(delta.CompletedNodes, node.ID)
		}
	}

	r.finish(node.ID, delta)
}

// invoke runs the node function with its deadline and converts panics into
// errors at the node boundary.
func (r *run) invoke(node *Node, snap *state.ResearchState) (delta state.Delta, err error) {
	ctx := r.ctx
	timeout := node.Timeout
	if timeout == 0 {
		timeout = r.g.nodeTimeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return node.Run(ctx, snap)
}

// finish merges the node's delta and evaluates outgoing edges against the
// freshly merged state, scheduling any successors.
func (r *run) finish(nodeID string, delta state.Delta) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.st.Apply(delta)

	for _, to := range r.g.edges[nodeID] {
		r.startLocked(to)
	}

	for _, ce := range r.g.conditional[nodeID] {
		rc := RouteContext{
			State:   r.st,
			Started: func(id string) bool { return r.started[id] },
		}
		key := ce.route(rc)
		r.g.observer.OnEvent(Event{Type: EventRoute, Node: nodeID, Key: key})
		if to, ok := ce.targets[key]; ok && to != "" {
			r.startLocked(to)
		}
	}
}

func containsNode(list state.List[string], id string) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}
