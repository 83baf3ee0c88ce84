package graph

// Routing keys returned by barrier routers.
const (
	RouteProceed = "proceed"
	RouteWait    = "wait"
)

// Barrier is the join synchronization condition: the join node may run only
// after every required node has completed, plus every optional node that
// actually started. An optional node that never starts cannot block the
// join, and the started-set only grows, so whichever branch completes last
// routes "proceed" exactly once.
type Barrier struct {
	Required []string
	Optional []string
}

// Route evaluates the barrier against the merged state.
func (b Barrier) Route(rc RouteContext) string {
	for _, id := range b.Required {
		if !rc.State.HasCompleted(id) {
			return RouteWait
		}
	}
	for _, id := range b.Optional {
		if rc.Started(id) && !rc.State.HasCompleted(id) {
			return RouteWait
		}
	}
	return RouteProceed
}
