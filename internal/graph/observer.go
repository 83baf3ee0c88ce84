package graph

import (
	"log/slog"
	"time"

	"inquest/internal/logging"
)

// EventType classifies executor events.
type EventType string

const (
	EventNodeStart    EventType = "node_start"
	EventNodeComplete EventType = "node_complete"
	EventNodeError    EventType = "node_error"
	EventRoute        EventType = "route"
	EventRunComplete  EventType = "run_complete"
)

// Event is one executor occurrence.
type Event struct {
	Type    EventType
	Node    string
	Key     string // routing key, for EventRoute
	Err     error
	Elapsed time.Duration
}

// Observer receives executor events. Implementations must be safe for
// concurrent use; events from parallel branches arrive interleaved.
type Observer interface {
	OnEvent(Event)
}

// SlogObserver logs events through the standard component logger.
type SlogObserver struct {
	log *slog.Logger
}

func NewSlogObserver() *SlogObserver {
	return &SlogObserver{log: logging.New("graph")}
}

func (o *SlogObserver) OnEvent(e Event) {
	switch e.Type {
	case EventNodeStart:
		o.log.Info("node started", "node", e.Node)
	case EventNodeComplete:
		o.log.Info("node completed", "node", e.Node, "elapsed", e.Elapsed)
	case EventNodeError:
		o.log.Error("node failed", "node", e.Node, "elapsed", e.Elapsed, "error", e.Err)
	case EventRoute:
		o.log.Debug("route evaluated", "node", e.Node, "key", e.Key)
	case EventRunComplete:
		o.log.Info("run completed")
	}
}

// MultiObserver fans events out to several observers.
type MultiObserver []Observer

func (m MultiObserver) OnEvent(e Event) {
	for _, o := range m {
		if o != nil {
			o.OnEvent(e)
		}
	}
}
