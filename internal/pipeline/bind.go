package pipeline

import (
	"github.com/mattjoyce/wsfetch/internal/events"
)

// Handlers are typed callbacks for orchestrator events. Nil fields are skipped.
type Handlers struct {
	OnRunStarted  func(RunStartedEvent)
	OnLog         func(LogEvent)
	OnProgress    func(ProgressEvent)
	OnJobStarted  func(JobEvent)
	OnJobComplete func(JobEvent)
	OnFinished    func(FinishedEvent)
}

// Bind decodes hub events into h. Callbacks run synchronously on the run
// goroutine in publish order, so none are dropped; they must not block for
// long. The returned func unbinds.
func Bind(hub *events.Hub, h Handlers) func() {
	return hub.SubscribeFunc(func(ev events.Event) {
		Dispatch(ev, h)
	})
}

// Dispatch routes one event to the matching handler. Malformed payloads are
// ignored.
func Dispatch(ev events.Event, h Handlers) {
	switch ev.Type {
	case EventRunStarted:
		var p RunStartedEvent
		if h.OnRunStarted != nil && ev.Decode(&p) == nil {
			h.OnRunStarted(p)
		}
	case EventLog:
		var p LogEvent
		if h.OnLog != nil && ev.Decode(&p) == nil {
			h.OnLog(p)
		}
	case EventProgress:
		var p ProgressEvent
		if h.OnProgress != nil && ev.Decode(&p) == nil {
			h.OnProgress(p)
		}
	case EventJobStarted:
		var p JobEvent
		if h.OnJobStarted != nil && ev.Decode(&p) == nil {
			h.OnJobStarted(p)
		}
	case EventJobCompleted:
		var p JobEvent
		if h.OnJobComplete != nil && ev.Decode(&p) == nil {
			h.OnJobComplete(p)
		}
	case EventFinished:
		var p FinishedEvent
		if h.OnFinished != nil && ev.Decode(&p) == nil {
			h.OnFinished(p)
		}
	}
}
