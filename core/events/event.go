package events

import "propchain/core/types"

// Event represents a structured state change emitted by the marketplace.
type Event interface {
	EventType() string
}

// Payloader is implemented by events that carry a canonical attribute payload.
// Sinks that persist or forward events rely on it.
type Payloader interface {
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (e.g. the event log,
// metrics, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Envelope adapts a raw payload to the Event and Payloader interfaces.
type Envelope struct {
	Payload *types.Event
}

func (e Envelope) EventType() string {
	if e.Payload == nil {
		return ""
	}
	return e.Payload.Type
}

func (e Envelope) Event() *types.Event { return e.Payload }

// PayloadOf extracts the canonical payload from evt, or nil when the event
// does not expose one.
func PayloadOf(evt Event) *types.Event {
	if p, ok := evt.(Payloader); ok {
		return p.Event()
	}
	return nil
}

// Fanout delivers every event to each emitter in order.
type Fanout []Emitter

func (f Fanout) Emit(evt Event) {
	for _, emitter := range f {
		if emitter != nil {
			emitter.Emit(evt)
		}
	}
}
