package events

import (
	"sync"

	"propchain/core/types"
)

// Recorder keeps every emitted event in delivery order. Tests use it to assert
// notifications without a live sink.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(evt Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Payloads returns the canonical payloads of the recorded events, skipping
// events that do not carry one.
func (r *Recorder) Payloads() []*types.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*types.Event, 0, len(r.events))
	for _, evt := range r.events {
		if payload := PayloadOf(evt); payload != nil {
			out = append(out, payload)
		}
	}
	return out
}

// Types lists the recorded event types in order.
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, evt := range r.events {
		out[i] = evt.EventType()
	}
	return out
}

// Reset drops all recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
