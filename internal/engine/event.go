package engine

import "sync"

// EventType names a step of the protected-block protocol.
type EventType string

const (
	EventEnter   EventType = "enter"   // checkpoint pushed
	EventThrow   EventType = "throw"   // exception recorded and raised
	EventCatch   EventType = "catch"   // handler matched and claimed the exception
	EventRethrow EventType = "rethrow" // handler re-raised its exception
	EventFinally EventType = "finally" // cleanup block ran
	EventUnwind  EventType = "unwind"  // unhandled exception left the frame
	EventReturn  EventType = "return"  // deferred return completed
	EventLeave   EventType = "leave"   // checkpoint popped
	EventFatal   EventType = "fatal"   // engine error raised
)

// Event is one observable step of the engine.
type Event struct {
	Seq       int64     `json:"seq"`
	Type      EventType `json:"type"`
	RuntimeID string    `json:"runtime_id"`

	// Depth is the checkpoint depth the event refers to. For throw and fatal
	// events it is the stack depth at the time of the call.
	Depth int `json:"depth"`

	Kind     Kind     `json:"kind,omitempty"`
	Message  string   `json:"message,omitempty"`
	Location Location `json:"location"`

	// Handler is the declaration index of the matched handler (catch only).
	Handler int `json:"handler,omitempty"`
}

// Observer receives engine events synchronously.
//
// Observers run inside the engine's control flow, so they must not throw and
// should return quickly.
type Observer interface {
	OnEvent(Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Event)

// OnEvent calls f(ev).
func (f ObserverFunc) OnEvent(ev Event) {
	f(ev)
}

// Recorder is an Observer that keeps every event in order.
//
// Thread-safety: Recorder is safe for concurrent use, so several runtimes may
// report to one recorder.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// OnEvent appends ev.
func (r *Recorder) OnEvent(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Count returns how many events of type t were recorded.
func (r *Recorder) Count(t EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Type == t {
			n++
		}
	}
	return n
}

// Reset drops every recorded event.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
