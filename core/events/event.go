package events

// Event is a structured state change produced by a committed lending
// operation.
type Event interface {
	EventType() string
}

// Emitter receives events in commit order. Rolled back operations emit
// nothing.
type Emitter interface {
	Emit(Event)
}

// NoopEmitter discards every event.
type NoopEmitter struct{}

func (NoopEmitter) Emit(Event) {}
