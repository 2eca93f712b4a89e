package engine

import (
	"log/slog"
	"sync"

	"moneymarket/core/events"
	"moneymarket/core/types"
	"moneymarket/observability"
)

type typedEvent interface {
	Event() *types.Event
}

// Feed is an events.Emitter that keeps the most recent committed engine
// events in a fixed-size ring and counts them per type.
type Feed struct {
	mu     sync.Mutex
	ring   []*types.Event
	next   int
	full   bool
	logger *slog.Logger
}

// NewFeed returns a feed retaining up to capacity events.
func NewFeed(capacity int, logger *slog.Logger) *Feed {
	if capacity <= 0 {
		capacity = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Feed{ring: make([]*types.Event, capacity), logger: logger}
}

// Emit implements events.Emitter.
func (f *Feed) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	var rendered *types.Event
	if typed, ok := evt.(typedEvent); ok {
		rendered = typed.Event()
	}
	if rendered == nil {
		rendered = &types.Event{Type: evt.EventType(), Attributes: map[string]string{}}
	}
	observability.Events().RecordEvent(rendered.Type)
	f.logger.Debug("lending event", slog.String("type", rendered.Type))

	f.mu.Lock()
	defer f.mu.Unlock()
	f.ring[f.next] = rendered
	f.next = (f.next + 1) % len(f.ring)
	if f.next == 0 {
		f.full = true
	}
}

// Recent returns up to limit events, oldest first. A non-positive limit
// returns everything retained.
func (f *Feed) Recent(limit int) []*types.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	size := f.next
	if f.full {
		size = len(f.ring)
	}
	if limit <= 0 || limit > size {
		limit = size
	}
	out := make([]*types.Event, 0, limit)
	start := f.next - limit
	if start < 0 {
		start += len(f.ring)
	}
	for i := 0; i < limit; i++ {
		out = append(out, f.ring[(start+i)%len(f.ring)])
	}
	return out
}

var _ events.Emitter = (*Feed)(nil)
