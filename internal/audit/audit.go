package audit

import (
	"sync"
	"time"
)

// Event is one audit record on the assignment stream. Data carries the
// event-specific payload (order id, method, costs, winner).
type Event struct {
	Type string         `json:"type"`
	At   time.Time      `json:"at"`
	Data map[string]any `json:"data"`
}

// Event types emitted by the live loop and the orchestrator.
const (
	TypeOrderReceived  = "order.received"
	TypeOrderAssigned  = "order.assigned"
	TypeOrderRejected  = "order.rejected"
	TypeCycleCommitted = "cycle.committed"
	TypeCycleSkipped   = "cycle.skipped"
)

type Broker interface {
	Subscribe(topic string) chan Event
	Unsubscribe(topic string, ch chan Event)
	Publish(topic string, evt Event)
}

// Topic names. "events" fans out everything; typed topics exist so a
// consumer can follow only optimization cycles.
const (
	TopicEvents = "events"
	TopicCycles = "cycles"
)

// MemoryBroker fans events out to in-process subscribers. Slow
// subscribers drop events rather than block the publisher.
type MemoryBroker struct {
	mu   sync.Mutex
	subs map[string]map[chan Event]struct{}
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{subs: map[string]map[chan Event]struct{}{}}
}

func (b *MemoryBroker) Subscribe(topic string) chan Event {
	ch := make(chan Event, 16)
	b.mu.Lock()
	if b.subs[topic] == nil {
		b.subs[topic] = map[chan Event]struct{}{}
	}
	b.subs[topic][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *MemoryBroker) Unsubscribe(topic string, ch chan Event) {
	b.mu.Lock()
	if m := b.subs[topic]; m != nil {
		delete(m, ch)
		if len(m) == 0 {
			delete(b.subs, topic)
		}
	}
	b.mu.Unlock()
	close(ch)
}

func (b *MemoryBroker) Publish(topic string, evt Event) {
	if evt.At.IsZero() {
		evt.At = time.Now().UTC()
	}
	b.mu.Lock()
	for ch := range b.subs[topic] {
		select {
		case ch <- evt:
		default:
		}
	}
	b.mu.Unlock()
}
