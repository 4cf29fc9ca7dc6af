package eventsvc

import (
	"context"
	"sync"
	"time"

	"github.com/newstandard/academy/core"
)

// MemoryPublisher keeps published events in memory. It stands in for the broker in dev and tests.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Envelope
}

var _ core.EventPublisher = (*MemoryPublisher)(nil)

func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

func (p *MemoryPublisher) Publish(_ context.Context, eventType string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, Envelope{Type: eventType, OccurredAt: time.Now().UTC(), Payload: payload})
	return nil
}

// Events returns the published events of the given type, or all of them when eventType is empty.
func (p *MemoryPublisher) Events(eventType string) []Envelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Envelope, 0, len(p.events))
	for _, e := range p.events {
		if eventType == "" || e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

func (p *MemoryPublisher) Reset() {
	p.mu.Lock()
	p.events = nil
	p.mu.Unlock()
}
