// Package bus is the in-process replacement for the original DOM event
// broadcast: sibling components subscribe for auth status changes instead of
// listening on a global event target.
package bus

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"
)

// EventAuthStatusChanged is published on every successful authentication and
// on logout.
const EventAuthStatusChanged = "auth_status_changed"

type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type Subscriber struct {
	Events chan Event
	Done   chan struct{}
}

type Broker struct {
	subscribers map[*Subscriber]bool
	mu          sync.RWMutex
	closed      bool
}

func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[*Subscriber]bool),
	}
}

func (b *Broker) Subscribe() *Subscriber {
	sub := &Subscriber{
		Events: make(chan Event, 16),
		Done:   make(chan struct{}),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(sub.Done)
		return sub
	}
	b.subscribers[sub] = true
	count := len(b.subscribers)
	b.mu.Unlock()

	log.Debug().Int("subscriberCount", count).Msg("bus subscriber added")
	return sub
}

func (b *Broker) Unsubscribe(sub *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscribers[sub]; ok {
		delete(b.subscribers, sub)
		close(sub.Done)
	}
}

// Publish delivers the event to every subscriber, dropping it for subscribers
// whose buffer is full. Delivery is best effort.
func (b *Broker) Publish(event Event) {
	b.mu.RLock()
	subs := make([]*Subscriber, 0, len(b.subscribers))
	for sub := range b.subscribers {
		subs = append(subs, sub)
	}
	b.mu.RUnlock()

	for _, sub := range subs {
		select {
		case sub.Events <- event:
		default:
			log.Warn().Str("eventType", event.Type).Msg("subscriber buffer full, dropping event")
		}
	}
}

func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subscribers {
		close(sub.Done)
	}
	b.subscribers = make(map[*Subscriber]bool)
}

func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
