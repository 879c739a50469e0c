package bus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroker(t *testing.T) {
	t.Run("publish reaches every subscriber", func(t *testing.T) {
		b := NewBroker()
		defer b.Close()

		sub1 := b.Subscribe()
		sub2 := b.Subscribe()
		assert.Equal(t, 2, b.SubscriberCount())

		b.Publish(Event{Type: EventAuthStatusChanged})

		for _, sub := range []*Subscriber{sub1, sub2} {
			select {
			case event := <-sub.Events:
				assert.Equal(t, EventAuthStatusChanged, event.Type)
			case <-time.After(time.Second):
				t.Fatal("expected event was not delivered")
			}
		}
	})

	t.Run("unsubscribed subscriber stops receiving", func(t *testing.T) {
		b := NewBroker()
		defer b.Close()

		sub := b.Subscribe()
		b.Unsubscribe(sub)
		assert.Equal(t, 0, b.SubscriberCount())

		select {
		case <-sub.Done:
		case <-time.After(time.Second):
			t.Fatal("Done was not closed on unsubscribe")
		}

		b.Publish(Event{Type: EventAuthStatusChanged})
		select {
		case _, open := <-sub.Events:
			assert.False(t, open, "unexpected delivery after unsubscribe")
		default:
		}
	})

	t.Run("unsubscribe twice is safe", func(t *testing.T) {
		b := NewBroker()
		defer b.Close()

		sub := b.Subscribe()
		b.Unsubscribe(sub)
		b.Unsubscribe(sub)
	})

	t.Run("full buffer drops instead of blocking", func(t *testing.T) {
		b := NewBroker()
		defer b.Close()

		sub := b.Subscribe()
		for i := 0; i < cap(sub.Events)+5; i++ {
			b.Publish(Event{Type: EventAuthStatusChanged})
		}
		assert.Len(t, sub.Events, cap(sub.Events))
	})

	t.Run("close releases all subscribers", func(t *testing.T) {
		b := NewBroker()
		sub := b.Subscribe()

		b.Close()
		select {
		case <-sub.Done:
		case <-time.After(time.Second):
			t.Fatal("Done was not closed on broker close")
		}
		assert.Equal(t, 0, b.SubscriberCount())
	})

	t.Run("subscribe after close returns released subscriber", func(t *testing.T) {
		b := NewBroker()
		b.Close()

		sub := b.Subscribe()
		select {
		case <-sub.Done:
		default:
			t.Fatal("subscriber on closed broker should be released")
		}
	})

	t.Run("publish with no subscribers is a no-op", func(t *testing.T) {
		b := NewBroker()
		defer b.Close()
		require.NotPanics(t, func() {
			b.Publish(Event{Type: EventAuthStatusChanged})
		})
	})
}
