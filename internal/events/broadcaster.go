// Package events provides an SSE event broadcaster for tree change
// notifications.
package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/galleylabs/galley/internal/metrics"
	"github.com/galleylabs/galley/pkg/protocol"
)

// Broadcaster manages SSE subscribers and publishes change events.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[chan protocol.ChangeEvent]string
}

// NewBroadcaster creates a new event broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[chan protocol.ChangeEvent]string),
	}
}

// Subscribe adds a new subscriber and returns its event channel. If project
// is non-empty, only events for that project are delivered. The caller must
// call Unsubscribe when done.
func (b *Broadcaster) Subscribe(project string) chan protocol.ChangeEvent {
	ch := make(chan protocol.ChangeEvent, 64)
	b.mu.Lock()
	b.subscribers[ch] = project
	b.mu.Unlock()
	metrics.SetSSEConnectionsActive(int64(b.Count()))
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broadcaster) Unsubscribe(ch chan protocol.ChangeEvent) {
	b.mu.Lock()
	delete(b.subscribers, ch)
	close(ch)
	b.mu.Unlock()
	metrics.SetSSEConnectionsActive(int64(b.Count()))
}

// Publish sends an event to all matching subscribers. Non-blocking: drops
// events for slow consumers.
func (b *Broadcaster) Publish(event protocol.ChangeEvent) {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch, project := range b.subscribers {
		if project != "" && project != event.Project {
			continue
		}
		select {
		case ch <- event:
		default:
			// Drop event for slow consumer
		}
	}
	metrics.RecordSSEEvent(event.Type)
}

// Count returns the current number of subscribers.
func (b *Broadcaster) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// MarshalEvent serializes an event to JSON.
func MarshalEvent(e protocol.ChangeEvent) ([]byte, error) {
	return json.Marshal(e)
}
