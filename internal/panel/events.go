package panel

import "sync"

// SnapshotSaved is published when the dashboard persists a snapshot.
type SnapshotSaved struct {
	SnapshotID string
}

// EventBus fans snapshot events out to subscribers. Publish never blocks:
// a subscriber that is not draining its channel drops the event rather than
// stalling the dashboard's save path.
type EventBus struct {
	mu   sync.Mutex
	subs []chan SnapshotSaved
}

// NewEventBus creates an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{}
}

// Subscribe registers a new subscriber and returns its channel. The channel
// is buffered so a momentarily busy subscriber keeps the latest events.
func (b *EventBus) Subscribe() <-chan SnapshotSaved {
	ch := make(chan SnapshotSaved, 8)
	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()
	return ch
}

// Publish delivers ev to every subscriber without blocking.
func (b *EventBus) Publish(ev SnapshotSaved) {
	b.mu.Lock()
	subs := b.subs
	b.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
