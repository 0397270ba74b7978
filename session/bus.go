package session

import "sync"

// Bus provides in-memory pub/sub of transcript updates to attached views
// (the browser sockets). Publishing never blocks; a slow subscriber drops
// updates rather than stalling the event loop.
type Bus struct {
	mu   sync.RWMutex
	subs []chan Update
}

// NewBus creates a new Bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe creates a channel that receives transcript updates.
func (b *Bus) Subscribe() chan Update {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Update, 64)
	b.subs = append(b.subs, ch)
	return ch
}

// Unsubscribe removes a channel and closes it.
func (b *Bus) Unsubscribe(ch chan Update) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subs {
		if s == ch {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			close(ch)
			return
		}
	}
}

// Publish sends an update to all subscribers.
func (b *Bus) Publish(u Update) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs {
		select {
		case ch <- u:
		default:
			// Drop update if subscriber is too slow.
		}
	}
}
