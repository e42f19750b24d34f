package service

import (
	"sync"

	"fmeaflow/internal/model"
)

// DocumentUpdate announces that a document's stored state changed.
type DocumentUpdate struct {
	DocumentID string
	Status     model.Status
	Version    string
}

// Broadcaster is the in-process publish/subscribe channel for document
// updates. Subscriptions have an explicit lifetime: Subscribe returns an
// unsubscribe func and the channel is closed when it runs. Publish never
// blocks; a subscriber that falls behind misses updates rather than
// stalling the workflow.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[uint64]chan DocumentUpdate
	next uint64
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[uint64]chan DocumentUpdate)}
}

func (b *Broadcaster) Subscribe(buffer int) (<-chan DocumentUpdate, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan DocumentUpdate, buffer)

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

func (b *Broadcaster) Publish(u DocumentUpdate) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- u:
		default:
		}
	}
}
