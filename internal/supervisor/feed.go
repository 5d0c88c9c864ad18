package supervisor

import (
	"sync"

	"github.com/dchest/uniuri"
)

const feedBuffer = 16

// Feed fans out status events to any number of subscribers (websocket
// clients, the status page). Delivery is best effort: a subscriber that
// stops draining loses events rather than stalling the supervisor loop.
type Feed struct {
	mu     sync.RWMutex
	subs   map[string]chan StatusEvent
	closed bool
}

func NewFeed() *Feed {
	return &Feed{subs: make(map[string]chan StatusEvent)}
}

// Subscribe registers a new subscriber and returns its id and channel.
// The channel is closed on Unsubscribe or when the feed shuts down.
func (f *Feed) Subscribe() (string, <-chan StatusEvent) {
	ch := make(chan StatusEvent, feedBuffer)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		close(ch)
		return "", ch
	}
	id := uniuri.New()
	f.subs[id] = ch
	return id, ch
}

func (f *Feed) Unsubscribe(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ch, ok := f.subs[id]; ok {
		delete(f.subs, id)
		close(ch)
	}
}

// Publish delivers ev to every subscriber that has buffer room.
func (f *Feed) Publish(ev StatusEvent) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return
	}
	for _, ch := range f.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Close shuts the feed down and closes all subscriber channels.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for id, ch := range f.subs {
		delete(f.subs, id)
		close(ch)
	}
}
