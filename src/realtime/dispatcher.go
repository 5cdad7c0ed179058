// Package realtime is the seam to the notification channel attached
// developer tooling listens on. Transports live outside this subsystem; the
// in-process dispatcher here fans messages out to local subscribers.
package realtime

import (
	"sync"
	"time"
)

// Message is one design-change notification. Data carries the payload, e.g.
// the generated typings artifact map after a structural change.
type Message struct {
	VersionID   string
	Action      string
	Object      string
	Description string
	Timestamp   time.Time
	Data        any
}

// Dispatcher publishes design-change notifications.
type Dispatcher interface {
	Push(msg Message)
	Subscribe(buffer int) (<-chan Message, func())
}

// ChannelDispatcher is an in-process Dispatcher. Pushes never block: a
// subscriber that cannot keep up misses messages, which consumers tolerate
// because every push carries the full regenerated state rather than a delta.
type ChannelDispatcher struct {
	mu   sync.Mutex
	subs map[int]chan Message
	next int
}

func NewChannelDispatcher() *ChannelDispatcher {
	return &ChannelDispatcher{subs: make(map[int]chan Message)}
}

func (d *ChannelDispatcher) Push(msg Message) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, ch := range d.subs {
		select {
		case ch <- msg:
		default:
		}
	}
}

// Subscribe registers a listener. The returned cancel function removes the
// subscription and closes its channel.
func (d *ChannelDispatcher) Subscribe(buffer int) (<-chan Message, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Message, buffer)

	d.mu.Lock()
	id := d.next
	d.next++
	d.subs[id] = ch
	d.mu.Unlock()

	cancel := func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if _, ok := d.subs[id]; ok {
			delete(d.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}
