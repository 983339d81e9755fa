package store

import (
	"strings"
	"sync"
)

const subscriptionBuffer = 32

// Notifier fans change events out to path subscribers. Both backends embed
// one; delivery is per-subscription ordered and non-blocking toward the
// writer, with events dropped if a handler falls too far behind.
type Notifier struct {
	mu   sync.Mutex
	subs map[int]*subscription
	next int
}

type subscription struct {
	path string
	ch   chan Event
}

func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[int]*subscription)}
}

func (n *Notifier) Subscribe(path string, handler Handler) func() {
	sub := &subscription{
		path: path,
		ch:   make(chan Event, subscriptionBuffer),
	}

	n.mu.Lock()
	id := n.next
	n.next++
	n.subs[id] = sub
	n.mu.Unlock()

	go func() {
		for event := range sub.ch {
			handler(event)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs, id)
			n.mu.Unlock()
			close(sub.ch)
		})
	}
}

// Publish delivers event to every subscription whose path is the event path
// or an ancestor of it.
func (n *Notifier) Publish(event Event) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, sub := range n.subs {
		if !matches(sub.path, event.Path) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
		}
	}
}

func matches(subscribed, changed string) bool {
	return subscribed == changed || strings.HasPrefix(changed, subscribed+"/")
}
