package store

import (
	"sync"

	"go.uber.org/zap"

	"github.com/arcs-project/arcs-core/internal/wire"
)

// subscription is one proxy's inbox for ModelUpdate messages.
type subscription struct {
	id     int
	buffer chan wire.ProxyMessage
}

// Notifier fans a ReferenceModeStore's ModelUpdate messages out to
// every subscribed proxy once an entry transitions to READY. Each
// subscriber gets its own buffered channel so one slow proxy can't
// block delivery to the others.
type Notifier struct {
	mu     sync.RWMutex
	subs   map[int]*subscription
	nextID int
	logger *zap.Logger
}

// NewNotifier returns an empty Notifier.
func NewNotifier(logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{
		subs:   make(map[int]*subscription),
		logger: logger.Named("notifier"),
	}
}

// Subscribe registers a new proxy and returns its id plus the channel
// it should read ModelUpdates from.
func (n *Notifier) Subscribe(bufferSize int) (int, <-chan wire.ProxyMessage) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.nextID++
	id := n.nextID
	sub := &subscription{id: id, buffer: make(chan wire.ProxyMessage, bufferSize)}
	n.subs[id] = sub
	return id, sub.buffer
}

// Unsubscribe removes a proxy and closes its channel.
func (n *Notifier) Unsubscribe(id int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if sub, ok := n.subs[id]; ok {
		close(sub.buffer)
		delete(n.subs, id)
	}
}

// Broadcast fans msg out to every subscribed proxy except excludeID (the
// proxy whose own write triggered the update, which already has the
// result locally). A full buffer drops the message for that subscriber
// rather than blocking every other subscriber's delivery.
func (n *Notifier) Broadcast(msg wire.ProxyMessage, excludeID int) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for id, sub := range n.subs {
		if id == excludeID {
			continue
		}
		select {
		case sub.buffer <- msg:
		default:
			n.logger.Warn("dropping model update, subscriber buffer full", zap.Int("subscriber", id))
		}
	}
}

// Count returns the number of active subscribers.
func (n *Notifier) Count() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.subs)
}
