// Package notify provides an in-process write notification bus so that
// background work (snapshots) can react to appended events.
package notify

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Notification announces a successful append.
type Notification struct {
	EntityID string
	// Events is the number of events appended.
	Events int
	// Latest is the greatest event timestamp in the batch (Unix ms).
	Latest int64
}

// Notifier is an in-process pub/sub bus for append notifications.
type Notifier struct {
	subscribers sync.Map
	bufferSize  int
}

// NewNotifier creates a notifier whose subscriber channels hold bufferSize
// notifications.
func NewNotifier(bufferSize int) *Notifier {
	return &Notifier{bufferSize: bufferSize}
}

// Publish sends a notification to all matching subscribers.
// Non-blocking: if a subscriber's channel is full, the notification is dropped.
func (n *Notifier) Publish(notif Notification) {
	n.subscribers.Range(func(key, value interface{}) bool {
		sub := value.(*Subscriber)
		if sub.matches(notif.EntityID) {
			select {
			case sub.Ch <- notif:
			default:
				// Channel full - drop notification, do NOT block
			}
		}
		return true
	})
}

// Subscribe registers a subscriber. filters are entity ID prefixes; no
// filters receives everything. An empty id gets a generated one.
func (n *Notifier) Subscribe(id string, filters ...string) *Subscriber {
	if id == "" {
		id = "sub_" + uuid.New().String()[:8]
	}
	sub := &Subscriber{
		ID:      id,
		Filters: filters,
		Ch:      make(chan Notification, n.bufferSize),
	}
	n.subscribers.Store(sub.ID, sub)
	return sub
}

// Unsubscribe removes a subscriber and closes its channel.
func (n *Notifier) Unsubscribe(subID string) {
	if value, ok := n.subscribers.LoadAndDelete(subID); ok {
		close(value.(*Subscriber).Ch)
	}
}

// Subscriber receives notifications on Ch.
type Subscriber struct {
	ID      string
	Filters []string
	Ch      chan Notification
}

func (s *Subscriber) matches(entityID string) bool {
	if len(s.Filters) == 0 {
		return true
	}
	for _, f := range s.Filters {
		if strings.HasPrefix(entityID, f) {
			return true
		}
	}
	return false
}
