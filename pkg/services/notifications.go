package services

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/trace-app/trace-dashboard/pkg/apperrors"
)

// maxNotifications is how many notifications the ring keeps.
const maxNotifications = 50

// NotificationLevel is the severity shown to the user.
type NotificationLevel string

const (
	NotificationInfo  NotificationLevel = "info"
	NotificationError NotificationLevel = "error"
)

// Notification is a transient message for the dashboard user.
type Notification struct {
	ID        string            `json:"id"`
	Level     NotificationLevel `json:"level"`
	Message   string            `json:"message"`
	CreatedAt time.Time         `json:"createdAt"`
}

// Notifier keeps the most recent notifications of one dashboard and pushes
// new ones to subscribers.
type Notifier struct {
	mu      sync.Mutex
	ring    []Notification
	unseen  int
	events  *broadcaster[Notification]
	nowFunc func() time.Time
}

// NewNotifier creates an empty notifier.
func NewNotifier() *Notifier {
	return &Notifier{
		events:  newBroadcaster[Notification](),
		nowFunc: time.Now,
	}
}

// Publish records a notification and sends it to subscribers.
func (n *Notifier) Publish(level NotificationLevel, message string) Notification {
	note := Notification{
		ID:        uuid.NewString(),
		Level:     level,
		Message:   message,
		CreatedAt: n.nowFunc().UTC(),
	}

	n.mu.Lock()
	n.ring = append(n.ring, note)
	if len(n.ring) > maxNotifications {
		n.ring = slices.Delete(n.ring, 0, len(n.ring)-maxNotifications)
	}
	n.unseen = min(n.unseen+1, len(n.ring))
	n.mu.Unlock()

	n.events.publish(note)
	return note
}

// Error publishes the user-facing form of err.
func (n *Notifier) Error(err error) Notification {
	return n.Publish(NotificationError, apperrors.Normalize(err))
}

// Recent returns the kept notifications, oldest first.
func (n *Notifier) Recent() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return slices.Clone(n.ring)
}

// TakeUnseen returns notifications not returned by an earlier call, so each
// one is shown once.
func (n *Notifier) TakeUnseen() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := slices.Clone(n.ring[len(n.ring)-n.unseen:])
	n.unseen = 0
	return out
}

// Subscribe returns a channel of new notifications and a func to stop.
func (n *Notifier) Subscribe() (<-chan Notification, func()) {
	return n.events.subscribe()
}
