package engine

import (
	"sync"
	"time"
)

// NotificationType classifies a change notification.
type NotificationType string

const (
	NotificationJobCreated    NotificationType = "job_created"
	NotificationBidReceived   NotificationType = "bid_received"
	NotificationBidModified   NotificationType = "bid_modified"
	NotificationStatusChanged NotificationType = "status_changed"
	NotificationTimelineItem  NotificationType = "timeline_item"
)

// Notification is one append-only change record fanned out to subscribers.
type Notification struct {
	Type     NotificationType `json:"type"`
	JobID    string           `json:"job_id"`
	Category string           `json:"category,omitempty"`
	Status   JobStatus        `json:"status,omitempty"`
	Bid      *Bid             `json:"bid,omitempty"`
	Item     *TimelineItem    `json:"item,omitempty"`
	At       time.Time        `json:"at"`
}

// SubscriptionFilter selects which notifications a subscriber receives.
// A non-empty JobID scopes to one job; otherwise Categories scopes to new
// activity on jobs in those service categories. Both empty means everything.
type SubscriptionFilter struct {
	JobID      string
	Categories []string
}

// subscriberBuffer is the bounded per-subscriber queue depth. On overflow
// the oldest pending notification is dropped so producers never block on a
// slow consumer.
const subscriberBuffer = 256

// Subscription is a bounded, drop-oldest stream of change notifications.
type Subscription struct {
	id     uint64
	filter SubscriptionFilter
	ch     chan Notification

	mu     sync.Mutex
	closed bool
}

// C is the receive side of the subscription.
func (s *Subscription) C() <-chan Notification {
	return s.ch
}

func (s *Subscription) matches(n Notification) bool {
	if s.filter.JobID != "" {
		return s.filter.JobID == n.JobID
	}
	if len(s.filter.Categories) == 0 {
		return true
	}
	for _, c := range s.filter.Categories {
		if c == n.Category {
			return true
		}
	}
	return false
}

// publish enqueues without ever blocking: when the buffer is full the oldest
// pending notification is discarded to make room.
func (s *Subscription) publish(n Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for {
		select {
		case s.ch <- n:
			return
		default:
			select {
			case <-s.ch:
			default:
			}
		}
	}
}

func (s *Subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}
