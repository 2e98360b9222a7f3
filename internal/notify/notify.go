package notify

import (
	"encoding/json"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"github.com/fixnow-app/fixnow/internal/engine"
)

// Task type constants
const (
	TaskBidReceived   = "job:bid_received"
	TaskBidModified   = "job:bid_modified"
	TaskStatusChanged = "job:status_changed"
	TaskJobCancelled  = "job:cancelled"
)

// Bid push payload
type BidPayload struct {
	JobID      string    `json:"job_id"`
	ProviderID string    `json:"provider_id"`
	Price      int64     `json:"price"`
	Version    int       `json:"version"`
	SentAt     time.Time `json:"sent_at"`
}

// Status change push payload
type StatusPayload struct {
	JobID    string           `json:"job_id"`
	Category string           `json:"category"`
	Status   engine.JobStatus `json:"status"`
	SentAt   time.Time        `json:"sent_at"`
}

// Enqueuer pushes job activity onto the Redis-backed task queue so that
// mobile push and email workers can pick it up out of band. A nil Enqueuer
// is a no-op; delivery is always best-effort and failures only log.
type Enqueuer struct {
	client *asynq.Client
}

// NewEnqueuer connects to Redis at addr. Empty addr returns nil, which
// callers may use directly (every method tolerates a nil receiver).
func NewEnqueuer(addr string) *Enqueuer {
	if addr == "" {
		return nil
	}
	return &Enqueuer{client: asynq.NewClient(asynq.RedisClientOpt{Addr: addr})}
}

// Close releases the underlying client.
func (e *Enqueuer) Close() {
	if e != nil && e.client != nil {
		_ = e.client.Close()
	}
}

func (e *Enqueuer) enqueue(taskType string, payload any) {
	if e == nil || e.client == nil {
		return
	}
	b, _ := json.Marshal(payload)
	if _, err := e.client.Enqueue(asynq.NewTask(taskType, b), asynq.Queue("pushes")); err != nil {
		log.Printf("[notify] enqueue %s failed: %v", taskType, err)
	}
}

// Follow drains an engine subscription and enqueues push tasks for the
// changes that warrant one. Call in its own goroutine via `go`; returns
// when the subscription closes.
func (e *Enqueuer) Follow(sub *engine.Subscription) {
	for n := range sub.C() {
		switch n.Type {
		case engine.NotificationBidReceived, engine.NotificationBidModified:
			if n.Bid == nil {
				continue
			}
			taskType := TaskBidReceived
			if n.Type == engine.NotificationBidModified {
				taskType = TaskBidModified
			}
			e.enqueue(taskType, BidPayload{
				JobID:      n.Bid.JobID,
				ProviderID: n.Bid.ProviderID,
				Price:      n.Bid.Price,
				Version:    n.Bid.Version,
				SentAt:     n.At,
			})
		case engine.NotificationStatusChanged:
			taskType := TaskStatusChanged
			if n.Status == engine.StatusCancelled {
				taskType = TaskJobCancelled
			}
			e.enqueue(taskType, StatusPayload{
				JobID:    n.JobID,
				Category: n.Category,
				Status:   n.Status,
				SentAt:   n.At,
			})
		}
	}
}
