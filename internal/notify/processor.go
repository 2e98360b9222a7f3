package notify

import (
	"context"
	"encoding/json"
	"log"

	"github.com/hibiken/asynq"
)

// Server consumes push tasks. Delivery to APNs/FCM is stubbed with logs;
// the queue contract is the part that matters here.
type Server struct {
	srv *asynq.Server
}

// StartServer runs an asynq worker against Redis at addr. Returns nil when
// addr is empty.
func StartServer(addr string) *Server {
	if addr == "" {
		return nil
	}
	opts := asynq.RedisClientOpt{Addr: addr}

	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskBidReceived, handleBid)
	mux.HandleFunc(TaskBidModified, handleBid)
	mux.HandleFunc(TaskStatusChanged, handleStatus)
	mux.HandleFunc(TaskJobCancelled, handleStatus)

	srv := asynq.NewServer(opts, asynq.Config{
		Concurrency: 5,
		Queues: map[string]int{
			"pushes": 10,
		},
	})
	go func() {
		if err := srv.Run(mux); err != nil {
			log.Printf("[notify] worker stopped: %v", err)
		}
	}()
	log.Printf("[notify] worker started (addr=%s)", addr)
	return &Server{srv: srv}
}

// Shutdown stops the worker.
func (s *Server) Shutdown() {
	if s != nil && s.srv != nil {
		s.srv.Shutdown()
	}
}

func handleBid(_ context.Context, t *asynq.Task) error {
	var p BidPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return err
	}
	log.Printf("[notify] %s -> job=%s provider=%s price=%d", t.Type(), p.JobID, p.ProviderID, p.Price)
	return nil
}

func handleStatus(_ context.Context, t *asynq.Task) error {
	var p StatusPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return err
	}
	log.Printf("[notify] %s -> job=%s status=%s", t.Type(), p.JobID, p.Status)
	return nil
}
