package httpapi

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/fixnow-app/fixnow/internal/engine"
	mware "github.com/fixnow-app/fixnow/internal/middleware"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// OrderWS - realtime push of a job's change notifications. The connection
// rides on an engine subscription, so a slow socket only loses its own
// oldest updates and never backs up into the store.
func (h *Handler) OrderWS(c echo.Context) error {
	actor, ok := mware.Actor(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	jobID := c.Param("id")
	job, err := h.Store.GetJob(jobID)
	if err != nil {
		return businessError(c, err)
	}
	if !h.mayObserve(job, actor) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not a participant in this job"})
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	sub := h.Store.Subscribe(engine.SubscriptionFilter{JobID: jobID})
	done := make(chan struct{})

	go func() {
		defer ws.Close()
		for {
			select {
			case n, open := <-sub.C():
				if !open {
					return
				}
				if err := ws.WriteJSON(n); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	// Read loop (discard client messages; protocol is server push).
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}
	close(done)
	h.Store.Unsubscribe(sub)
	return nil
}

// mayObserve mirrors the timeline visibility rule: the client, admin and
// providers (candidate or assigned) may watch a job.
func (h *Handler) mayObserve(job engine.Job, actor engine.Actor) bool {
	switch actor.Role {
	case engine.RoleAdmin, engine.RoleProvider:
		return true
	default:
		return actor.ID == job.Client.ID
	}
}
