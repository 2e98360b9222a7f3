package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/fixnow-app/fixnow/internal/engine"
	mware "github.com/fixnow-app/fixnow/internal/middleware"
)

// Handler exposes the order engine over HTTP. All business failures arrive
// as error values from the engine and are mapped to statuses here; nothing
// in the engine throws.
type Handler struct {
	Store  *engine.OrderStore
	Secret []byte
}

// Register wires the routes onto the echo instance.
func (h *Handler) Register(e *echo.Echo) {
	api := e.Group("")
	api.Use(mware.ActorAuth(h.Secret))

	api.POST("/orders", h.CreateOrder, mware.RequireRoles(engine.RoleClient))
	api.GET("/orders/:id", h.GetOrder)
	api.GET("/orders/:id/offers", h.GetOffers)
	api.GET("/orders/:id/stats", h.GetStats)
	api.GET("/orders/:id/timeline", h.GetTimeline)
	api.GET("/orders/:id/ws", h.OrderWS)

	api.POST("/orders/:id/bids", h.SubmitBid, mware.RequireRoles(engine.RoleProvider))
	api.POST("/orders/:id/accept", h.AcceptBid, mware.RequireRoles(engine.RoleClient, engine.RoleAdmin))
	api.POST("/orders/:id/advance", h.AdvanceStatus, mware.RequireRoles(engine.RoleProvider))
	api.POST("/orders/:id/cancel", h.Cancel)
	api.POST("/orders/:id/messages", h.SendMessage)
	api.POST("/orders/:id/media", h.AttachMedia)
	api.POST("/orders/:id/review", h.CreateReview, mware.RequireRoles(engine.RoleClient))

	api.GET("/orders/mine", h.ProviderOrders, mware.RequireRoles(engine.RoleProvider))
	api.GET("/requests/available", h.AvailableRequests, mware.RequireRoles(engine.RoleProvider, engine.RoleAdmin))
	api.GET("/requests/matched", h.MatchedRequests, mware.RequireRoles(engine.RoleProvider))

	api.POST("/providers/profile", h.UpsertProfile, mware.RequireRoles(engine.RoleProvider))
	api.GET("/providers/:id/profile", h.GetProfile)
}

// businessError maps engine failures onto HTTP statuses.
func businessError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, engine.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, engine.ErrValidation):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, engine.ErrConflict),
		errors.Is(err, engine.ErrIllegalTransition),
		errors.Is(err, engine.ErrClosed):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}

// CreateOrder - client places a new service request.
func (h *Handler) CreateOrder(c echo.Context) error {
	actor, ok := mware.Actor(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var req struct {
		ServiceData   engine.ServiceData `json:"service_data"`
		Location      engine.Location    `json:"location"`
		ScheduledFor  *time.Time         `json:"scheduled_for"`
		PriceEstimate int64              `json:"price_estimate"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payload"})
	}

	job, err := h.Store.CreateOrder(c.Request().Context(), actor, req.ServiceData, req.Location, req.ScheduledFor, req.PriceEstimate)
	if err != nil {
		return businessError(c, err)
	}
	return c.JSON(http.StatusCreated, job)
}

// GetOrder - fetch one job snapshot.
func (h *Handler) GetOrder(c echo.Context) error {
	job, err := h.Store.GetJob(c.Param("id"))
	if err != nil {
		return businessError(c, err)
	}
	return c.JSON(http.StatusOK, job)
}

// SubmitBid - provider offers a price on an open job.
func (h *Handler) SubmitBid(c echo.Context) error {
	actor, ok := mware.Actor(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var req struct {
		Price   int64  `json:"price"`
		Message string `json:"message"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payload"})
	}

	res, err := h.Store.SubmitBid(c.Param("id"), actor.ID, req.Price, req.Message)
	if err != nil {
		return businessError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// GetOffers - current bids on a job, one per provider.
func (h *Handler) GetOffers(c echo.Context) error {
	offers, err := h.Store.GetOrderOffers(c.Param("id"))
	if err != nil {
		return businessError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"offers": offers})
}

// GetStats - aggregate over current bids.
func (h *Handler) GetStats(c echo.Context) error {
	stats, err := h.Store.GetOrderStats(c.Param("id"))
	if err != nil {
		return businessError(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

// AcceptBid - client picks the winning offer.
func (h *Handler) AcceptBid(c echo.Context) error {
	actor, ok := mware.Actor(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var req struct {
		ProviderID string `json:"provider_id"`
	}
	if err := c.Bind(&req); err != nil || req.ProviderID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid provider_id"})
	}

	job, err := h.Store.AcceptBid(c.Param("id"), actor, req.ProviderID)
	if err != nil {
		return businessError(c, err)
	}
	return c.JSON(http.StatusOK, job)
}

// AdvanceStatus - assigned provider moves the job one step forward.
func (h *Handler) AdvanceStatus(c echo.Context) error {
	actor, ok := mware.Actor(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var req struct {
		Target engine.JobStatus `json:"target"`
	}
	if err := c.Bind(&req); err != nil || req.Target == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid target status"})
	}

	job, err := h.Store.AdvanceStatus(c.Param("id"), actor, req.Target)
	if err != nil {
		return businessError(c, err)
	}
	return c.JSON(http.StatusOK, job)
}

// Cancel - client, assigned provider or admin cancels the job.
func (h *Handler) Cancel(c echo.Context) error {
	actor, ok := mware.Actor(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var req struct {
		Reason string `json:"reason"`
	}
	_ = c.Bind(&req)

	job, err := h.Store.Cancel(c.Param("id"), actor, req.Reason)
	if err != nil {
		return businessError(c, err)
	}
	return c.JSON(http.StatusOK, job)
}

// SendMessage - participant posts to the job's timeline.
func (h *Handler) SendMessage(c echo.Context) error {
	actor, ok := mware.Actor(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := c.Bind(&req); err != nil || req.Content == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payload"})
	}

	item, err := h.Store.AppendMessage(c.Param("id"), actor, req.Content)
	if err != nil {
		return businessError(c, err)
	}
	return c.JSON(http.StatusOK, item)
}

// AttachMedia - participant attaches a before/after photo or video.
func (h *Handler) AttachMedia(c echo.Context) error {
	actor, ok := mware.Actor(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var req struct {
		URL   string            `json:"url"`
		Stage engine.MediaStage `json:"stage"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payload"})
	}

	item, err := h.Store.AttachMedia(c.Param("id"), actor, req.URL, req.Stage)
	if err != nil {
		return businessError(c, err)
	}
	return c.JSON(http.StatusOK, item)
}

// GetTimeline - the job's merged message/event/media log.
func (h *Handler) GetTimeline(c echo.Context) error {
	items, err := h.Store.GetTimeline(c.Param("id"))
	if err != nil {
		return businessError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"timeline": items})
}

// CreateReview - client rates the provider after completion.
func (h *Handler) CreateReview(c echo.Context) error {
	actor, ok := mware.Actor(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var req struct {
		Rating int `json:"rating"`
	}
	if err := c.Bind(&req); err != nil || req.Rating < 1 || req.Rating > 5 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "rating must be 1..5"})
	}

	if err := h.Store.RecordReview(c.Param("id"), actor, req.Rating); err != nil {
		return businessError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "review recorded"})
}

// ProviderOrders - jobs the provider is assigned to or has bid on.
func (h *Handler) ProviderOrders(c echo.Context) error {
	actor, ok := mware.Actor(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	return c.JSON(http.StatusOK, echo.Map{"orders": h.Store.GetProviderOrders(actor.ID)})
}

// AvailableRequests - every job still open for bidding.
func (h *Handler) AvailableRequests(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"requests": h.Store.GetAvailableRequests()})
}

// MatchedRequests - open jobs visible to the provider, ranked by match.
func (h *Handler) MatchedRequests(c echo.Context) error {
	actor, ok := mware.Actor(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	matched, err := h.Store.GetMatchedRequests(actor.ID)
	if err != nil {
		return businessError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"requests": matched})
}

type profileRequest struct {
	DisplayName       string          `json:"display_name"`
	Capabilities      []string        `json:"capabilities"`
	ServiceCategories []string        `json:"service_categories"`
	BaseLocation      engine.Location `json:"base_location"`
	AcceptsEmergency  bool            `json:"accepts_emergency"`
}

type profileResponse struct {
	ID                string          `json:"id"`
	DisplayName       string          `json:"display_name,omitempty"`
	Capabilities      []string        `json:"capabilities"`
	ServiceCategories []string        `json:"service_categories"`
	BaseLocation      engine.Location `json:"base_location"`
	Rating            float64         `json:"rating"`
	RatingCount       int             `json:"rating_count"`
	AcceptsEmergency  bool            `json:"accepts_emergency"`
}

func toProfileResponse(p engine.ProviderProfile) profileResponse {
	out := profileResponse{
		ID:                p.ID,
		DisplayName:       p.DisplayName,
		Capabilities:      make([]string, 0, len(p.Capabilities)),
		ServiceCategories: make([]string, 0, len(p.ServiceCategories)),
		BaseLocation:      p.BaseLocation,
		Rating:            p.Rating,
		RatingCount:       p.RatingCount,
		AcceptsEmergency:  p.AcceptsEmergency,
	}
	for tag := range p.Capabilities {
		out.Capabilities = append(out.Capabilities, tag)
	}
	for cat := range p.ServiceCategories {
		out.ServiceCategories = append(out.ServiceCategories, cat)
	}
	return out
}

// UpsertProfile - provider declares or updates their capability profile.
func (h *Handler) UpsertProfile(c echo.Context) error {
	actor, ok := mware.Actor(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var req profileRequest
	if err := c.Bind(&req); err != nil || len(req.ServiceCategories) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "at least one service category is required"})
	}

	name := req.DisplayName
	if name == "" {
		name = actor.DisplayName
	}
	h.Store.Providers().Upsert(engine.ProviderProfile{
		ID:                actor.ID,
		DisplayName:       name,
		Capabilities:      engine.TagSet(req.Capabilities...),
		ServiceCategories: engine.TagSet(req.ServiceCategories...),
		BaseLocation:      req.BaseLocation,
		AcceptsEmergency:  req.AcceptsEmergency,
	})

	p, _ := h.Store.Providers().Get(actor.ID)
	return c.JSON(http.StatusOK, toProfileResponse(p))
}

// GetProfile - public provider profile.
func (h *Handler) GetProfile(c echo.Context) error {
	p, ok := h.Store.Providers().Get(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "provider not found"})
	}
	return c.JSON(http.StatusOK, toProfileResponse(p))
}
