package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fixnow-app/fixnow/internal/engine"
	"github.com/fixnow-app/fixnow/internal/utils"
)

var testSecret = []byte("test-secret")

func newTestAPI(t *testing.T) (*echo.Echo, *engine.OrderStore) {
	t.Helper()
	store := engine.NewOrderStore(nil, nil, nil)
	t.Cleanup(store.Close)

	e := echo.New()
	h := &Handler{Store: store, Secret: testSecret}
	h.Register(e)
	return e, store
}

func token(t *testing.T, actor engine.Actor) string {
	t.Helper()
	tok, err := utils.SignActorToken(actor, testSecret, time.Hour)
	require.NoError(t, err)
	return tok
}

func doJSON(t *testing.T, e *echo.Echo, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

var (
	apiClient   = engine.Actor{ID: "client-1", Role: engine.RoleClient, DisplayName: "Dana"}
	apiProvider = engine.Actor{ID: "p1", Role: engine.RoleProvider, DisplayName: "Yossi"}
	apiAdmin    = engine.Actor{ID: "admin-1", Role: engine.RoleAdmin, DisplayName: "Support"}
)

func registerProfile(t *testing.T, e *echo.Echo, provider engine.Actor) {
	t.Helper()
	rec := doJSON(t, e, http.MethodPost, "/providers/profile", token(t, provider), map[string]any{
		"capabilities":       []string{"pipe_repair", "water_shutoff"},
		"service_categories": []string{"plumbing"},
		"base_location":      map[string]any{"address": "Tel Aviv", "lat": 32.0809, "lng": 34.7806},
		"accepts_emergency":  true,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func createOrder(t *testing.T, e *echo.Echo) engine.Job {
	t.Helper()
	rec := doJSON(t, e, http.MethodPost, "/orders", token(t, apiClient), map[string]any{
		"service_data": map[string]any{
			"category":      "plumbing",
			"sub_problem":   "leak",
			"urgency_level": "emergency",
		},
		"location": map[string]any{"address": "Dizengoff 100, Tel Aviv", "lat": 32.0809, "lng": 34.7806},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var job engine.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	require.NotEmpty(t, job.ID)
	return job
}

func TestAuthRequired(t *testing.T) {
	e, _ := newTestAPI(t)

	rec := doJSON(t, e, http.MethodPost, "/orders", "", map[string]any{})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, e, http.MethodPost, "/orders", "not-a-token", map[string]any{})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRoleEnforcement(t *testing.T) {
	e, _ := newTestAPI(t)

	// A provider cannot create orders, a client cannot bid.
	rec := doJSON(t, e, http.MethodPost, "/orders", token(t, apiProvider), map[string]any{})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, e, http.MethodPost, "/orders/xyz/bids", token(t, apiClient), map[string]any{"price": 100})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestOrderFlowOverHTTP(t *testing.T) {
	e, _ := newTestAPI(t)
	registerProfile(t, e, apiProvider)
	job := createOrder(t, e)

	// Provider sees the request ranked.
	rec := doJSON(t, e, http.MethodGet, "/requests/matched", token(t, apiProvider), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var matched struct {
		Requests []engine.MatchedRequest `json:"requests"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &matched))
	require.Len(t, matched.Requests, 1)
	assert.Equal(t, job.ID, matched.Requests[0].Job.ID)
	assert.NotZero(t, matched.Requests[0].Match.MatchScore)

	// Bid, rebid, inspect offers and stats.
	rec = doJSON(t, e, http.MethodPost, "/orders/"+job.ID+"/bids", token(t, apiProvider), map[string]any{"price": 150, "message": "on my way"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res engine.BidResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.False(t, res.Modified)

	rec = doJSON(t, e, http.MethodPost, "/orders/"+job.ID+"/bids", token(t, apiProvider), map[string]any{"price": 130})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.Modified)

	rec = doJSON(t, e, http.MethodGet, "/orders/"+job.ID+"/stats", token(t, apiClient), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats engine.BidStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.TotalBids)
	assert.Equal(t, int64(130), stats.MinPrice)

	// Accept, then a late bid conflicts.
	rec = doJSON(t, e, http.MethodPost, "/orders/"+job.ID+"/accept", token(t, apiClient), map[string]any{"provider_id": apiProvider.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var accepted engine.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &accepted))
	assert.Equal(t, engine.StatusAccepted, accepted.Status)
	assert.Equal(t, int64(130), accepted.FinalPrice)

	rec = doJSON(t, e, http.MethodPost, "/orders/"+job.ID+"/bids", token(t, apiProvider), map[string]any{"price": 99})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Advance through the operational sequence; a skip is rejected.
	for _, target := range []engine.JobStatus{engine.StatusEnRoute, engine.StatusArrived} {
		rec = doJSON(t, e, http.MethodPost, "/orders/"+job.ID+"/advance", token(t, apiProvider), map[string]any{"target": target})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	rec = doJSON(t, e, http.MethodPost, "/orders/"+job.ID+"/advance", token(t, apiProvider), map[string]any{"target": engine.StatusCompleted})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Chat and media land on the shared timeline, admin included.
	rec = doJSON(t, e, http.MethodPost, "/orders/"+job.ID+"/messages", token(t, apiClient), map[string]any{"content": "the kitchen is flooding"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, e, http.MethodPost, "/orders/"+job.ID+"/media", token(t, apiProvider), map[string]any{"url": "https://media.example/before.jpg", "stage": "before"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, e, http.MethodPost, "/orders/"+job.ID+"/messages", token(t, apiAdmin), map[string]any{"content": "support is here to help"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, e, http.MethodGet, "/orders/"+job.ID+"/timeline", token(t, apiClient), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var tl struct {
		Timeline []engine.TimelineItem `json:"timeline"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tl))
	var adminSeen bool
	for _, item := range tl.Timeline {
		if item.SenderRole == engine.RoleAdmin {
			adminSeen = true
		}
	}
	assert.True(t, adminSeen)

	// Finish the job and leave a review.
	for _, target := range []engine.JobStatus{engine.StatusInProgress, engine.StatusPaymentPending, engine.StatusCompleted} {
		rec = doJSON(t, e, http.MethodPost, "/orders/"+job.ID+"/advance", token(t, apiProvider), map[string]any{"target": target})
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec = doJSON(t, e, http.MethodPost, "/orders/"+job.ID+"/review", token(t, apiClient), map[string]any{"rating": 5})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, e, http.MethodGet, "/providers/"+apiProvider.ID+"/profile", token(t, apiClient), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var profile struct {
		Rating float64 `json:"rating"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profile))
	assert.Equal(t, 5.0, profile.Rating)
}

func TestErrorMapping(t *testing.T) {
	e, _ := newTestAPI(t)
	registerProfile(t, e, apiProvider)

	rec := doJSON(t, e, http.MethodGet, "/orders/does-not-exist", token(t, apiClient), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	job := createOrder(t, e)

	rec = doJSON(t, e, http.MethodPost, "/orders/"+job.ID+"/bids", token(t, apiProvider), map[string]any{"price": -1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, e, http.MethodPost, "/orders/"+job.ID+"/accept", token(t, apiClient), map[string]any{"provider_id": "nobody"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, e, http.MethodPost, "/orders/"+job.ID+"/cancel", token(t, apiClient), map[string]any{"reason": "resolved it myself"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, e, http.MethodPost, "/orders/"+job.ID+"/cancel", token(t, apiClient), nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "terminal job")
}

func TestCancelPermissionOverHTTP(t *testing.T) {
	e, store := newTestAPI(t)
	registerProfile(t, e, apiProvider)
	job := createOrder(t, e)

	rec := doJSON(t, e, http.MethodPost, "/orders/"+job.ID+"/bids", token(t, apiProvider), map[string]any{"price": 100})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, e, http.MethodPost, "/orders/"+job.ID+"/accept", token(t, apiClient), map[string]any{"provider_id": apiProvider.ID})
	require.Equal(t, http.StatusOK, rec.Code)
	for _, target := range []engine.JobStatus{engine.StatusEnRoute, engine.StatusArrived, engine.StatusInProgress} {
		rec = doJSON(t, e, http.MethodPost, "/orders/"+job.ID+"/advance", token(t, apiProvider), map[string]any{"target": target})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec = doJSON(t, e, http.MethodPost, "/orders/"+job.ID+"/cancel", token(t, apiClient), map[string]any{"reason": "too slow"})
	assert.Equal(t, http.StatusConflict, rec.Code, "client cannot cancel once work started")

	rec = doJSON(t, e, http.MethodPost, "/orders/"+job.ID+"/cancel", token(t, apiAdmin), map[string]any{"reason": "dispute"})
	assert.Equal(t, http.StatusOK, rec.Code)

	got, err := store.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, engine.StatusCancelled, got.Status)
}

func TestProviderOrdersListing(t *testing.T) {
	e, _ := newTestAPI(t)
	registerProfile(t, e, apiProvider)

	var ids []string
	for i := 0; i < 3; i++ {
		job := createOrder(t, e)
		ids = append(ids, job.ID)
		rec := doJSON(t, e, http.MethodPost, "/orders/"+job.ID+"/bids", token(t, apiProvider), map[string]any{"price": int64(100 + i)})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := doJSON(t, e, http.MethodGet, "/orders/mine", token(t, apiProvider), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var mine struct {
		Orders []engine.Job `json:"orders"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &mine))
	assert.Len(t, mine.Orders, len(ids))
}

func TestProfileValidation(t *testing.T) {
	e, _ := newTestAPI(t)

	rec := doJSON(t, e, http.MethodPost, "/providers/profile", token(t, apiProvider), map[string]any{
		"capabilities": []string{"pipe_repair"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "service categories are required")

	rec = doJSON(t, e, http.MethodGet, fmt.Sprintf("/providers/%s/profile", "ghost"), token(t, apiClient), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
