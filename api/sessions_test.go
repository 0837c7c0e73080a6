package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Domenick1991/courtbooking/internal/domain"
	"github.com/Domenick1991/courtbooking/internal/service/availability"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubDaySource struct {
	states map[string]domain.VenueState
	err    error
}

func (s *stubDaySource) VenueState(_ context.Context, venueID string, _ time.Time) (domain.VenueState, error) {
	if s.err != nil {
		return domain.VenueState{}, s.err
	}
	state, ok := s.states[venueID]
	if !ok {
		return domain.VenueState{}, errors.New("venue not found")
	}
	return state, nil
}

func (s *stubDaySource) Seed(context.Context, string, time.Time) (availability.Seed, error) {
	return nil, nil
}

func newSessionRouter(source availability.DaySource, refreshPerMinute int) (*gin.Engine, *availability.Hub) {
	gin.SetMode(gin.TestMode)
	hub := availability.NewHub(source, zap.NewNop(), availability.HubConfig{Simulate: true, FetchTimeout: time.Second})
	router := NewRouter(RouterConfig{RefreshPerMinute: refreshPerMinute}, zap.NewNop(), &MockVenueUseCase{}, hub, &MockBookingUseCase{})
	return router, hub
}

func doRequest(router http.Handler, method, target, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func openSession(t *testing.T, router http.Handler) string {
	t.Helper()
	w := doRequest(router, "POST", "/api/v1/sessions", "")
	require.Equal(t, http.StatusCreated, w.Code)

	var resp sessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.ID)
	return resp.ID
}

func mondayVenues() map[string]domain.VenueState {
	return map[string]domain.VenueState{
		"venue-1": {Hours: domain.OperatingHours{time.Monday: {Open: "09:00", Close: "12:00"}}},
		"venue-2": {Hours: domain.OperatingHours{time.Monday: {Closed: true}}},
	}
}

func TestSessionHandler_selectAndView(t *testing.T) {
	router, _ := newSessionRouter(&stubDaySource{states: mondayVenues()}, 0)
	id := openSession(t, router)

	w := doRequest(router, "GET", "/api/v1/sessions/"+id+"/slots", "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doRequest(router, "PUT", "/api/v1/sessions/"+id+"/selection", `{"venue_id":"venue-1","date":"2025-06-02"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var view availability.DayView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, availability.DayStateOpen, view.State)
	require.Len(t, view.Slots, 3)
	assert.Equal(t, "09:00", view.Slots[0].Time)

	w = doRequest(router, "GET", "/api/v1/sessions/"+id+"/slots", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(router, "PUT", "/api/v1/sessions/"+id+"/selection", `{"venue_id":"venue-2","date":"2025-06-02"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, availability.DayStateClosed, view.State)
	assert.Empty(t, view.Slots)
}

func TestSessionHandler_selectValidation(t *testing.T) {
	router, _ := newSessionRouter(&stubDaySource{states: mondayVenues()}, 0)
	id := openSession(t, router)

	w := doRequest(router, "PUT", "/api/v1/sessions/"+id+"/selection", `{"venue_id":"venue-1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(router, "PUT", "/api/v1/sessions/"+id+"/selection", `{"venue_id":"venue-1","date":"02/06/2025"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(router, "PUT", "/api/v1/sessions/missing/selection", `{"venue_id":"venue-1","date":"2025-06-02"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSessionHandler_fetchFailureIsRetryable(t *testing.T) {
	router, _ := newSessionRouter(&stubDaySource{err: errors.New("connection refused")}, 0)
	id := openSession(t, router)

	w := doRequest(router, "PUT", "/api/v1/sessions/"+id+"/selection", `{"venue_id":"venue-1","date":"2025-06-02"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, true, body["retryable"])
}

func TestSessionHandler_refreshAndChanges(t *testing.T) {
	router, _ := newSessionRouter(&stubDaySource{states: mondayVenues()}, 0)
	id := openSession(t, router)

	w := doRequest(router, "POST", "/api/v1/sessions/"+id+"/refresh", "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doRequest(router, "PUT", "/api/v1/sessions/"+id+"/selection", `{"venue_id":"venue-1","date":"2025-06-02"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(router, "POST", "/api/v1/sessions/"+id+"/refresh", "")
	require.Equal(t, http.StatusOK, w.Code)

	var refreshed changesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &refreshed))
	require.NotEmpty(t, refreshed.Changes)
	assert.LessOrEqual(t, len(refreshed.Changes), 3)

	w = doRequest(router, "GET", "/api/v1/sessions/"+id+"/changes", "")
	require.Equal(t, http.StatusOK, w.Code)

	var recent changesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &recent))
	assert.Equal(t, refreshed.Changes[len(refreshed.Changes)-1].Time, recent.Changes[0].Time)
}

func TestSessionHandler_refreshRateLimited(t *testing.T) {
	router, _ := newSessionRouter(&stubDaySource{states: mondayVenues()}, 4)
	id := openSession(t, router)

	w := doRequest(router, "PUT", "/api/v1/sessions/"+id+"/selection", `{"venue_id":"venue-1","date":"2025-06-02"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(router, "POST", "/api/v1/sessions/"+id+"/refresh", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(router, "POST", "/api/v1/sessions/"+id+"/refresh", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	// another session has its own budget
	other := openSession(t, router)
	w = doRequest(router, "PUT", "/api/v1/sessions/"+other+"/selection", `{"venue_id":"venue-1","date":"2025-06-02"}`)
	require.Equal(t, http.StatusOK, w.Code)
	w = doRequest(router, "POST", "/api/v1/sessions/"+other+"/refresh", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

type sseEvent struct {
	name string
	data string
}

func readEvent(t *testing.T, r *bufio.Reader) sseEvent {
	t.Helper()
	var ev sseEvent
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			if ev.name != "" {
				return ev
			}
		case strings.HasPrefix(line, "event:"):
			ev.name = strings.TrimPrefix(line, "event:")
		case strings.HasPrefix(line, "data:"):
			ev.data = strings.TrimPrefix(line, "data:")
		}
	}
}

func TestSessionHandler_stream(t *testing.T) {
	router, hub := newSessionRouter(&stubDaySource{states: mondayVenues()}, 0)
	server := httptest.NewServer(router)
	defer server.Close()

	id := openSession(t, router)

	w := doRequest(router, "GET", "/api/v1/sessions/"+id+"/stream", "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doRequest(router, "PUT", "/api/v1/sessions/"+id+"/selection", `{"venue_id":"venue-1","date":"2025-06-02"}`)
	require.Equal(t, http.StatusOK, w.Code)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, "GET", server.URL+"/api/v1/sessions/"+id+"/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	reader := bufio.NewReader(resp.Body)
	ev := readEvent(t, reader)
	require.Equal(t, "snapshot", ev.name)
	var view availability.DayView
	require.NoError(t, json.Unmarshal([]byte(ev.data), &view))
	assert.Equal(t, "venue-1", view.VenueID)
	require.Len(t, view.Slots, 3)

	applied := hub.Apply(domain.SlotChange{VenueID: "venue-1", Date: "2025-06-02", Time: "10:00", Available: false, BookedBy: []string{"u1"}})
	require.Equal(t, 1, applied)

	ev = readEvent(t, reader)
	require.Equal(t, "slot", ev.name)
	var change domain.SlotChange
	require.NoError(t, json.Unmarshal([]byte(ev.data), &change))
	assert.Equal(t, "10:00", change.Time)
	assert.False(t, change.Available)
	assert.Equal(t, []string{"u1"}, change.BookedBy)

	// closing the session ends the stream
	require.NoError(t, hub.Close(id))
	_, err = io.ReadAll(reader)
	assert.NoError(t, err)
}

func TestSessionHandler_close(t *testing.T) {
	router, hub := newSessionRouter(&stubDaySource{states: mondayVenues()}, 0)
	id := openSession(t, router)

	w := doRequest(router, "DELETE", "/api/v1/sessions/"+id, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	_, err := hub.Get(id)
	assert.ErrorIs(t, err, availability.ErrSessionNotFound)

	w = doRequest(router, "DELETE", "/api/v1/sessions/"+id, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doRequest(router, "GET", "/api/v1/sessions/"+id+"/slots", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_health(t *testing.T) {
	router, _ := newSessionRouter(&stubDaySource{}, 0)
	w := doRequest(router, "GET", "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}
