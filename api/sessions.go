package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/Domenick1991/courtbooking/internal/domain"
	"github.com/Domenick1991/courtbooking/internal/service/availability"
	"github.com/gin-gonic/gin"
)

// Sessions is the viewer-session registry behind the availability endpoints.
type Sessions interface {
	Open() *availability.Session
	Get(id string) (*availability.Session, error)
	Close(id string) error
}

const streamBuffer = 16

type SessionHandler struct {
	sessions Sessions
}

type selectionRequest struct {
	VenueID string `json:"venue_id" binding:"required"`
	Date    string `json:"date" binding:"required"`
}

type sessionResponse struct {
	ID string `json:"id"`
}

type changesResponse struct {
	Changes []domain.SlotChange `json:"changes"`
}

func NewSessionHandler(sessions Sessions) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

func (h *SessionHandler) Register(router *gin.RouterGroup, refreshLimit gin.HandlerFunc) {
	router.POST("", h.open)
	router.PUT("/:id/selection", h.selectDay)
	router.GET("/:id/slots", h.slots)
	router.POST("/:id/refresh", refreshLimit, h.refresh)
	router.GET("/:id/changes", h.changes)
	router.GET("/:id/stream", h.stream)
	router.DELETE("/:id", h.close)
}

func (h *SessionHandler) open(c *gin.Context) {
	session := h.sessions.Open()
	c.JSON(http.StatusCreated, sessionResponse{ID: session.ID})
}

func (h *SessionHandler) selectDay(c *gin.Context) {
	var req selectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	date, err := time.Parse(domain.DateLayout, req.Date)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
		return
	}

	session, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	view, err := session.Select(c.Request.Context(), req.VenueID, date)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *SessionHandler) slots(c *gin.Context) {
	session, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	view, err := session.View()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *SessionHandler) refresh(c *gin.Context) {
	session, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	changes, err := session.Refresh(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if changes == nil {
		changes = []domain.SlotChange{}
	}
	c.JSON(http.StatusOK, changesResponse{Changes: changes})
}

func (h *SessionHandler) changes(c *gin.Context) {
	session, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	changes, err := session.Changes()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, changesResponse{Changes: changes})
}

// stream pushes the current day as a "snapshot" event followed by one "slot" event per
// transition. It ends when the client leaves or the session switches day or closes.
func (h *SessionHandler) stream(c *gin.Context) {
	session, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	changes, unsubscribe, err := session.Subscribe(streamBuffer)
	if err != nil {
		writeError(c, err)
		return
	}
	defer unsubscribe()

	view, err := session.View()
	if err != nil {
		writeError(c, err)
		return
	}

	c.SSEvent("snapshot", view)
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case change, ok := <-changes:
			if !ok {
				return false
			}
			c.SSEvent("slot", change)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func (h *SessionHandler) close(c *gin.Context) {
	// closing twice is not an error
	if err := h.sessions.Close(c.Param("id")); err != nil && !errors.Is(err, availability.ErrSessionNotFound) {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
