package api

import (
	"net/http"

	"github.com/Domenick1991/courtbooking/internal/domain"
	"github.com/Domenick1991/courtbooking/internal/service/booking"
	"github.com/gin-gonic/gin"
)

type BookingHandler struct {
	service booking.BookingUseCase
}

type selectSlotRequest struct {
	SessionID string `json:"session_id"`
	VenueID   string `json:"venue_id" binding:"required"`
	Date      string `json:"date" binding:"required"`
	StartTime string `json:"start_time" binding:"required"`
	CourtName string `json:"court_name"`
	BookerID  string `json:"booker_id"`
	Email     string `json:"email" binding:"required"`
}

type resolveRequest struct {
	Alternative domain.AlternativeSlot `json:"alternative"`
}

type alternativesResponse struct {
	Alternatives []domain.AlternativeSlot `json:"alternatives"`
}

func NewBookingHandler(service booking.BookingUseCase) *BookingHandler {
	return &BookingHandler{service: service}
}

func (h *BookingHandler) Register(router *gin.RouterGroup) {
	router.POST("", h.create)
	router.GET("/:id", h.get)
	router.PUT("/:id/commit", h.commit)
	router.GET("/:id/alternatives", h.alternatives)
	router.PUT("/:id/resolve", h.resolve)
	router.DELETE("/:id", h.cancel)
}

func (h *BookingHandler) create(c *gin.Context) {
	var req selectSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	attempt, err := h.service.SelectSlot(c.Request.Context(), booking.SelectSlotInput{
		SessionID: req.SessionID,
		VenueID:   req.VenueID,
		Date:      req.Date,
		StartTime: req.StartTime,
		CourtName: req.CourtName,
		BookerID:  req.BookerID,
		Email:     req.Email,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, attempt)
}

func (h *BookingHandler) get(c *gin.Context) {
	attempt, err := h.service.GetAttempt(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, attempt)
}

// commit answers 200 for both outcomes; a conflict is part of the body, not an error status.
func (h *BookingHandler) commit(c *gin.Context) {
	result, err := h.service.CommitBooking(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *BookingHandler) alternatives(c *gin.Context) {
	alternatives, err := h.service.Alternatives(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, alternativesResponse{Alternatives: alternatives})
}

func (h *BookingHandler) resolve(c *gin.Context) {
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.service.ResolveWithAlternative(c.Request.Context(), c.Param("id"), req.Alternative)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *BookingHandler) cancel(c *gin.Context) {
	attempt, err := h.service.CancelBooking(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, attempt)
}
