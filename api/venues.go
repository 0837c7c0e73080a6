package api

import (
	"net/http"

	"github.com/Domenick1991/courtbooking/internal/service/venues"
	"github.com/gin-gonic/gin"
)

type VenueHandler struct {
	service venues.VenueUseCase
}

func NewVenueHandler(service venues.VenueUseCase) *VenueHandler {
	return &VenueHandler{service: service}
}

func (h *VenueHandler) Register(router *gin.RouterGroup) {
	router.GET("", h.list)
	router.GET("/:id", h.get)
}

func (h *VenueHandler) list(c *gin.Context) {
	list, err := h.service.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *VenueHandler) get(c *gin.Context) {
	venue, err := h.service.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, venue)
}
