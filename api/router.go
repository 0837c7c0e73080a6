package api

import (
	"net/http"
	"time"

	"github.com/Domenick1991/courtbooking/internal/service/booking"
	"github.com/Domenick1991/courtbooking/internal/service/venues"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type RouterConfig struct {
	AllowedOrigins   []string
	RefreshPerMinute int
}

// NewRouter wires every HTTP endpoint under /api/v1 plus /health.
func NewRouter(cfg RouterConfig, log *zap.Logger, venueSvc venues.VenueUseCase, sessions Sessions, bookingSvc booking.BookingUseCase) *gin.Engine {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("http")

	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(log))

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: !containsWildcard(origins),
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	NewVenueHandler(venueSvc).Register(v1.Group("/venues"))
	NewSessionHandler(sessions).Register(v1.Group("/sessions"), RateLimit(cfg.RefreshPerMinute, log))
	NewBookingHandler(bookingSvc).Register(v1.Group("/bookings"))

	return router
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
