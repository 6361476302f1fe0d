package broker

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/kiosklink/assist/internal/config"
	"github.com/kiosklink/assist/internal/domain"
)

type submitResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// SetupRouter builds the broker's HTTP surface. The kiosk and the dashboard
// run on different origins, so ticket ingest is CORS-open.
func SetupRouter(ctx context.Context, cfg *config.Config, hub *Hub) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())
	r.Use(cors.Default())

	r.POST("/api/ticket", func(c *gin.Context) {
		var ticket domain.Ticket
		if err := c.ShouldBindJSON(&ticket); err != nil {
			c.JSON(http.StatusBadRequest, submitResponse{
				Success: false,
				Message: "ticket submission failed: invalid JSON",
			})
			return
		}
		ticket.Normalize(uuid.NewString(), time.Now())

		reached := hub.PublishTicket(ticket)
		log.Info().Str("module", "broker").
			Str("ticket", ticket.ID).
			Str("session", string(ticket.SessionID)).
			Str("priority", string(ticket.Priority)).
			Int("dashboards", reached).
			Msg("ticket submitted")

		c.JSON(http.StatusOK, submitResponse{
			Success: true,
			Message: fmt.Sprintf("ticket %s dispatched to %d dashboards", ticket.ID, reached),
		})
	})

	r.GET("/ws/dashboard", func(c *gin.Context) {
		hub.HandleDashboard(ctx, c)
	})

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "dashboards": hub.Dashboards()})
	})

	log.Info().Str("module", "broker").Int("port", cfg.TicketPort).Msg("router setup")
	return r
}
