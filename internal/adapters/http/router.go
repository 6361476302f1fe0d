// Package http wires the session registry's REST surface and the signaling
// websocket endpoint into a gin engine.
package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/kiosklink/assist/internal/adapters/signal"
	"github.com/kiosklink/assist/internal/app"
	"github.com/kiosklink/assist/internal/config"
	"github.com/kiosklink/assist/internal/domain"
)

type createSessionResponse struct {
	SessionID  domain.SessionID   `json:"sessionId"`
	ICEServers []domain.ICEServer `json:"iceServers"`
}

type healthResponse struct {
	Status         string             `json:"status"`
	ActiveSessions int                `json:"activeSessions"`
	ICEServers     []domain.ICEServer `json:"iceServers"`
}

func SetupRouter(ctx context.Context, cfg *config.Config, reg *app.Registry) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	ctl := signal.NewController(reg, cfg.HeartbeatInterval, cfg.ReadLimit)

	r.POST("/sessions", func(c *gin.Context) {
		id, ice := reg.CreateSession()
		c.JSON(http.StatusOK, createSessionResponse{SessionID: id, ICEServers: ice})
	})

	r.GET("/sessions", func(c *gin.Context) {
		c.JSON(http.StatusOK, reg.ListSessions())
	})

	r.DELETE("/sessions/:id", func(c *gin.Context) {
		if reg.DeleteSession(domain.SessionID(c.Param("id"))) {
			c.Status(http.StatusNoContent)
			return
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
	})

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, healthResponse{
			Status:         "ok",
			ActiveSessions: reg.ActiveSessions(),
			ICEServers:     reg.ICEServers(),
		})
	})

	r.GET("/ws/signal", func(c *gin.Context) {
		ctl.HandleSignal(ctx, c)
	})

	log.Info().Str("module", "adapters.http").Int("port", cfg.SignalPort).Msg("router setup")
	return r
}
