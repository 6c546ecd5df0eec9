package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/groupshout/internal/config"
	"github.com/vovakirdan/groupshout/internal/core"
	"github.com/vovakirdan/groupshout/internal/store"
)

// NewServer builds an HTTP server with the websocket gateway and the read-only API.
func NewServer(hub *core.Hub, results store.ResultStore, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	router.GET("/health", healthHandler)
	router.GET("/ws", gin.WrapH(NewWSHandler(hub, cfg, logger)))

	rooms := NewRoomHandlers(hub, cfg.PublicURL, logger)
	resultsHandlers := NewResultsHandlers(results, logger)

	api := router.Group("/api")
	{
		api.GET("/rooms/:pin", rooms.GetRoom)
		api.GET("/rooms/:pin/invite.png", rooms.Invite)
		api.GET("/rounds/:id/results", resultsHandlers.ListResults)
	}

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
