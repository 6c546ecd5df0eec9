package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// LoggerMiddleware creates a middleware that logs HTTP requests.
func LoggerMiddleware(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		// Websocket sessions are logged by the gateway itself.
		if c.FullPath() == "/ws" {
			return
		}
		ev := logger.Info()
		if c.Writer.Status() >= 500 {
			ev = logger.Warn()
		}
		ev.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Str("client_ip", c.ClientIP()).
			Dur("duration", time.Since(start)).
			Msg("http request")
	}
}
