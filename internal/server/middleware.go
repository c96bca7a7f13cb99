package server

import (
	"strconv"
	"time"

	"github.com/dsworkflows/chidata/pkg/metrics"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// requestLogger logs every request and records HTTP metrics.
func requestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()

		metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		metrics.HTTPDuration.WithLabelValues(route).Observe(elapsed.Seconds())

		event := logger.Debug()
		switch {
		case status >= 500:
			event = logger.Error()
		case status >= 400:
			event = logger.Warn()
		}
		if err := c.Errors.Last(); err != nil {
			event = event.Err(err.Err)
		}
		event.
			Str("method", c.Request.Method).
			Str("route", route).
			Str("path", c.Request.URL.Path).
			Int("status_code", status).
			Dur("duration", elapsed).
			Msg("HTTP request")
	}
}
