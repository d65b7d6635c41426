package handlers

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"safar/logging"
	"safar/metrics"
)

const requestIDHeader = "X-Request-ID"

// RequestLogger tags each request with an id, logs method, path, status,
// bytes and duration when it completes, and records API metrics.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Header(requestIDHeader, id)
		c.Request = c.Request.WithContext(logging.WithRequestID(c.Request.Context(), id))

		c.Next()

		dur := time.Since(start)
		status := c.Writer.Status()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		metrics.RecordAPIRequest(c.Request.Method, endpoint, strconv.Itoa(status), dur)

		evt := logging.Ctx(c.Request.Context()).Info()
		if status >= 500 {
			evt = logging.Ctx(c.Request.Context()).Error()
		}
		evt.Str("method", c.Request.Method).
			Str("path", c.Request.URL.RequestURI()).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("dur", dur).
			Msg("request")
	}
}
