package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"basegraph.app/assist/common/logger"
)

const RequestIDHeader = "X-Request-Id"

// RequestID propagates the caller's X-Request-Id, or assigns one, and attaches it to
// the request context so every log line of the request carries it.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Header(RequestIDHeader, id)

		ctx := logger.WithLogFields(c.Request.Context(), logger.LogFields{RequestID: logger.Ptr(id)})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
