package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/fatflowers/membership/pkg/logctx"
)

// CorrelationMiddleware attaches a correlation id to the request context.
// It reads X-Request-ID if provided by the client; otherwise generates a UUID.
// The id is stored in both gin.Context (key: "correlationID") and the
// request's context.Context, and travels on every event the request emits.
func CorrelationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}

		c.Set("correlationID", id)
		c.Request = c.Request.WithContext(logctx.WithCorrelationID(c.Request.Context(), id))

		c.Next()
	}
}
