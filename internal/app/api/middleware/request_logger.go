package middleware

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/membership/pkg/logctx"
)

// RequestLoggerMiddleware attaches a request-scoped logger enriched with
// the correlation id to gin.Context and the request context.
func RequestLoggerMiddleware(base *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetString("correlationID")

		reqLogger := base.With("correlation_id", id)
		c.Set("logger", reqLogger)

		// also attach to std context
		c.Request = c.Request.WithContext(logctx.WithLogger(c.Request.Context(), reqLogger))

		// mirror correlation id to response header when available
		if id != "" {
			c.Writer.Header().Set("X-Request-ID", id)
		}

		c.Next()
	}
}
