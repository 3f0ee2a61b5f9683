package server

import (
	"time"

	"github.com/gin-gonic/gin"

	"auction-house/utils"
)

// RequestLoggerMiddleware logs incoming requests with timing
func RequestLoggerMiddleware(c *gin.Context) {
	start := time.Now()

	c.Next() // process request

	utils.Info("HTTP Request", map[string]any{
		"method":  c.Request.Method,
		"path":    c.Request.URL.Path,
		"status":  c.Writer.Status(),
		"latency": time.Since(start).String(),
	})
}

// IdentityMiddleware copies the gateway-injected user identity into the
// request context. Authentication itself happens upstream; handlers that
// need an actor reject requests without one.
func IdentityMiddleware(c *gin.Context) {
	if userID := c.GetHeader("X-User-ID"); userID != "" {
		c.Set("user_id", userID)
	}
	c.Next()
}
