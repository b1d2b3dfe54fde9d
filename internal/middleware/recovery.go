package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Recovery returns a middleware that recovers from panics. It logs the
// stack trace with the request ID and returns a JSON error response.
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				requestID := GetRequestID(c)
				if requestID == "" {
					requestID = uuid.New().String()
				}

				logger.Error("Panic recovered",
					zap.String("request_id", requestID),
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
					zap.Any("panic", err),
					zap.String("stack", string(debug.Stack())),
				)

				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error":      "INTERNAL_ERROR",
					"message":    "Internal server error",
					"request_id": requestID,
					"timestamp":  time.Now().UTC().Format(time.RFC3339),
				})
			}
		}()

		c.Next()
	}
}
