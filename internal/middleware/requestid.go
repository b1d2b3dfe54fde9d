// Package middleware provides HTTP middleware for lifeboard services
package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// HeaderXRequestID is the request ID header name
const HeaderXRequestID = "X-Request-ID"

// GetRequestID retrieves the request ID from the Gin context
func GetRequestID(c *gin.Context) string {
	if requestID, exists := c.Get("request_id"); exists {
		if id, ok := requestID.(string); ok {
			return id
		}
	}
	return ""
}

// RequestID generates a unique request ID for each incoming request.
// If an X-Request-ID header is present it is reused; otherwise a UUID
// is generated. The ID is stored in the Gin context and echoed on the
// response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(HeaderXRequestID)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set("request_id", requestID)
		c.Header(HeaderXRequestID, requestID)
		c.Next()
	}
}
