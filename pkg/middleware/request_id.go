package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"aliscan/pkg/logger"
	"aliscan/pkg/response"
)

// RequestID middleware to generate request ID if not present
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set(response.RequestIDKey, requestID)
		c.Writer.Header().Set("X-Request-ID", requestID)

		// Handlers log through logger.FromContext(c.Request.Context()).
		c.Request = c.Request.WithContext(logger.WithRequestID(c.Request.Context(), requestID))

		c.Next()
	}
}
