package response

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"aliscan/pkg/logger"
)

// Error response field names
const (
	FieldError     = "error"
	FieldMessage   = "message"
	FieldCode      = "code"
	FieldKind      = "kind"
	FieldDetails   = "details"
	FieldRequestID = "request_id"
)

// RequestIDKey is the gin context key the RequestID middleware sets.
const RequestIDKey = "RequestID"

// JSON writes data with the given status code.
func JSON(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, data)
}

// Error writes an error body. kind is the client error kind and may be empty.
func Error(c *gin.Context, statusCode int, message, kind string, err error) {
	body := gin.H{
		FieldError:     true,
		FieldMessage:   message,
		FieldCode:      statusCode,
		FieldRequestID: c.GetString(RequestIDKey),
	}
	if kind != "" {
		body[FieldKind] = kind
	}

	if err != nil {
		body[FieldDetails] = err.Error()
		logger.Error("API error",
			zap.String("message", message),
			zap.String("kind", kind),
			zap.Error(err),
			zap.Int("status_code", statusCode),
			zap.String("request_id", c.GetString(RequestIDKey)))
	}

	c.AbortWithStatusJSON(statusCode, body)
}
