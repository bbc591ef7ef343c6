package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"aliscan/pkg/aliexpress"
	"aliscan/pkg/response"
)

// APIError represents a custom API error structure
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("API Error (Code: %d, Message: %s): %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("API Error (Code: %d, Message: %s)", e.Code, e.Message)
}

// Unwrap supports error wrapping
func (e *APIError) Unwrap() error {
	return e.Err
}

// NewBadRequestError creates a 400 Bad Request error
func NewBadRequestError(message string, err error) *APIError {
	return &APIError{Code: http.StatusBadRequest, Message: message, Err: err}
}

// StatusForKind maps a client error kind to an HTTP status.
func StatusForKind(kind aliexpress.Kind) int {
	switch kind {
	case aliexpress.KindInvalidProductID:
		return http.StatusBadRequest
	case aliexpress.KindCaptcha:
		return http.StatusTooManyRequests
	case aliexpress.KindBrowserLaunch, aliexpress.KindSessionUnhealthy, aliexpress.KindAuthTokenExpired:
		return http.StatusServiceUnavailable
	case aliexpress.KindNetwork, aliexpress.KindAPI:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// HandleError provides unified error handling
func HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		response.Error(c, apiErr.Code, apiErr.Message, "", apiErr.Err)
		return
	}

	var clientErr *aliexpress.Error
	if errors.As(err, &clientErr) {
		response.Error(c, StatusForKind(clientErr.Kind), clientErr.Message, string(clientErr.Kind), err)
		return
	}

	response.Error(c, http.StatusInternalServerError, "Internal server error", "", err)
}
