package handlers

import (
	"context"
	"time"

	"aliscan/pkg/aliexpress"
	"aliscan/pkg/config"
	"aliscan/pkg/logger"
	"aliscan/pkg/session"
)

// Client is the part of *aliexpress.Client the HTTP API drives.
type Client interface {
	FetchProduct(ctx context.Context, input string) (*aliexpress.RawResponse, error)
	CookiesForRequests(ctx context.Context) map[string]string
	Status() aliexpress.Status
	Restart(ctx context.Context) (*session.Handle, error)
	SaveSessionCookies(ctx context.Context) error
}

// HandlerService provides HTTP handlers for the API
type HandlerService struct {
	config    *config.Config
	client    Client
	startedAt time.Time
}

// NewHandlerService creates a new handler service
func NewHandlerService(cfg *config.Config, client Client) *HandlerService {
	logger.Info("Initializing handler service")
	return &HandlerService{
		config:    cfg,
		client:    client,
		startedAt: time.Now(),
	}
}

// GetConfig returns the handler service configuration
func (h *HandlerService) GetConfig() *config.Config {
	return h.config
}
