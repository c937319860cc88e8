package routes

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/stanstork/chatpush/internal/handlers"
	"github.com/stanstork/chatpush/internal/middleware"
)

// NewRouter sets up the service routes. webhookSecretHash may be empty.
func NewRouter(webhook *handlers.WebhookHandler, webhookSecretHash string, logger zerolog.Logger) *mux.Router {
	router := mux.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.LoggingMiddleware(logger))

	router.HandleFunc("/health", handlers.HealthCheck).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	// Database webhook
	hooks := router.PathPrefix("/webhooks").Subrouter()
	hooks.Use(middleware.WebhookSecret(webhookSecretHash))
	hooks.HandleFunc("/messages", webhook.MessageInserted).Methods(http.MethodPost)

	return router
}
