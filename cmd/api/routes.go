package main

import (
	"net/http"

	"github.com/rs/zerolog"

	httphandlers "finsync/internal/interfaces/http"
	"finsync/internal/shared/config"
	"finsync/internal/shared/middleware"
)

// SetupRoutes configures all HTTP routes and returns the final handler with middleware.
func SetupRoutes(deps *Dependencies, cfg *config.Config, log zerolog.Logger) http.Handler {
	mux := http.NewServeMux()

	// Public
	mux.HandleFunc("/health", httphandlers.HandleHealth)
	mux.HandleFunc("/api/webhooks/plaid", deps.WebhookHandler.HandlePlaidWebhook)

	// Protected routes
	authMiddleware := middleware.Auth(deps.JWT)

	mux.Handle("/api/transactions/", authMiddleware(http.HandlerFunc(deps.TransactionHandler.HandleListTransactions)))
	mux.Handle("/api/transactions/{id}", authMiddleware(http.HandlerFunc(deps.TransactionHandler.HandleGetTransaction)))
	mux.Handle("/api/sync", authMiddleware(http.HandlerFunc(deps.SyncHandler.HandleSync)))
	mux.Handle("/api/items/", authMiddleware(http.HandlerFunc(deps.ItemHandler.HandleListItems)))
	mux.Handle("/api/items/link-token", authMiddleware(http.HandlerFunc(deps.ItemHandler.HandleLinkToken)))
	mux.Handle("/api/items/exchange", authMiddleware(http.HandlerFunc(deps.ItemHandler.HandleExchange)))
	mux.Handle("/api/payment-methods/", authMiddleware(http.HandlerFunc(deps.PaymentMethodHandler.HandleListPaymentMethods)))
	mux.Handle("/api/payment-methods/{id}", authMiddleware(http.HandlerFunc(deps.PaymentMethodHandler.HandlePaymentMethodByID)))
	mux.Handle("/api/notifications/devices", authMiddleware(http.HandlerFunc(deps.NotificationHandler.HandleRegisterDevice)))

	// Apply global middleware
	handler := middleware.Logging(log)(middleware.CORS(cfg.Server.AllowedHosts)(mux))
	if cfg.Telemetry.Enabled {
		handler = middleware.Tracing(middleware.Telemetry(handler))
	}

	if cfg.TLS.Enabled {
		handler = middleware.HSTS(middleware.SecureCookies(handler))
		log.Info().Msg("TLS security middleware enabled (HSTS + SecureCookies)")
	}

	return handler
}
