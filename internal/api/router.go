/**
 * @description
 * This file sets up the HTTP router for the wallet service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies the
 * middleware stack. The webhook route lives outside the authentication group
 * because its only credential is the body signature; the internal routes are
 * guarded by the shared service key instead.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/go-chi/cors: CORS middleware.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/payvault/wallet-service/internal/app"
)

// WalletRoutes creates and returns the router for the wallet service.
func WalletRoutes(h *WalletHandlers, keyManager *app.KeyManager, jwtSecret, internalKey string) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// The gateway authenticates with a body signature, not a credential header.
	r.Post("/wallet/paystack/webhook", h.PaystackWebhookHandler)

	// Group routes that require authentication.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(jwtSecret, keyManager))

		r.Post("/wallet/deposit", h.DepositHandler)
		r.Get("/wallet/deposit/{reference}/status", h.DepositStatusHandler)
		r.Get("/wallet/balance", h.BalanceHandler)
		r.Post("/wallet/transfer", h.TransferHandler)
		r.Get("/wallet/transactions", h.TransactionsHandler)

		// Credential lifecycle endpoints; user identities only.
		r.Post("/keys/create", h.CreateKeyHandler)
		r.Post("/keys/rollover", h.RolloverKeyHandler)
		r.Post("/keys/{keyID}/revoke", h.RevokeKeyHandler)
		r.Get("/keys", h.ListKeysHandler)
	})

	// Service-to-service endpoints guarded by the shared internal key.
	r.Group(func(r chi.Router) {
		r.Use(InternalKeyMiddleware(internalKey))

		r.Post("/internal/wallets", h.ProvisionWalletHandler)
		r.Delete("/internal/users/{userID}", h.DeleteUserHandler)
	})

	return r
}
