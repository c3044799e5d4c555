/**
 * @description
 * This file sets up the HTTP router for the checkout-service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies any
 * necessary middleware, such as for handle-token verification.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/go-chi/cors: CORS middleware, the API is called from browsers.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// CheckoutRoutes creates and returns a new router for the checkout service.
func CheckoutRoutes(h *CheckoutHandlers, handleSecret string, requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any major browsers
	}))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Opening a checkout mints the handle token, so it is unauthenticated.
	r.Post("/checkout", h.OpenCheckoutHandler)

	// Every step call must carry the handle token for its attempt.
	r.Group(func(r chi.Router) {
		r.Use(HandleAuthMiddleware(handleSecret))

		r.Get("/checkout/{attemptID}", h.GetAttemptHandler)
		r.Post("/checkout/{attemptID}/address", h.SubmitAddressHandler)
		r.Post("/checkout/{attemptID}/session", h.InitializeSessionHandler)
		r.Post("/checkout/{attemptID}/confirm", h.ConfirmPaymentHandler)
		r.Delete("/checkout/{attemptID}", h.CloseCheckoutHandler)
	})

	return r
}
