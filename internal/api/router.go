package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/freshpress/laundromat-backend/internal/api/handlers"
	"github.com/freshpress/laundromat-backend/internal/config"
	"github.com/freshpress/laundromat-backend/internal/metrics"
	"github.com/freshpress/laundromat-backend/internal/middleware"
)

func NewRouter(cfg config.Config, authH *handlers.AuthHandler, walletH *handlers.WalletHandler, authMW *middleware.AuthMiddleware) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recover, middleware.RateLimit(cfg.RateRPS), middleware.HTTPMetrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{cfg.FrontendURL},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok")) })
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", authH.Register)
		r.Post("/auth/login", authH.Login)
		r.Post("/auth/refresh", authH.Refresh)

		// The gateway calls these without credentials.
		r.Get("/wallet/verify", walletH.Verify)
		r.Post("/wallet/webhook", walletH.Webhook)

		r.Group(func(r chi.Router) {
			r.Use(authMW.Auth)
			r.Post("/wallet/topup", walletH.TopUp)
			r.Get("/wallet/balance", walletH.Balance)
			r.Get("/wallet/transactions", walletH.Transactions)
			r.Get("/wallet/notifications", walletH.Notifications)
		})
	})

	return r
}
