package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// routes builds the chi router with all REST API routes.
func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(loggingMiddleware(s.logger))
	r.Use(recoveryMiddleware(s.logger))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Route("/api", func(r chi.Router) {
		// System
		r.Get("/health", s.handleHealth)
		r.Get("/version", s.handleVersion)

		// Transactions
		r.Route("/accounts/{account}", func(r chi.Router) {
			r.Get("/transactions", s.handleTransactions)
			r.Get("/transactions/summary", s.handleTransactionSummary)
			r.Delete("/transactions/cache", s.handleClearCache)
			r.Get("/cashflow", s.handleCashFlow)
			r.Get("/concentrations", s.handleAccountConcentrations)
		})
		r.Delete("/transactions/cache", s.handleClearCache)

		// Exposure
		r.Post("/concentrations", s.handleConcentrations)
		r.Get("/exposure-chain/{symbol}", s.handleExposureChain)
	})

	return r
}
