package rest

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ledgerline/finance-tracker-backend/internal/infrastructure/config"
)

// NewRouter wires the API routes and the standard middleware chain.
func NewRouter(h *Handler, cfg *config.Config, logger *slog.Logger, healthCheck func() error) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/cards", h.CreateCard)
	mux.HandleFunc("GET /api/v1/cards", h.ListCards)
	mux.HandleFunc("GET /api/v1/cards/{id}", h.GetCard)
	mux.HandleFunc("DELETE /api/v1/cards/{id}", h.DeactivateCard)

	mux.HandleFunc("POST /api/v1/installment-plans", h.CreatePlan)
	mux.HandleFunc("GET /api/v1/installment-plans/{id}", h.GetPlan)
	mux.HandleFunc("POST /api/v1/installment-plans/{id}/payments", h.PayInstallment)
	mux.HandleFunc("GET /api/v1/installment-plans/{id}/early-payoff", h.EarlyPayoffQuote)
	mux.HandleFunc("GET /api/v1/installment-plans/{id}/schedule", h.Schedule)
	mux.HandleFunc("DELETE /api/v1/installment-plans/{id}", h.DeletePlan)
	mux.HandleFunc("PATCH /api/v1/installment-plans/{id}/status", h.UpdatePlanStatus)

	mux.HandleFunc("GET /api/v1/reports/utilization", h.UtilizationSummary)
	mux.HandleFunc("GET /api/v1/reports/upcoming-payments", h.UpcomingPayments)
	mux.HandleFunc("GET /api/v1/reports/payment-forecast", h.PaymentForecast)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if healthCheck != nil {
			if err := healthCheck(); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	return Chain(mux,
		RequestIDMiddleware(),
		RequestLoggingMiddleware(logger),
		RecoveryMiddleware(logger),
		RateLimitMiddleware(cfg.Server.RateLimit),
		MetricsMiddleware(),
	)
}
