package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	custommiddleware "github.com/nwakan/wantok-jobs-sub002/internal/middleware"
	"github.com/nwakan/wantok-jobs-sub002/internal/model"
)

// SetupRouter настраивает HTTP-маршруты и middleware биллинга.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	adminOnly := custommiddleware.RequireRole(model.RoleAdmin)
	employerOnly := custommiddleware.RequireRole(model.RoleEmployer)
	customers := custommiddleware.RequireRole(model.RoleEmployer, model.RoleJobseeker)

	r.Route("/api", func(r chi.Router) {
		r.Use(h.authMiddleware.Middleware)

		r.Route("/credits", func(r chi.Router) {
			r.Get("/status", h.CreditStatus)
			r.Get("/transactions", h.CreditTransactions)
			r.Get("/packages", h.Packages)
			r.Get("/check/{type}", h.CheckCredit)
			r.With(employerOnly).Get("/can-post-job", h.CanPostJob)
			r.With(customers).Post("/consume", h.Consume)
			r.With(customers).Post("/trial/activate", h.ActivateTrial)

			r.Route("/admin", func(r chi.Router) {
				r.Use(adminOnly)
				r.Post("/grant-trial", h.GrantTrial)
				r.Post("/revoke-trial", h.RevokeTrial)
				r.Post("/grant-credits", h.GrantCredits)
				r.Post("/reset-annual", h.ResetAnnual)
			})
		})

		r.Route("/orders", func(r chi.Router) {
			r.With(customers).Post("/", h.CreateOrder)
			r.Get("/", h.GetOrders)

			r.Route("/admin", func(r chi.Router) {
				r.Use(adminOnly)
				r.Get("/", h.AdminOrders)
				r.Put("/{id}/approve", h.ApproveOrder)
				r.Put("/{id}/reject", h.RejectOrder)
			})
		})

		r.Route("/jobs", func(r chi.Router) {
			r.Use(employerOnly)
			r.Post("/", h.CreateJob)
			r.Get("/", h.GetJobs)
			r.Put("/{id}/close", h.CloseJob)
		})

		r.Route("/wallet", func(r chi.Router) {
			r.Get("/", h.GetWallet)
			r.Get("/transactions", h.WalletTransactions)
			r.Post("/deposit", h.Deposit)
			r.Post("/holds", h.CreateHold)
			r.Post("/holds/{id}/capture", h.CaptureHold)
			r.Post("/holds/{id}/release", h.ReleaseHold)
			r.Post("/refunds", h.RequestRefund)

			r.Route("/admin", func(r chi.Router) {
				r.Use(adminOnly)
				r.Post("/deposits/{id}/match", h.MatchDeposit)
				r.Post("/deposits/{id}/reject", h.RejectDeposit)
				r.Post("/refunds/{id}/approve", h.ApproveRefund)
				r.Post("/refunds/{id}/reject", h.RejectRefund)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, http.StatusText(http.StatusNotFound))
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed))
	})

	return r
}
