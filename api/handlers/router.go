package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dctlabs/dct-backend/api/metrics"
)

// Router builds the chi router for the full API surface.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	if h.app.AppBaseURL != "" {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{h.app.AppBaseURL},
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type"},
			MaxAge:         300,
		}))
	}

	r.MethodNotAllowed(h.methodNotAllowed)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(h.rateLimitMiddleware)
			r.Post("/wallet/challenge", h.PostWalletChallenge)
			r.Post("/wallet/verify", h.PostWalletVerify)
		})

		r.Post("/subscription/process", h.PostProcessSubscription)
		r.Post("/epoch/distribute", h.PostDistributeEpoch)
		r.Post("/mint/theme/start", h.PostStartThemeMint)
		r.Post("/mint/jetton/start", h.PostStartJettonMint)
	})

	return r
}
