// Package httpapi assembles the public HTTP surface. Handlers stay thin;
// everything below the router delegates to domain services.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	decisionhandler "vouch/internal/decision/handler"
	docverifyhandler "vouch/internal/docverify/handler"
	"vouch/pkg/platform/middleware/requestmeta"
)

// NewRouter wires all public endpoints behind the shared middleware chain.
func NewRouter(decisions *decisionhandler.Handler, documents *docverifyhandler.Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(requestmeta.RequestID)
	r.Use(requestmeta.RequestTime)
	r.Use(requestmeta.Tenant)
	r.Use(requestmeta.ClientMetadata)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", promhttp.Handler())

	decisions.Register(r)
	documents.Register(r)

	return r
}
