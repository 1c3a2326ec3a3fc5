package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/connpane/internal/httpserver/deps"
	"github.com/MrSnakeDoc/connpane/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/connpane/internal/httpserver/mw"
)

func init() { Register(registerConnections) }

func registerConnections(r chi.Router, d deps.Deps) {
	r.Route("/connections", func(r chi.Router) {
		r.Use(mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger), mw.EnforceHost(d.AllowedHosts, d.Logger))

		r.Get("/", handlers.ListConnections(d))
		r.Get("/{type}/*", handlers.GetConnection(d))

		// One limiter for both write paths: a client's budget is shared.
		ingest := mw.RateLimit(mw.RateLimitConfig{
			Burst:             d.IngestBurst,
			RefillPerIPPerMin: d.IngestRefill,
			TrustProxy:        d.TrustProxy,
		}, d.Logger)

		r.With(ingest).Put("/", handlers.PutConnection(d))
		r.With(ingest).Delete("/{type}/*", handlers.DeleteConnection(d))
	})
}
