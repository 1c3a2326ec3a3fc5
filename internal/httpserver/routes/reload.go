package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/connpane/internal/httpserver/deps"
	"github.com/MrSnakeDoc/connpane/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/connpane/internal/httpserver/mw"
)

func init() {
	Register(registerReload)
}

// POST /reload re-reads the registry file out of schedule.
func registerReload(r chi.Router, d deps.Deps) {
	r.With(
		mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger),
		mw.EnforceHost(d.AllowedHosts, d.Logger),
	).Post("/reload", handlers.Reload(d))
}
