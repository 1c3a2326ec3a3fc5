package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/connpane/internal/httpserver/deps"
)

type componentStatus struct {
	OK                bool   `json:"ok"`
	ConnectionsLoaded *int   `json:"connections_loaded,omitempty"`
	File              string `json:"file,omitempty"`
	LastReload        string `json:"last_reload,omitempty"`
	Mode              string `json:"mode,omitempty"`
	Impact            string `json:"impact,omitempty"`
	Error             string `json:"error,omitempty"`
}

type infraResponse struct {
	Mode       string                     `json:"mode"`
	Components map[string]componentStatus `json:"components"`
}

func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		count := d.MemoryIndex.Count()
		lastReload := d.MemoryIndex.LastReload()
		lastReloadStr := "never"
		if !lastReload.IsZero() {
			lastReloadStr = lastReload.Format(time.RFC3339)
		}

		components := map[string]componentStatus{
			"registry": {
				OK:                !lastReload.IsZero(),
				ConnectionsLoaded: &count,
				File:              d.ConnectionsFile,
				LastReload:        lastReloadStr,
			},
			"redis": checkRedis(r.Context(), d),
		}

		writeJSON(w, d.Logger, http.StatusOK, infraResponse{
			Mode:       determineMode(components),
			Components: components,
		})
	}
}

func determineMode(components map[string]componentStatus) string {
	// Registry never loaded = nothing trustworthy to serve
	if registry, exists := components["registry"]; exists && !registry.OK {
		return "critical"
	}

	// Redis down = snapshots not persisted across restarts
	if redis, exists := components["redis"]; exists && !redis.OK {
		return "degraded"
	}

	return "optimal"
}

func checkRedis(ctx context.Context, d deps.Deps) componentStatus {
	if d.Store == nil {
		return componentStatus{
			OK:     false,
			Mode:   "memory-only",
			Impact: "snapshots-not-persisted",
			Error:  "store not initialized",
		}
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := d.Store.Ping(ctx); err != nil {
		return componentStatus{
			OK:     false,
			Mode:   "memory-only",
			Impact: "snapshots-not-persisted",
			Error:  err.Error(),
		}
	}

	return componentStatus{
		OK:     true,
		Mode:   "persistent",
		Impact: "snapshots-persisted",
	}
}
