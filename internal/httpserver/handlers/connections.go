package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/connpane/internal/domain"
	"github.com/MrSnakeDoc/connpane/internal/httpserver/deps"
	"github.com/MrSnakeDoc/connpane/internal/index"
	"github.com/MrSnakeDoc/connpane/internal/logger"
	redisstore "github.com/MrSnakeDoc/connpane/internal/store/redis"
)

const (
	// MaxPayloadBytes bounds an ingested payload; icon_data makes them large.
	MaxPayloadBytes = 4 << 20

	// EmptyTypeSegment stands for an empty id.type in URLs.
	EmptyTypeSegment = "-"
)

type listResponse struct {
	Connections []*domain.Connection `json:"connections"`
	Count       int                  `json:"count"`
	Total       int                  `json:"total"`
}

// ListConnections serves every known connection, most recently used first.
// Query parameters: q filters by display name, host or type; limit caps
// the number of records returned.
func ListConnections(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				writeError(w, d.Logger, http.StatusBadRequest, "limit must be a non-negative integer")
				return
			}
			limit = n
		}

		all := d.MemoryIndex.All()
		conns := domain.Filter(domain.ParseQuery(r.URL.Query().Get("q")), all)
		if limit > 0 && len(conns) > limit {
			conns = conns[:limit]
		}

		writeJSON(w, d.Logger, http.StatusOK, listResponse{
			Connections: conns,
			Count:       len(conns),
			Total:       len(all),
		})
	}
}

// GetConnection serves one connection addressed as /connections/{type}/{host}.
// A key missing from the index is looked up in the store, and restored into
// the index when found there.
func GetConnection(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := connectionIDFromRequest(r)
		if err != nil {
			writeError(w, d.Logger, http.StatusBadRequest, err.Error())
			return
		}

		c, ok := d.MemoryIndex.Get(id.Key())
		if !ok {
			c, ok = lookupStore(r.Context(), d, id)
		}
		if !ok {
			writeError(w, d.Logger, http.StatusNotFound, "connection not found")
			return
		}

		writeJSON(w, d.Logger, http.StatusOK, c)
	}
}

func lookupStore(ctx context.Context, d deps.Deps, id domain.ConnectionID) (*domain.Connection, bool) {
	if d.Store == nil {
		return nil, false
	}

	c, err := d.Store.GetConnection(ctx, id)
	if err != nil {
		if !errors.Is(err, redisstore.ErrNotFound) {
			d.Logger.Warn("failed to read connection from redis",
				logger.String("connection", id.Key()),
				logger.Error(err))
		}
		return nil, false
	}

	d.MemoryIndex.Put(index.SourceAPI, c)
	d.Logger.Debug("connection restored from redis", logger.String("connection", id.Key()))
	return c, true
}

type bulkResponse struct {
	Created  int `json:"created"`
	Replaced int `json:"replaced"`
}

// PutConnection ingests one backend payload, or a JSON array of payloads.
// A record replaces any previous snapshot with the same id; malformed
// payloads are rejected before anything is stored. An array is accepted
// only if every element is well formed.
func PutConnection(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxPayloadBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, d.Logger, http.StatusRequestEntityTooLarge, "payload too large")
				return
			}
			writeError(w, d.Logger, http.StatusBadRequest, "failed to read payload")
			return
		}

		if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 && trimmed[0] == '[' {
			putMany(w, r, d, trimmed)
			return
		}

		c, err := domain.ParseConnection(body)
		if err != nil {
			rejectPayload(w, r, d, err)
			return
		}

		replaced := d.MemoryIndex.Put(index.SourceAPI, c)

		if d.Store != nil {
			if err := d.Store.SaveConnection(r.Context(), c); err != nil {
				d.Logger.Warn("failed to save connection to redis",
					logger.String("connection", c.ID().Key()),
					logger.Error(err))
			}
		}

		d.Logger.Info("connection ingested",
			logger.String("connection", c.ID().Key()),
			logger.Bool("replaced", replaced),
			logger.Float64("last_used", c.LastUsed()))

		status := http.StatusOK
		if !replaced {
			status = http.StatusCreated
			w.Header().Set("Location", ConnectionPath(c.ID()))
		}
		writeJSON(w, d.Logger, status, c)
	}
}

func putMany(w http.ResponseWriter, r *http.Request, d deps.Deps, body []byte) {
	conns, err := domain.ParseConnections(body)
	if err != nil {
		rejectPayload(w, r, d, err)
		return
	}

	var res bulkResponse
	for _, c := range conns {
		if d.MemoryIndex.Put(index.SourceAPI, c) {
			res.Replaced++
		} else {
			res.Created++
		}
	}

	if d.Store != nil {
		if err := d.Store.SaveConnectionsMany(r.Context(), conns); err != nil {
			d.Logger.Warn("failed to save connections to redis",
				logger.Int("count", len(conns)),
				logger.Error(err))
		}
	}

	d.Logger.Info("connections ingested",
		logger.Int("created", res.Created),
		logger.Int("replaced", res.Replaced))

	writeJSON(w, d.Logger, http.StatusOK, res)
}

func rejectPayload(w http.ResponseWriter, r *http.Request, d deps.Deps, err error) {
	d.Logger.Warn("rejected connection payload",
		logger.String("remote_ip", r.RemoteAddr),
		logger.Error(err))
	writeError(w, d.Logger, http.StatusBadRequest, err.Error())
}

// DeleteConnection drops a connection the backend reported as closed.
func DeleteConnection(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := connectionIDFromRequest(r)
		if err != nil {
			writeError(w, d.Logger, http.StatusBadRequest, err.Error())
			return
		}

		if !d.MemoryIndex.Delete(id.Key()) {
			writeError(w, d.Logger, http.StatusNotFound, "connection not found")
			return
		}

		if d.Store != nil {
			if err := d.Store.DeleteConnection(r.Context(), id); err != nil {
				d.Logger.Warn("failed to delete connection from redis",
					logger.String("connection", id.Key()),
					logger.Error(err))
			}
		}

		d.Logger.Info("connection deleted", logger.String("connection", id.Key()))
		w.WriteHeader(http.StatusNoContent)
	}
}

// ConnectionPath is the URL path of a connection: the type segment is
// path-escaped, with EmptyTypeSegment for an empty type, and the host follows
// path-escaped as well. A literal "-" type is written "%2D".
func ConnectionPath(id domain.ConnectionID) string {
	seg := url.PathEscape(id.Type)
	switch id.Type {
	case "":
		seg = EmptyTypeSegment
	case EmptyTypeSegment:
		seg = "%2D"
	}
	return "/connections/" + seg + "/" + url.PathEscape(id.Host)
}

// connectionIDFromRequest reads {type} and the trailing host wildcard.
// Hosts may contain slashes (file paths), hence the wildcard. The type
// segment is compared to EmptyTypeSegment before unescaping, so "%2D"
// addresses a literal "-" type.
func connectionIDFromRequest(r *http.Request) (domain.ConnectionID, error) {
	seg := chi.URLParam(r, "type")
	typ := ""
	if seg != EmptyTypeSegment {
		var err error
		if typ, err = url.PathUnescape(seg); err != nil {
			return domain.ConnectionID{}, fmt.Errorf("invalid connection type: %w", err)
		}
	}
	host, err := url.PathUnescape(chi.URLParam(r, "*"))
	if err != nil {
		return domain.ConnectionID{}, fmt.Errorf("invalid connection host: %w", err)
	}
	if host == "" {
		return domain.ConnectionID{}, errors.New("missing connection host")
	}
	return domain.ConnectionID{Type: typ, Host: host}, nil
}
