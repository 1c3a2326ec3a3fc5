package domain

import (
	"encoding/json"
	"net/url"
)

// ConnectionID identifies a connection as the connection-tracking backend
// reports it. Host is the only part the rest of the service relies on; any
// other field the backend sends is kept and written back untouched.
type ConnectionID struct {
	// Type is the driver or connection kind.
	// Example: Postgres, ODBC, Spark
	Type string

	// Host is the data source location.
	// Example: db1.example.com, /home/me/cache.sqlite
	Host string

	raw json.RawMessage // payload as received, nil when built in code
}

// Key renders the identifier as a single string usable in storage keys and URLs.
// The type is path-escaped so the first slash always ends it.
// Example: {Postgres db1.example.com} -> "Postgres/db1.example.com"
// Example: {x/y z} -> "x%2Fy/z"
func (id ConnectionID) Key() string {
	return url.PathEscape(id.Type) + "/" + id.Host
}

// ConnectionAction is a user-invocable operation offered for a connection
// (disconnect, preview, help...). It is exposed untouched to the UI: Name and
// IconData are read for convenience, every other field passes through.
type ConnectionAction struct {
	Name     string
	IconData string

	raw json.RawMessage
}

// Connection is an immutable snapshot of one connection's metadata.
//
// It has no exported fields and no field-by-field constructor: the only way
// to get one is to decode a backend payload with ParseConnection (or
// json.Unmarshal), which rejects payloads without id.host. A change of state
// is a new Connection replacing the old one, never a mutation.
type Connection struct {
	// ─────────────────────────────
	// Identity (immutable)
	// ─────────────────────────────

	id ConnectionID

	// ─────────────────────────────
	// Display metadata
	// ─────────────────────────────

	displayName string
	connectCode string
	actions     []ConnectionAction
	iconData    string

	// ─────────────────────────────
	// Recency
	// ─────────────────────────────

	// lastUsed is kept exactly as received; see LastUsedAt for conversion.
	lastUsed float64
}

// ID returns the identity as supplied by the backend.
func (c *Connection) ID() ConnectionID { return c.id }

// Host is always equal to ID().Host.
func (c *Connection) Host() string { return c.id.Host }

func (c *Connection) DisplayName() string { return c.displayName }

func (c *Connection) ConnectCode() string { return c.connectCode }

// Actions returns the actions in backend order. The slice is shared with the
// record and must not be modified.
func (c *Connection) Actions() []ConnectionAction { return c.actions }

// LastUsed returns the raw timestamp, in whatever unit the backend uses.
func (c *Connection) LastUsed() float64 { return c.lastUsed }

func (c *Connection) IconData() string { return c.iconData }
