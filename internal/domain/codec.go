package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedRecord is returned when a payload lacks the structural fields
// every Connection needs (id and id.host) or is not a JSON object.
var ErrMalformedRecord = errors.New("malformed connection record")

// wireConnection mirrors the payload of the connection-tracking backend.
type wireConnection struct {
	ID          *ConnectionID      `json:"id"`
	DisplayName string             `json:"display_name"`
	ConnectCode string             `json:"connect_code"`
	Actions     []ConnectionAction `json:"actions"`
	LastUsed    float64            `json:"last_used"`
	IconData    string             `json:"icon_data"`
}

// ParseConnection decodes one backend payload into a Connection.
// Structural errors wrap ErrMalformedRecord; no partial record is returned.
func ParseConnection(data []byte) (*Connection, error) {
	var c Connection
	if err := json.Unmarshal(data, &c); err != nil {
		// Syntax errors are reported by encoding/json before UnmarshalJSON runs.
		if !errors.Is(err, ErrMalformedRecord) {
			err = fmt.Errorf("%w: %v", ErrMalformedRecord, err)
		}
		return nil, err
	}
	return &c, nil
}

// ParseConnections decodes a JSON array of payloads. It fails on the first
// malformed entry, reporting its position.
func ParseConnections(data []byte) ([]*Connection, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}

	conns := make([]*Connection, 0, len(raw))
	for i, item := range raw {
		c, err := ParseConnection(item)
		if err != nil {
			return nil, fmt.Errorf("connection %d: %w", i, err)
		}
		conns = append(conns, c)
	}
	return conns, nil
}

// UnmarshalJSON implements json.Unmarshaler. The receiver is only written
// once the payload has been fully validated.
func (c *Connection) UnmarshalJSON(data []byte) error {
	var w wireConnection
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	if w.ID == nil {
		return fmt.Errorf("%w: missing id", ErrMalformedRecord)
	}
	if w.ID.Host == "" {
		return fmt.Errorf("%w: missing id.host", ErrMalformedRecord)
	}

	actions := w.Actions
	if actions == nil {
		actions = []ConnectionAction{}
	}

	*c = Connection{
		id:          *w.ID,
		displayName: w.DisplayName,
		connectCode: w.ConnectCode,
		actions:     actions,
		lastUsed:    w.LastUsed,
		iconData:    w.IconData,
	}
	return nil
}

// MarshalJSON writes the record back in the backend's wire shape.
func (c *Connection) MarshalJSON() ([]byte, error) {
	id := c.id
	actions := c.actions
	if actions == nil {
		actions = []ConnectionAction{}
	}
	return json.Marshal(wireConnection{
		ID:          &id,
		DisplayName: c.displayName,
		ConnectCode: c.connectCode,
		Actions:     actions,
		LastUsed:    c.lastUsed,
		IconData:    c.iconData,
	})
}

// UnmarshalJSON reads host and type and keeps the whole object, unknown
// fields included. A non-string type is ignored; a non-string host is an error.
func (id *ConnectionID) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("id: %w", err)
	}

	var host string
	if v, ok := fields["host"]; ok {
		if err := json.Unmarshal(v, &host); err != nil {
			return fmt.Errorf("id.host: %w", err)
		}
	}

	raw, err := canonicalRaw(data)
	if err != nil {
		return fmt.Errorf("id: %w", err)
	}

	*id = ConnectionID{Type: optionalString(fields["type"]), Host: host, raw: raw}
	return nil
}

// MarshalJSON writes the id back as received. An id built in code is
// written as {"type","host"}.
func (id ConnectionID) MarshalJSON() ([]byte, error) {
	if id.raw != nil {
		return id.raw, nil
	}
	return json.Marshal(struct {
		Type string `json:"type,omitempty"`
		Host string `json:"host"`
	}{id.Type, id.Host})
}

// UnmarshalJSON reads name and icon_data and keeps the whole action object.
func (a *ConnectionAction) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("action: %w", err)
	}

	raw, err := canonicalRaw(data)
	if err != nil {
		return fmt.Errorf("action: %w", err)
	}

	*a = ConnectionAction{
		Name:     optionalString(fields["name"]),
		IconData: optionalString(fields["icon_data"]),
		raw:      raw,
	}
	return nil
}

// MarshalJSON writes the action back as received.
func (a ConnectionAction) MarshalJSON() ([]byte, error) {
	if a.raw != nil {
		return a.raw, nil
	}
	return json.Marshal(struct {
		Name     string `json:"name"`
		IconData string `json:"icon_data,omitempty"`
	}{a.Name, a.IconData})
}

func optionalString(v json.RawMessage) string {
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return ""
	}
	return s
}

// canonicalRaw compacts and HTML-escapes data the way json.Marshal writes
// it, so a stored value is byte-identical after any number of round trips.
func canonicalRaw(data []byte) (json.RawMessage, error) {
	var compact bytes.Buffer
	if err := json.Compact(&compact, data); err != nil {
		return nil, err
	}
	var out bytes.Buffer
	json.HTMLEscape(&out, compact.Bytes())
	return out.Bytes(), nil
}
