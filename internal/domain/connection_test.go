package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const prodPayload = `{
	"id": {"type": "Postgres", "host": "db1.example.com"},
	"display_name": "Prod DB",
	"connect_code": "con <- dbConnect(...)",
	"actions": [{"name": "Disconnect"}],
	"last_used": 1700000000.0,
	"icon_data": "data:image/png;base64,AAAA"
}`

func TestParseConnection_Example(t *testing.T) {
	c, err := ParseConnection([]byte(prodPayload))
	require.NoError(t, err)

	assert.Equal(t, "db1.example.com", c.Host())
	assert.Equal(t, "Postgres", c.ID().Type)
	assert.Equal(t, "db1.example.com", c.ID().Host)
	assert.Equal(t, "Prod DB", c.DisplayName())
	assert.Equal(t, "con <- dbConnect(...)", c.ConnectCode())
	require.Len(t, c.Actions(), 1)
	assert.Equal(t, "Disconnect", c.Actions()[0].Name)
	assert.Equal(t, 1700000000.0, c.LastUsed())
	assert.Equal(t, "data:image/png;base64,AAAA", c.IconData())
}

func TestConnection_HostIsIDHost(t *testing.T) {
	hosts := []string{"db1.example.com", "/home/me/cache.sqlite", "DSN=warehouse;UID=me", "localhost:5432"}
	for _, h := range hosts {
		t.Run(h, func(t *testing.T) {
			data, err := json.Marshal(map[string]any{"id": map[string]any{"host": h}})
			require.NoError(t, err)

			c, err := ParseConnection(data)
			require.NoError(t, err)
			assert.Equal(t, h, c.Host())
			assert.Equal(t, c.ID().Host, c.Host())
		})
	}
}

func TestParseConnection_PreservesActionOrder(t *testing.T) {
	payload := `{"id":{"host":"h"},"actions":[
		{"name":"Preview"},{"name":"Help","icon_data":"x"},{"name":"Disconnect"},{"name":"Preview"}]}`

	c, err := ParseConnection([]byte(payload))
	require.NoError(t, err)

	names := make([]string, 0, len(c.Actions()))
	for _, a := range c.Actions() {
		names = append(names, a.Name)
	}
	assert.Equal(t, []string{"Preview", "Help", "Disconnect", "Preview"}, names)
	assert.Equal(t, "x", c.Actions()[1].IconData)
}

func TestParseConnection_EmptyActions(t *testing.T) {
	for name, payload := range map[string]string{
		"empty array": `{"id":{"host":"h"},"actions":[]}`,
		"absent":      `{"id":{"host":"h"}}`,
		"null":        `{"id":{"host":"h"},"actions":null}`,
	} {
		t.Run(name, func(t *testing.T) {
			c, err := ParseConnection([]byte(payload))
			require.NoError(t, err)
			assert.NotNil(t, c.Actions())
			assert.Empty(t, c.Actions())
		})
	}
}

func TestParseConnection_AbsentOptionalFields(t *testing.T) {
	c, err := ParseConnection([]byte(`{"id":{"host":"h"}}`))
	require.NoError(t, err)

	assert.Empty(t, c.DisplayName())
	assert.Empty(t, c.ConnectCode())
	assert.Empty(t, c.IconData())
	assert.Zero(t, c.LastUsed())
	assert.Empty(t, c.ID().Type)
}

func TestParseConnection_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{name: "missing id", payload: `{"display_name":"x"}`},
		{name: "null id", payload: `{"id":null}`},
		{name: "missing host", payload: `{"id":{"type":"Postgres"}}`},
		{name: "empty host", payload: `{"id":{"host":""}}`},
		{name: "host wrong type", payload: `{"id":{"host":42}}`},
		{name: "actions wrong type", payload: `{"id":{"host":"h"},"actions":"Disconnect"}`},
		{name: "last_used wrong type", payload: `{"id":{"host":"h"},"last_used":"yesterday"}`},
		{name: "not an object", payload: `[1,2,3]`},
		{name: "invalid json", payload: `{"id":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := ParseConnection([]byte(tt.payload))
			require.Error(t, err)
			assert.Nil(t, c)
			assert.True(t, errors.Is(err, ErrMalformedRecord), "error %v should wrap ErrMalformedRecord", err)
		})
	}
}

func TestUnmarshalJSON_LeavesReceiverOnError(t *testing.T) {
	c, err := ParseConnection([]byte(prodPayload))
	require.NoError(t, err)

	err = json.Unmarshal([]byte(`{"display_name":"other"}`), c)
	require.ErrorIs(t, err, ErrMalformedRecord)
	assert.Equal(t, "Prod DB", c.DisplayName())
	assert.Equal(t, "db1.example.com", c.Host())
}

func TestConnection_WireRoundTrip(t *testing.T) {
	c, err := ParseConnection([]byte(prodPayload))
	require.NoError(t, err)

	data, err := json.Marshal(c)
	require.NoError(t, err)

	var want, got map[string]any
	require.NoError(t, json.Unmarshal([]byte(prodPayload), &want))
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, want, got)

	again, err := ParseConnection(data)
	require.NoError(t, err)
	assert.Equal(t, c, again)
}

func TestConnection_MarshalEmptyActionsAsArray(t *testing.T) {
	c, err := ParseConnection([]byte(`{"id":{"host":"h"}}`))
	require.NoError(t, err)

	data, err := json.Marshal(c)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"actions":[]`)
}

func TestConnection_RepeatedReadsAreStable(t *testing.T) {
	c, err := ParseConnection([]byte(prodPayload))
	require.NoError(t, err)

	first := []any{c.ID(), c.Host(), c.DisplayName(), c.ConnectCode(), len(c.Actions()), c.LastUsed(), c.IconData()}
	for i := 0; i < 3; i++ {
		again := []any{c.ID(), c.Host(), c.DisplayName(), c.ConnectCode(), len(c.Actions()), c.LastUsed(), c.IconData()}
		assert.Equal(t, first, again)
	}
}

func TestParseConnections(t *testing.T) {
	conns, err := ParseConnections([]byte(`[{"id":{"host":"a"}},{"id":{"host":"b"}}]`))
	require.NoError(t, err)
	require.Len(t, conns, 2)
	assert.Equal(t, "a", conns[0].Host())
	assert.Equal(t, "b", conns[1].Host())

	_, err = ParseConnections([]byte(`[{"id":{"host":"a"}},{"id":{}}]`))
	require.ErrorIs(t, err, ErrMalformedRecord)
	assert.Contains(t, err.Error(), "connection 1")
}

func TestConnectionID_Key(t *testing.T) {
	tests := []struct {
		id   ConnectionID
		want string
	}{
		{id: ConnectionID{Type: "Postgres", Host: "db1.example.com"}, want: "Postgres/db1.example.com"},
		{id: ConnectionID{Host: "db1.example.com"}, want: "/db1.example.com"},
		{id: ConnectionID{Type: "SQLite", Host: "/var/data/app.db"}, want: "SQLite//var/data/app.db"},
		{id: ConnectionID{Type: "x/y", Host: "z"}, want: "x%2Fy/z"},
		{id: ConnectionID{Type: "50%", Host: "z"}, want: "50%25/z"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.id.Key())
	}
}

func TestConnectionID_KeyDistinguishesSlashPlacement(t *testing.T) {
	ids := []ConnectionID{
		{Type: "x/y", Host: "z"},
		{Type: "x", Host: "y/z"},
		{Type: "", Host: "x/y/z"},
		{Type: "x%2Fy", Host: "z"},
		{Type: "-", Host: "z"},
		{Type: "", Host: "z"},
	}
	seen := make(map[string]ConnectionID, len(ids))
	for _, id := range ids {
		key := id.Key()
		if prev, dup := seen[key]; dup {
			t.Fatalf("%+v and %+v share key %q", prev, id, key)
		}
		seen[key] = id
	}
}

func TestConnection_KeepsUnknownSubFields(t *testing.T) {
	payload := `{"id":{"type":"Postgres","host":"h","database":"sales","port":5432},` +
		`"actions":[{"name":"Disconnect","callback":"x"},{"name":"Preview","icon_data":"i","rows":[1,2]}]}`

	c, err := ParseConnection([]byte(payload))
	require.NoError(t, err)
	assert.Equal(t, "h", c.Host())
	assert.Equal(t, "Postgres", c.ID().Type)
	assert.Equal(t, "Preview", c.Actions()[1].Name)
	assert.Equal(t, "i", c.Actions()[1].IconData)

	data, err := json.Marshal(c)
	require.NoError(t, err)

	var got struct {
		ID      json.RawMessage   `json:"id"`
		Actions []json.RawMessage `json:"actions"`
	}
	require.NoError(t, json.Unmarshal(data, &got))
	assert.JSONEq(t, `{"type":"Postgres","host":"h","database":"sales","port":5432}`, string(got.ID))
	require.Len(t, got.Actions, 2)
	assert.JSONEq(t, `{"name":"Disconnect","callback":"x"}`, string(got.Actions[0]))
	assert.JSONEq(t, `{"name":"Preview","icon_data":"i","rows":[1,2]}`, string(got.Actions[1]))

	again, err := ParseConnection(data)
	require.NoError(t, err)
	assert.Equal(t, c, again)
}

func TestConnection_RoundTripIsStableWithHTMLCharacters(t *testing.T) {
	c, err := ParseConnection([]byte(`{"id":{"host":"h","note":"a < b & c"},"actions":[{"name":"<x>"}]}`))
	require.NoError(t, err)

	first, err := json.Marshal(c)
	require.NoError(t, err)
	again, err := ParseConnection(first)
	require.NoError(t, err)
	second, err := json.Marshal(again)
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
	assert.Equal(t, "<x>", again.Actions()[0].Name)
}

func TestConnectionID_MarshalBuiltInCode(t *testing.T) {
	data, err := json.Marshal(ConnectionID{Host: "h"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"host":"h"}`, string(data))
}
