package connfile

import (
	"encoding/json"
	"fmt"

	"github.com/MrSnakeDoc/connpane/internal/domain"
)

// MapResult is the outcome of mapping a registry file
type MapResult struct {
	Connections []*domain.Connection
	Skipped     int   // entries rejected as malformed
	FirstError  error // why the first skipped entry was rejected
}

// Mapper converts registry entries into domain connections
type Mapper struct{}

// NewMapper creates a new mapper instance
func NewMapper() *Mapper {
	return &Mapper{}
}

// MapConnections converts every entry through domain.ParseConnection, the
// same boundary HTTP payloads go through. Malformed entries are skipped and
// counted. When two entries share a key the later one wins, at the position
// of the first.
func (m *Mapper) MapConnections(file *RegistryFile) MapResult {
	var res MapResult
	if file == nil {
		return res
	}

	positions := make(map[string]int, len(file.Connections))
	for i, entry := range file.Connections {
		c, err := decodeEntry(entry)
		if err != nil {
			res.Skipped++
			if res.FirstError == nil {
				res.FirstError = fmt.Errorf("entry %d: %w", i, err)
			}
			continue
		}

		key := c.ID().Key()
		if pos, dup := positions[key]; dup {
			res.Connections[pos] = c
			continue
		}
		positions[key] = len(res.Connections)
		res.Connections = append(res.Connections, c)
	}

	return res
}

// decodeEntry re-encodes a YAML entry as JSON and parses it as a payload
func decodeEntry(entry map[string]interface{}) (*domain.Connection, error) {
	data, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedRecord, err)
	}
	return domain.ParseConnection(data)
}
