package domain

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// LastUsedUnit tells how a raw last_used value maps to wall-clock time.
// The record never converts on its own; callers that need a time.Time
// (retention, display) pick the unit the backend documents.
type LastUsedUnit string

const (
	UnitSeconds      LastUsedUnit = "seconds"
	UnitMilliseconds LastUsedUnit = "milliseconds"
)

// ParseLastUsedUnit accepts "seconds"/"s" and "milliseconds"/"ms".
func ParseLastUsedUnit(s string) (LastUsedUnit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "seconds", "second", "s", "sec":
		return UnitSeconds, nil
	case "milliseconds", "millisecond", "ms":
		return UnitMilliseconds, nil
	default:
		return "", fmt.Errorf("unknown last_used unit %q", s)
	}
}

// LastUsedAt converts LastUsed to a time using unit. A zero LastUsed
// yields the zero time.
func (c *Connection) LastUsedAt(unit LastUsedUnit) time.Time {
	if c.lastUsed == 0 {
		return time.Time{}
	}

	var nanos float64
	switch unit {
	case UnitMilliseconds:
		nanos = c.lastUsed * float64(time.Millisecond)
	default:
		nanos = c.lastUsed * float64(time.Second)
	}

	sec, frac := math.Modf(nanos / float64(time.Second))
	return time.Unix(int64(sec), int64(frac*float64(time.Second)))
}

// SortByLastUsed orders connections most recently used first.
// Ties are ordered by key so the result does not depend on map iteration.
func SortByLastUsed(conns []*Connection) {
	sort.SliceStable(conns, func(i, j int) bool {
		if conns[i].lastUsed != conns[j].lastUsed {
			return conns[i].lastUsed > conns[j].lastUsed
		}
		return conns[i].id.Key() < conns[j].id.Key()
	})
}
