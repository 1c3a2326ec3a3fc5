package index

import (
	"sync"
	"time"

	"github.com/MrSnakeDoc/connpane/internal/domain"
)

// Source tells where a connection snapshot came from.
type Source string

const (
	// SourceFile marks records loaded from the backend's registry file
	SourceFile Source = "file"
	// SourceAPI marks records pushed over HTTP or restored from Redis
	SourceAPI Source = "api"
)

type entry struct {
	conn   *domain.Connection
	source Source
}

// MemoryIndex holds the current snapshot of every known connection, keyed by
// ConnectionID.Key(). Records are replaced, never modified.
type MemoryIndex struct {
	mu         sync.RWMutex
	entries    map[string]entry
	lastReload time.Time // Timestamp of last registry file reload
}

// NewMemoryIndex creates a new memory index
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		entries: make(map[string]entry),
	}
}

// ReplaceSource swaps every record of source for conns in one step. Records
// from other sources are kept unless conns carries the same key, in which
// case the new record wins and takes source. It returns the records that
// were dropped.
func (idx *MemoryIndex) ReplaceSource(source Source, conns []*domain.Connection) []*domain.Connection {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	fresh := make(map[string]struct{}, len(conns))
	for _, c := range conns {
		fresh[c.ID().Key()] = struct{}{}
	}

	var removed []*domain.Connection
	for key, e := range idx.entries {
		if e.source != source {
			continue
		}
		if _, ok := fresh[key]; !ok {
			delete(idx.entries, key)
			removed = append(removed, e.conn)
		}
	}

	for _, c := range conns {
		idx.entries[c.ID().Key()] = entry{conn: c, source: source}
	}

	if source == SourceFile {
		idx.lastReload = time.Now()
	}
	return removed
}

// Put adds or replaces a single record, reporting whether a record with the
// same key was replaced.
func (idx *MemoryIndex) Put(source Source, c *domain.Connection) (replaced bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	key := c.ID().Key()
	_, replaced = idx.entries[key]
	idx.entries[key] = entry{conn: c, source: source}
	return replaced
}

// Get retrieves a record by ConnectionID key
func (idx *MemoryIndex) Get(key string) (*domain.Connection, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	e, ok := idx.entries[key]
	return e.conn, ok
}

// SourceOf reports which source currently owns key
func (idx *MemoryIndex) SourceOf(key string) (Source, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	e, ok := idx.entries[key]
	return e.source, ok
}

// Delete removes a record, reporting whether it existed
func (idx *MemoryIndex) Delete(key string) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	_, ok := idx.entries[key]
	delete(idx.entries, key)
	return ok
}

// DeleteIfCurrent removes c only if it is still the record stored under its
// key, so a snapshot that replaced it in the meantime is kept.
func (idx *MemoryIndex) DeleteIfCurrent(c *domain.Connection) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	key := c.ID().Key()
	if e, ok := idx.entries[key]; !ok || e.conn != c {
		return false
	}
	delete(idx.entries, key)
	return true
}

// All returns every record, most recently used first
func (idx *MemoryIndex) All() []*domain.Connection {
	idx.mu.RLock()
	conns := make([]*domain.Connection, 0, len(idx.entries))
	for _, e := range idx.entries {
		conns = append(conns, e.conn)
	}
	idx.mu.RUnlock()

	domain.SortByLastUsed(conns)
	return conns
}

// Count returns the number of records in the index
func (idx *MemoryIndex) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return len(idx.entries)
}

// LastReload returns the timestamp of the last registry file reload
func (idx *MemoryIndex) LastReload() time.Time {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return idx.lastReload
}
