package index

import (
	"fmt"
	"sync"
	"testing"

	"github.com/MrSnakeDoc/connpane/internal/domain"
)

func conn(t testing.TB, host string, lastUsed float64) *domain.Connection {
	t.Helper()
	c, err := domain.ParseConnection([]byte(fmt.Sprintf(
		`{"id":{"type":"Postgres","host":%q},"last_used":%v}`, host, lastUsed)))
	if err != nil {
		t.Fatalf("ParseConnection() error = %v", err)
	}
	return c
}

func TestNewMemoryIndex(t *testing.T) {
	index := NewMemoryIndex()
	if index == nil {
		t.Fatal("NewMemoryIndex() returned nil")
	}
	if n := index.Count(); n != 0 {
		t.Errorf("NewMemoryIndex() should start empty, got %v", n)
	}
	if !index.LastReload().IsZero() {
		t.Error("LastReload() should be zero before any reload")
	}
}

func TestReplaceSource(t *testing.T) {
	index := NewMemoryIndex()

	index.ReplaceSource(SourceFile, []*domain.Connection{conn(t, "a", 1), conn(t, "b", 2)})
	if index.Count() != 2 {
		t.Fatalf("Count() = %v, want 2", index.Count())
	}
	if index.LastReload().IsZero() {
		t.Error("LastReload() should be set after a file reload")
	}

	removed := index.ReplaceSource(SourceFile, []*domain.Connection{conn(t, "b", 3), conn(t, "c", 4)})
	if len(removed) != 1 || removed[0].ID().Key() != "Postgres/a" {
		t.Errorf("ReplaceSource() removed = %v, want [Postgres/a]", removed)
	}
	if _, ok := index.Get("Postgres/a"); ok {
		t.Error("record a should be gone")
	}
	if b, _ := index.Get("Postgres/b"); b.LastUsed() != 3 {
		t.Errorf("record b should be replaced, last_used = %v", b.LastUsed())
	}
}

func TestReplaceSourceKeepsOtherSources(t *testing.T) {
	index := NewMemoryIndex()

	index.Put(SourceAPI, conn(t, "pushed", 10))
	index.ReplaceSource(SourceFile, []*domain.Connection{conn(t, "file", 1)})
	index.ReplaceSource(SourceFile, nil)

	if _, ok := index.Get("Postgres/pushed"); !ok {
		t.Error("api record should survive a file reload")
	}
	if _, ok := index.Get("Postgres/file"); ok {
		t.Error("file record should be dropped when the file no longer lists it")
	}
}

func TestReplaceSourceTakesOverKey(t *testing.T) {
	index := NewMemoryIndex()

	index.Put(SourceAPI, conn(t, "shared", 1))
	index.ReplaceSource(SourceFile, []*domain.Connection{conn(t, "shared", 2)})

	if src, _ := index.SourceOf("Postgres/shared"); src != SourceFile {
		t.Errorf("SourceOf() = %v, want file", src)
	}
}

func TestAllSortedByLastUsed(t *testing.T) {
	index := NewMemoryIndex()
	index.ReplaceSource(SourceFile, []*domain.Connection{conn(t, "old", 1), conn(t, "new", 3), conn(t, "mid", 2)})

	all := index.All()
	want := []string{"new", "mid", "old"}
	for i, host := range want {
		if all[i].Host() != host {
			t.Errorf("All()[%d] = %v, want %v", i, all[i].Host(), host)
		}
	}
}

func TestPutReplacesAndDelete(t *testing.T) {
	index := NewMemoryIndex()

	first := conn(t, "a", 1)
	second := conn(t, "a", 2)
	if index.Put(SourceAPI, first) {
		t.Error("Put() of a new key should not report a replacement")
	}
	if !index.Put(SourceAPI, second) {
		t.Error("Put() of an existing key should report a replacement")
	}

	got, ok := index.Get("Postgres/a")
	if !ok || got != second {
		t.Error("Put() should replace the record for the same key")
	}
	if first.LastUsed() != 1 {
		t.Error("replaced record must not be modified")
	}

	if !index.Delete("Postgres/a") {
		t.Error("Delete() should report an existing record")
	}
	if index.Delete("Postgres/a") {
		t.Error("Delete() should report a missing record")
	}
}

func TestConcurrentAccess(t *testing.T) {
	index := NewMemoryIndex()
	index.ReplaceSource(SourceFile, []*domain.Connection{conn(t, "a", 1), conn(t, "b", 2)})

	pushed := make([]*domain.Connection, 100)
	for i := range pushed {
		pushed[i] = conn(t, fmt.Sprintf("h%d", i), float64(i))
	}

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for _, c := range index.All() {
				_ = c.Host()
			}
		}()
		go func(c *domain.Connection) {
			defer wg.Done()
			index.Put(SourceAPI, c)
		}(pushed[i])
	}
	wg.Wait()

	if n := index.Count(); n != 102 {
		t.Errorf("Count() = %v, want 102", n)
	}
}

func TestAllReturnsSnapshot(t *testing.T) {
	index := NewMemoryIndex()
	index.Put(SourceAPI, conn(t, "a", 1))

	snapshot1 := index.All()
	snapshot2 := index.All()
	if len(snapshot1) != 1 || len(snapshot2) != 1 {
		t.Fatal("both snapshots should contain 1 record")
	}
	if snapshot1[0] != snapshot2[0] {
		t.Error("All() should share the same immutable records")
	}

	snapshot1[0] = nil
	if index.All()[0] == nil {
		t.Error("All() should return a new slice each call")
	}
}

func TestDeleteIfCurrent(t *testing.T) {
	index := NewMemoryIndex()

	stale := conn(t, "a", 1)
	index.Put(SourceAPI, stale)
	fresh := conn(t, "a", 2)
	index.Put(SourceAPI, fresh)

	if index.DeleteIfCurrent(stale) {
		t.Error("DeleteIfCurrent() should keep a record that was replaced")
	}
	if !index.DeleteIfCurrent(fresh) {
		t.Error("DeleteIfCurrent() should delete the current record")
	}
	if index.Count() != 0 {
		t.Errorf("Count() = %v, want 0", index.Count())
	}
}

func TestPutReportsOneCreationUnderConcurrency(t *testing.T) {
	index := NewMemoryIndex()

	conns := make([]*domain.Connection, 50)
	for i := range conns {
		conns[i] = conn(t, "same", float64(i))
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for _, c := range conns {
		wg.Add(1)
		go func(c *domain.Connection) {
			defer wg.Done()
			if !index.Put(SourceAPI, c) {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}(c)
	}
	wg.Wait()

	if created != 1 {
		t.Errorf("%d Put() calls reported a creation, want 1", created)
	}
}
