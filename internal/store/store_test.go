package store_test

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/ugagro/greenwatch/internal/store"
)

// ─── Helpers ──────────────────────────────────────────────────────────────────

// testDB opens a fresh isolated database in t.TempDir().
// It is closed and deleted automatically when the test ends.
func testDB(t *testing.T) *store.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := store.Open(path)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// ─── Open / Path ──────────────────────────────────────────────────────────────

func TestOpenCreatesDB(t *testing.T) {
	s := testDB(t)
	if s.Path() == "" {
		t.Error("Path() should return the db path after open")
	}
	v, created, err := s.SchemaInfo()
	if err != nil {
		t.Fatalf("SchemaInfo: %v", err)
	}
	if v != "1" {
		t.Errorf("schema_version: expected 1, got %q", v)
	}
	if created == "" {
		t.Error("created_at should be stamped on first open")
	}
}

func TestOpenCreatesParentDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "c", "test.db")
	s, err := store.Open(path)
	if err != nil {
		t.Fatalf("Open with nested path: %v", err)
	}
	defer s.Close()
	if s.Path() != path {
		t.Errorf("Path: expected %q, got %q", path, s.Path())
	}
}

func TestReopenPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := store.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Put("ugagro_theme", []byte(`"dark"`)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	_, created1, _ := s.SchemaInfo()
	s.Close()

	s2, err := store.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	v, found, err := s2.Get("ugagro_theme")
	if err != nil || !found {
		t.Fatalf("Get after reopen: found=%v err=%v", found, err)
	}
	if string(v) != `"dark"` {
		t.Errorf("expected persisted value, got %q", v)
	}
	_, created2, _ := s2.SchemaInfo()
	if created1 != created2 {
		t.Errorf("created_at should not change on reopen: %q vs %q", created1, created2)
	}
}

// ─── Get / Put / Delete ───────────────────────────────────────────────────────

func TestGetMissing(t *testing.T) {
	s := testDB(t)
	v, found, err := s.Get("nope")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if found || v != nil {
		t.Errorf("expected (nil, false), got (%q, %v)", v, found)
	}
}

func TestPutOverwrites(t *testing.T) {
	s := testDB(t)
	_ = s.Put("k", []byte("one"))
	_ = s.Put("k", []byte("two"))
	v, _, _ := s.Get("k")
	if string(v) != "two" {
		t.Errorf("expected overwrite, got %q", v)
	}
}

func TestPutEmptyKeyRejected(t *testing.T) {
	s := testDB(t)
	if err := s.Put("", []byte("x")); err == nil {
		t.Error("expected error for empty key")
	}
}

func TestDelete(t *testing.T) {
	s := testDB(t)
	_ = s.Put("k", []byte("v"))
	if err := s.Delete("k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, found, _ := s.Get("k"); found {
		t.Error("key should be gone after Delete")
	}
	if err := s.Delete("k"); err != nil {
		t.Errorf("deleting a missing key should not fail: %v", err)
	}
}

// ─── Update ───────────────────────────────────────────────────────────────────

func TestUpdateSeesOldValue(t *testing.T) {
	s := testDB(t)
	err := s.Update("counter", func(old []byte) ([]byte, error) {
		if old != nil {
			t.Errorf("expected nil old value, got %q", old)
		}
		return []byte("1"), nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	err = s.Update("counter", func(old []byte) ([]byte, error) {
		return append(old, '2'), nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	v, _, _ := s.Get("counter")
	if string(v) != "12" {
		t.Errorf("expected 12, got %q", v)
	}
}

func TestUpdateErrorWritesNothing(t *testing.T) {
	s := testDB(t)
	_ = s.Put("k", []byte("keep"))
	boom := errors.New("boom")
	err := s.Update("k", func(old []byte) ([]byte, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped boom, got %v", err)
	}
	v, _, _ := s.Get("k")
	if string(v) != "keep" {
		t.Errorf("value should be untouched, got %q", v)
	}
}

func TestUpdateNilDeletes(t *testing.T) {
	s := testDB(t)
	_ = s.Put("k", []byte("v"))
	if err := s.Update("k", func([]byte) ([]byte, error) { return nil, nil }); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if _, found, _ := s.Get("k"); found {
		t.Error("returning nil from Update should delete the key")
	}
}

func TestUpdateSerialized(t *testing.T) {
	s := testDB(t)
	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Update("log", func(old []byte) ([]byte, error) {
				return append(old, 'x'), nil
			})
		}()
	}
	wg.Wait()
	v, _, _ := s.Get("log")
	if len(v) != n {
		t.Errorf("expected %d appends, got %d", n, len(v))
	}
}

// ─── Keys ─────────────────────────────────────────────────────────────────────

func TestKeysPrefix(t *testing.T) {
	s := testDB(t)
	_ = s.Put("ugagro_temp_data", []byte("[]"))
	_ = s.Put("ugagro_hum_data", []byte("[]"))
	_ = s.Put("other", []byte("1"))

	keys, err := s.Keys("ugagro_")
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("expected 2 keys, got %v", keys)
	}
	for _, k := range keys {
		if !strings.HasPrefix(k, "ugagro_") {
			t.Errorf("key %q outside prefix", k)
		}
	}

	all, _ := s.Keys("")
	if len(all) != 3 {
		t.Errorf("expected 3 keys overall, got %v", all)
	}
}

// ─── Stats & Maintenance ──────────────────────────────────────────────────────

func TestStats(t *testing.T) {
	s := testDB(t)
	_ = s.Put("b", []byte("12345"))
	_ = s.Put("a", []byte("1"))

	stats, err := s.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(stats))
	}
	if stats[0].Key != "a" || stats[0].Bytes != 2 {
		t.Errorf("stats[0]: got %+v", stats[0])
	}
	if stats[1].Key != "b" || stats[1].Bytes != 6 {
		t.Errorf("stats[1]: got %+v", stats[1])
	}
}

func TestClearAll(t *testing.T) {
	s := testDB(t)
	_ = s.Put("a", []byte("1"))
	_ = s.Put("b", []byte("2"))
	if err := s.ClearAll(); err != nil {
		t.Fatalf("ClearAll: %v", err)
	}
	keys, _ := s.Keys("")
	if len(keys) != 0 {
		t.Errorf("expected empty store, got %v", keys)
	}
	if v, _, _ := s.SchemaInfo(); v == "" {
		t.Error("schema metadata should survive ClearAll")
	}
	if err := s.Put("c", []byte("3")); err != nil {
		t.Errorf("store should remain writable after ClearAll: %v", err)
	}
}

func TestCompact(t *testing.T) {
	s := testDB(t)
	big := []byte(strings.Repeat("x", 4096))
	for i := 0; i < 200; i++ {
		_ = s.Put(fmt.Sprintf("k%03d", i), big)
	}
	for i := 0; i < 190; i++ {
		_ = s.Delete(fmt.Sprintf("k%03d", i))
	}

	before, after, err := s.Compact()
	if err != nil {
		t.Fatalf("Compact: %v", err)
	}
	if after <= 0 || after > before {
		t.Errorf("expected compaction to shrink the file: before=%d after=%d", before, after)
	}
	if _, err := os.Stat(s.Path() + ".compact"); !os.IsNotExist(err) {
		t.Error("temporary compaction file should be gone")
	}

	keys, _ := s.Keys("")
	if len(keys) != 10 {
		t.Errorf("expected 10 surviving keys, got %d", len(keys))
	}
	if err := s.Put("after", []byte("ok")); err != nil {
		t.Errorf("store should be writable after Compact: %v", err)
	}
}
