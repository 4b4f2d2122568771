// Package store provides a thin bbolt wrapper for greenwatch's local
// key-value store.
//
// The store is the only persistence the client has: one database file per
// profile, string keys, opaque byte values (JSON by convention). Higher
// layers (series history, preferences) own the key naming and the value
// encoding.
//
// Buckets:
//
//	kv     user data keyed by string (ugagro_temp_data, ugagro_theme, ...)
//	_meta  internal: schema version, created_at
package store

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Current schema version. Bump when bucket layout or key format changes.
const schemaVersion = 1

// compactTxMaxSize bounds each copy transaction during Compact.
const compactTxMaxSize = 1 << 20

var (
	bucketKV       = []byte("kv")
	bucketInternal = []byte("_meta")
)

// Store wraps a bbolt database.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the bbolt database at path.
// Parent directories are created automatically.
// Runs schema migrations on every open.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating db directory: %w", err)
	}
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration: %w", err)
	}
	return s, nil
}

func openDB(path string) (*bolt.DB, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening db %s: %w", path, err)
	}
	return db, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the filesystem path of the open database.
func (s *Store) Path() string {
	return s.db.Path()
}

// ─── Migrations ───────────────────────────────────────────────────────────────

// migrate ensures all buckets exist and schema is current.
func (s *Store) migrate() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketKV, bucketInternal} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("creating bucket %s: %w", name, err)
			}
		}

		meta := tx.Bucket(bucketInternal)
		if meta.Get([]byte("schema_version")) == nil {
			if err := meta.Put([]byte("schema_version"), []byte(fmt.Sprintf("%d", schemaVersion))); err != nil {
				return err
			}
			if err := meta.Put([]byte("created_at"), []byte(time.Now().UTC().Format(time.RFC3339))); err != nil {
				return err
			}
		}
		return nil
	})
}

// SchemaInfo returns the stored schema version and creation timestamp.
func (s *Store) SchemaInfo() (version, createdAt string, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		meta := tx.Bucket(bucketInternal)
		version = string(meta.Get([]byte("schema_version")))
		createdAt = string(meta.Get([]byte("created_at")))
		return nil
	})
	return version, createdAt, err
}

// ─── Key/Value ────────────────────────────────────────────────────────────────

// Get retrieves the value stored under key.
// Returns (value, true, nil) if found, (nil, false, nil) if not found.
// The returned slice is a copy and remains valid after the call.
func (s *Store) Get(key string) ([]byte, bool, error) {
	var out []byte
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketKV).Get([]byte(key))
		if v == nil {
			return nil
		}
		found = true
		out = bytes.Clone(v)
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("reading %s: %w", key, err)
	}
	return out, found, nil
}

// Put stores value under key, replacing any previous value.
func (s *Store) Put(key string, value []byte) error {
	if key == "" {
		return fmt.Errorf("empty key")
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketKV).Put([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(key string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketKV).Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	return nil
}

// Update runs a read-modify-write of key inside a single write transaction.
// fn receives the current value (nil when absent) and returns the new value;
// returning nil deletes the key. If fn returns an error nothing is written.
func (s *Store) Update(key string, fn func(old []byte) ([]byte, error)) error {
	if key == "" {
		return fmt.Errorf("empty key")
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketKV)
		old := b.Get([]byte(key))
		if old != nil {
			old = bytes.Clone(old)
		}
		next, err := fn(old)
		if err != nil {
			return err
		}
		if next == nil {
			return b.Delete([]byte(key))
		}
		return b.Put([]byte(key), next)
	})
	if err != nil {
		return fmt.Errorf("updating %s: %w", key, err)
	}
	return nil
}

// Keys returns every key with the given prefix in byte order.
// Pass prefix="" to list all keys.
func (s *Store) Keys(prefix string) ([]string, error) {
	p := []byte(prefix)
	var keys []string
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketKV).Cursor()
		for k, _ := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, _ = c.Next() {
			keys = append(keys, string(k))
		}
		return nil
	})
	return keys, err
}

// ─── Stats & Maintenance ──────────────────────────────────────────────────────

// KeyStats holds the size of a single stored value.
type KeyStats struct {
	Key   string
	Bytes int64
}

// Stats returns the stored byte size of every key, sorted by key.
func (s *Store) Stats() ([]KeyStats, error) {
	var stats []KeyStats
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketKV).ForEach(func(k, v []byte) error {
			stats = append(stats, KeyStats{Key: string(k), Bytes: int64(len(k) + len(v))})
			return nil
		})
	})
	sort.Slice(stats, func(i, j int) bool { return stats[i].Key < stats[j].Key })
	return stats, err
}

// ClearAll deletes every user key. Schema metadata is kept.
func (s *Store) ClearAll() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketKV); err != nil {
			return fmt.Errorf("clearing bucket %s: %w", bucketKV, err)
		}
		_, err := tx.CreateBucket(bucketKV)
		return err
	})
}

// Compact rewrites the database into a fresh file to reclaim pages freed by
// trimmed series, then reopens it in place. Returns the file sizes before and
// after.
func (s *Store) Compact() (before, after int64, err error) {
	path := s.db.Path()
	if fi, statErr := os.Stat(path); statErr == nil {
		before = fi.Size()
	}

	tmp := path + ".compact"
	_ = os.Remove(tmp)
	dst, err := bolt.Open(tmp, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return before, 0, fmt.Errorf("opening compaction target: %w", err)
	}
	if err := bolt.Compact(dst, s.db, compactTxMaxSize); err != nil {
		dst.Close()
		os.Remove(tmp)
		return before, 0, fmt.Errorf("compacting: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(tmp)
		return before, 0, fmt.Errorf("closing compaction target: %w", err)
	}
	if err := s.db.Close(); err != nil {
		os.Remove(tmp)
		return before, 0, fmt.Errorf("closing db: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		// Reopen the original so the Store stays usable.
		if db, reopenErr := openDB(path); reopenErr == nil {
			s.db = db
		}
		return before, 0, fmt.Errorf("replacing db file: %w", err)
	}
	db, err := openDB(path)
	if err != nil {
		return before, 0, err
	}
	s.db = db

	if fi, statErr := os.Stat(path); statErr == nil {
		after = fi.Size()
	}
	return before, after, nil
}
