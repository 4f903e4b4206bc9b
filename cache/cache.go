// Package cache stores compiled chunks in a SQLite database keyed by the
// SHA-256 of their source text, so repeated runs of an unchanged script skip
// the compiler.
package cache

import (
	"crypto/sha256"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pyrite-lang/pyrite/vm"
	"github.com/pyrite-lang/pyrite/vm/dist"
)

const schema = `
CREATE TABLE IF NOT EXISTS chunks (
	source_hash BLOB PRIMARY KEY,
	chunk       BLOB NOT NULL,
	created_at  INTEGER NOT NULL
);`

// Cache is a compiled-chunk store. It is safe for use from a single
// process; SQLite serializes concurrent writers.
type Cache struct {
	db *sql.DB
}

// Open creates or opens a cache database at path. Use ":memory:" for an
// ephemeral cache.
func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("cache: open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: init schema: %w", err)
	}
	return &Cache{db: db}, nil
}

// Close releases the database handle.
func (c *Cache) Close() error {
	return c.db.Close()
}

// HashSource computes the cache key for a script.
func HashSource(source string) [32]byte {
	return sha256.Sum256([]byte(source))
}

// Get returns the cached chunk for a source hash, and whether it was
// present.
func (c *Cache) Get(hash [32]byte) (*vm.Chunk, bool, error) {
	var blob []byte
	err := c.db.QueryRow(
		"SELECT chunk FROM chunks WHERE source_hash = ?", hash[:],
	).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: lookup: %w", err)
	}
	chunk, err := dist.UnmarshalChunk(blob)
	if err != nil {
		return nil, false, fmt.Errorf("cache: corrupt entry: %w", err)
	}
	return chunk, true, nil
}

// Put stores a compiled chunk under its source hash, replacing any previous
// entry.
func (c *Cache) Put(hash [32]byte, chunk *vm.Chunk) error {
	blob, err := dist.MarshalChunk(chunk)
	if err != nil {
		return fmt.Errorf("cache: encode chunk: %w", err)
	}
	_, err = c.db.Exec(
		"INSERT OR REPLACE INTO chunks (source_hash, chunk, created_at) VALUES (?, ?, ?)",
		hash[:], blob, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("cache: store: %w", err)
	}
	return nil
}
