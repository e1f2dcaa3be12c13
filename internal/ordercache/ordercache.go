// Package ordercache persists glyph solving orders in SQLite so a font that
// was loaded before can be annotated before its worker answers.
package ordercache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cryguy/fontworker/internal/core"

	// Pure-Go SQLite driver for database/sql.
	_ "github.com/glebarez/sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS solving_orders (
	font_key TEXT NOT NULL,
	glyph_id TEXT NOT NULL,
	ord      TEXT NOT NULL,
	PRIMARY KEY (font_key, glyph_id)
)`

// Store is a core.OrderCache backed by a SQLite database.
type Store struct {
	DB *sql.DB
}

var _ core.OrderCache = (*Store)(nil)

// Open opens (or creates) the cache database at
// {dataDir}/solving-orders.sqlite3.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	db, err := sql.Open("sqlite", filepath.Join(dataDir, "solving-orders.sqlite3"))
	if err != nil {
		return nil, fmt.Errorf("opening order cache: %w", err)
	}
	_, _ = db.Exec("PRAGMA journal_mode=WAL")
	return newStore(db)
}

// OpenMemory creates an in-memory cache, mostly for tests.
func OpenMemory() (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("opening in-memory order cache: %w", err)
	}
	// every pooled connection would get its own empty :memory: database
	db.SetMaxOpenConns(1)
	return newStore(db)
}

func newStore(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating order cache schema: %w", err)
	}
	return &Store{DB: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}

// Lookup returns the cached solving orders of the font with the given key.
// A font that was never stored yields an empty map.
func (s *Store) Lookup(key string) (map[string]json.RawMessage, error) {
	rows, err := s.DB.Query("SELECT glyph_id, ord FROM solving_orders WHERE font_key = ?", key)
	if err != nil {
		return nil, fmt.Errorf("order cache: query error: %w", err)
	}
	defer func() { _ = rows.Close() }()

	orders := make(map[string]json.RawMessage)
	for rows.Next() {
		var id, ord string
		if err := rows.Scan(&id, &ord); err != nil {
			return nil, fmt.Errorf("order cache: scan error: %w", err)
		}
		orders[id] = json.RawMessage(ord)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("order cache: rows iteration error: %w", err)
	}
	return orders, nil
}

// Store records the truthy solving orders of a font, replacing what was
// cached for the same glyphs.
func (s *Store) Store(key string, orders map[string]json.RawMessage) error {
	tx, err := s.DB.Begin()
	if err != nil {
		return fmt.Errorf("order cache: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare("INSERT OR REPLACE INTO solving_orders (font_key, glyph_id, ord) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("order cache: prepare: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for id, ord := range orders {
		if !core.Truthy(ord) {
			continue
		}
		if !json.Valid(ord) {
			return fmt.Errorf("order cache: glyph %q: invalid JSON", id)
		}
		if _, err := stmt.Exec(key, id, string(ord)); err != nil {
			return fmt.Errorf("order cache: exec error: %w", err)
		}
	}
	return tx.Commit()
}
