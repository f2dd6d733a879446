package server

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Persistence mirrors the node tree into SQLite so the daemon survives
// restarts. Only leaf nodes are stored; inner nodes are recomposed by the
// engine from their children.
type Persistence struct {
	db *sql.DB
}

// OpenPersistence opens (or creates) the database at path and ensures the
// schema exists.
func OpenPersistence(path string) (*Persistence, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("server: open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("server: ping database: %w", err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS nodes (
			path  TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("server: create schema: %w", err)
	}
	return &Persistence{db: db}, nil
}

// LoadLeaves returns every persisted leaf as path -> raw JSON value.
func (p *Persistence) LoadLeaves() (map[string]json.RawMessage, error) {
	rows, err := p.db.Query("SELECT path, value FROM nodes")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	leaves := make(map[string]json.RawMessage)
	for rows.Next() {
		var path, value string
		if err := rows.Scan(&path, &value); err != nil {
			return nil, err
		}
		leaves[path] = json.RawMessage(value)
	}
	return leaves, rows.Err()
}

// SaveLeaf upserts the value at path.
func (p *Persistence) SaveLeaf(path string, value json.RawMessage) error {
	_, err := p.db.Exec(
		"INSERT INTO nodes (path, value) VALUES (?, ?) ON CONFLICT(path) DO UPDATE SET value = excluded.value",
		path, string(value),
	)
	return err
}

// DeleteSubtree removes the node at path and everything beneath it.
func (p *Persistence) DeleteSubtree(path string) error {
	_, err := p.db.Exec(
		"DELETE FROM nodes WHERE path = ? OR path LIKE ?",
		path, path+"/%",
	)
	return err
}

func (p *Persistence) Close() error {
	return p.db.Close()
}
