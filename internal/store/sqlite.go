package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

var sqliteDialect = dialect{
	name: "sqlite",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS programs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE)`,
		`CREATE TABLE IF NOT EXISTS supervisors (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE)`,
		`CREATE TABLE IF NOT EXISTS theses (
			id INTEGER PRIMARY KEY,
			title TEXT,
			text TEXT,
			lemmatized TEXT,
			student TEXT,
			program_id INTEGER REFERENCES programs(id),
			year INTEGER)`,
		`CREATE TABLE IF NOT EXISTS supervising_info (
			thesis_id INTEGER REFERENCES theses(id),
			supervisor_id INTEGER REFERENCES supervisors(id))`,
		`CREATE TABLE IF NOT EXISTS files (
			thesis_id INTEGER REFERENCES theses(id),
			link TEXT)`,
	},
	insertName: "INSERT OR IGNORE INTO %s (name) VALUES (?)",
	aggregate:  "group_concat(supervisors.name, ', ')",
}

// OpenSQLite opens (creating if needed) the SQLite catalogue at path and
// applies the schema.
func OpenSQLite(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite database %s: %w", path, err)
	}
	s := newStore(db, sqliteDialect)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}
