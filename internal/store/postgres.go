package store

import (
	"context"
	"database/sql"
)

var postgresDialect = dialect{
	name: "postgres",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS programs (
			id SERIAL PRIMARY KEY,
			name TEXT NOT NULL UNIQUE)`,
		`CREATE TABLE IF NOT EXISTS supervisors (
			id SERIAL PRIMARY KEY,
			name TEXT NOT NULL UNIQUE)`,
		`CREATE TABLE IF NOT EXISTS theses (
			id BIGINT PRIMARY KEY,
			title TEXT,
			text TEXT,
			lemmatized TEXT,
			student TEXT,
			program_id INTEGER REFERENCES programs(id),
			year INTEGER)`,
		`CREATE TABLE IF NOT EXISTS supervising_info (
			thesis_id BIGINT REFERENCES theses(id),
			supervisor_id INTEGER REFERENCES supervisors(id))`,
		`CREATE TABLE IF NOT EXISTS files (
			thesis_id BIGINT REFERENCES theses(id),
			link TEXT)`,
	},
	insertName: "INSERT INTO %s (name) VALUES (?) ON CONFLICT (name) DO NOTHING",
	aggregate:  "string_agg(supervisors.name, ', ')",
	numbered:   true,
}

// NewPostgres wraps an open PostgreSQL handle (see pkg/postgres) and applies
// the schema.
func NewPostgres(ctx context.Context, db *sql.DB) (*Store, error) {
	s := newStore(db, postgresDialect)
	if err := s.Migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}
