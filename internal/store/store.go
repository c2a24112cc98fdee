// Package store implements corpus.DataStore over SQL databases holding the
// thesis catalogue: theses, programs, supervisors, supervising_info and
// files. SQLite and PostgreSQL share one implementation and differ only in
// dialect.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/thesis-search/internal/corpus"
	apperrors "github.com/Adithya-Monish-Kumar-K/thesis-search/pkg/errors"
)

type dialect struct {
	name       string
	schema     []string
	insertName string // inserts (name) into %s, ignoring duplicates
	aggregate  string // joins supervisor names
	numbered   bool   // $1 placeholders instead of ?
}

// Store is a SQL-backed corpus.DataStore.
type Store struct {
	db      *sql.DB
	dialect dialect
	logger  *slog.Logger
}

var _ corpus.DataStore = (*Store)(nil)

func newStore(db *sql.DB, d dialect) *Store {
	return &Store{
		db:      db,
		dialect: d,
		logger:  slog.Default().With("component", "store", "driver", d.name),
	}
}

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Migrate creates the schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("applying schema: %w", err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders for dialects with numbered parameters.
func (s *Store) rebind(query string) string {
	if !s.dialect.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Corpus returns every thesis text of the requested variant ordered by id.
// Missing texts are returned as empty documents so ids stay aligned with
// the catalogue.
func (s *Store) Corpus(ctx context.Context, variant corpus.Variant) (corpus.Corpus, error) {
	var column string
	switch variant {
	case corpus.Raw:
		column = "text"
	case corpus.Lemmatized:
		column = "lemmatized"
	default:
		return nil, apperrors.Configf("unknown corpus variant %q", variant)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT id, COALESCE("+column+", '') FROM theses ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("querying %s corpus: %w", variant, err)
	}
	defer rows.Close()

	var c corpus.Corpus
	for rows.Next() {
		var doc corpus.Document
		if err := rows.Scan(&doc.ID, &doc.Text); err != nil {
			return nil, fmt.Errorf("scanning corpus row: %w", err)
		}
		c = append(c, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating corpus rows: %w", err)
	}
	s.logger.Debug("corpus loaded", "variant", variant, "docs", len(c))
	return c, nil
}

// Record returns the display metadata of thesis id. Several supervisors are
// joined with ", ".
func (s *Store) Record(ctx context.Context, id int64) (corpus.Record, error) {
	query := s.rebind(fmt.Sprintf(`
		SELECT theses.title, theses.year, programs.name, theses.student,
			(SELECT %s
			 FROM supervising_info
			 JOIN supervisors ON supervisors.id = supervising_info.supervisor_id
			 WHERE supervising_info.thesis_id = theses.id),
			theses.text,
			(SELECT MIN(files.link) FROM files WHERE files.thesis_id = theses.id)
		FROM theses
		LEFT JOIN programs ON programs.id = theses.program_id
		WHERE theses.id = ?`, s.dialect.aggregate))

	var title, year, program, student, supervisor, abstract, link sql.NullString
	err := s.db.QueryRowContext(ctx, query, id).Scan(&title, &year, &program, &student, &supervisor, &abstract, &link)
	if errors.Is(err, sql.ErrNoRows) {
		return corpus.Record{}, apperrors.Newf(apperrors.ErrNotFound, 404, "thesis %d", id)
	}
	if err != nil {
		return corpus.Record{}, fmt.Errorf("querying thesis %d: %w", id, err)
	}
	return corpus.Record{
		ID:         id,
		Title:      title.String,
		Year:       year.String,
		Program:    program.String,
		Student:    student.String,
		Supervisor: supervisor.String,
		Abstract:   abstract.String,
		FileLink:   link.String,
	}, nil
}

// AddThesis stores a thesis with its program, supervisors and file link in
// one transaction.
func (s *Store) AddThesis(ctx context.Context, t corpus.Thesis) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var programID sql.NullInt64
		if t.Program != "" {
			if _, err := tx.ExecContext(ctx, s.rebind(fmt.Sprintf(s.dialect.insertName, "programs")), t.Program); err != nil {
				return fmt.Errorf("adding program: %w", err)
			}
			if err := tx.QueryRowContext(ctx, s.rebind("SELECT id FROM programs WHERE name = ?"), t.Program).Scan(&programID); err != nil {
				return fmt.Errorf("looking up program: %w", err)
			}
		}

		var lemmatized sql.NullString
		if t.Lemmatized != "" {
			lemmatized = sql.NullString{String: t.Lemmatized, Valid: true}
		}
		_, err := tx.ExecContext(ctx, s.rebind(`
			INSERT INTO theses (id, title, text, lemmatized, student, program_id, year)
			VALUES (?, ?, ?, ?, ?, ?, ?)`),
			t.ID, t.Title, t.Abstract, lemmatized, t.Student, programID, nullYear(t.Year))
		if err != nil {
			return fmt.Errorf("adding thesis %d: %w", t.ID, err)
		}

		for _, sup := range t.Supervisors {
			if _, err := tx.ExecContext(ctx, s.rebind(fmt.Sprintf(s.dialect.insertName, "supervisors")), sup); err != nil {
				return fmt.Errorf("adding supervisor: %w", err)
			}
			_, err := tx.ExecContext(ctx, s.rebind(`
				INSERT INTO supervising_info (thesis_id, supervisor_id)
				VALUES (?, (SELECT id FROM supervisors WHERE name = ?))`), t.ID, sup)
			if err != nil {
				return fmt.Errorf("linking supervisor: %w", err)
			}
		}

		if t.FileLink != "" {
			if _, err := tx.ExecContext(ctx, s.rebind("INSERT INTO files (thesis_id, link) VALUES (?, ?)"), t.ID, t.FileLink); err != nil {
				return fmt.Errorf("adding file link: %w", err)
			}
		}
		return nil
	})
}

// SetLemmatized stores the lemmatized text of each document.
func (s *Store) SetLemmatized(ctx context.Context, docs corpus.Corpus) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, s.rebind("UPDATE theses SET lemmatized = ? WHERE id = ?"))
		if err != nil {
			return fmt.Errorf("preparing update: %w", err)
		}
		defer stmt.Close()
		for _, d := range docs {
			if _, err := stmt.ExecContext(ctx, d.Text, d.ID); err != nil {
				return fmt.Errorf("updating thesis %d: %w", d.ID, err)
			}
		}
		return nil
	})
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rolling back transaction after error %v: %w", rbErr, err)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func nullYear(year int) sql.NullInt64 {
	if year == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(year), Valid: true}
}

// RawTexts returns the raw corpus, the input of lemmatization.
func (s *Store) RawTexts(ctx context.Context) (corpus.Corpus, error) {
	return s.Corpus(ctx, corpus.Raw)
}
