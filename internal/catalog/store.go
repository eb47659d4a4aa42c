// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package catalog is the authoritative local book store. It answers
// the synchronous, low-latency leg of every search; external providers
// only ever augment what the catalog returns.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/openshelf/openshelf/pkg/types"
)

// Store manages the catalog SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the catalog database at cfg.Path and creates
// the schema if it does not exist.
func Open(cfg types.CatalogConfig) (*Store, error) {
	path := cfg.Path
	if path == "" {
		path = filepath.Join("data", "catalog.db")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating catalog directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening catalog database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating catalog schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS books (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			slug TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL,
			authors TEXT,
			isbn10 TEXT,
			isbn13 TEXT,
			published TEXT,
			cover_url TEXT,
			cover_width INTEGER NOT NULL DEFAULT 0,
			cover_height INTEGER NOT NULL DEFAULT 0,
			cover_stored INTEGER NOT NULL DEFAULT 0,
			rating REAL NOT NULL DEFAULT 0
		)`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS books_fts USING fts5(
			title, authors,
			content='books', content_rowid='id'
		)`,
		`CREATE TRIGGER IF NOT EXISTS books_ai AFTER INSERT ON books BEGIN
			INSERT INTO books_fts(rowid, title, authors)
			VALUES (new.id, new.title, new.authors);
		END`,
		`CREATE TRIGGER IF NOT EXISTS books_ad AFTER DELETE ON books BEGIN
			INSERT INTO books_fts(books_fts, rowid, title, authors)
			VALUES ('delete', old.id, old.title, old.authors);
		END`,
		`CREATE TRIGGER IF NOT EXISTS books_au AFTER UPDATE ON books BEGIN
			INSERT INTO books_fts(books_fts, rowid, title, authors)
			VALUES ('delete', old.id, old.title, old.authors);
			INSERT INTO books_fts(rowid, title, authors)
			VALUES (new.id, new.title, new.authors);
		END`,
		`CREATE INDEX IF NOT EXISTS idx_books_isbn13 ON books(isbn13)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing %.40q: %w", stmt, err)
		}
	}
	return nil
}

// Search matches the normalized query against the full-text index and
// returns up to limit candidates tagged source=local with stable local
// ids. An empty query returns no results.
func (s *Store) Search(ctx context.Context, normalized string, f types.Filters, limit int) ([]types.CandidateResult, error) {
	match := ftsQuery(normalized)
	if match == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	q := `SELECT b.id, b.slug, b.title, b.authors, b.isbn10, b.isbn13,
			b.published, b.cover_url, b.cover_width, b.cover_height,
			b.cover_stored, b.rating
		FROM books_fts f
		JOIN books b ON b.id = f.rowid
		WHERE books_fts MATCH ?`
	args := []any{match}

	if f.PublishedYear > 0 {
		q += ` AND CAST(strftime('%Y', b.published) AS INTEGER) = ?`
		args = append(args, f.PublishedYear)
	}

	switch f.OrderBy {
	case types.OrderNewest:
		q += ` ORDER BY b.published DESC`
	case types.OrderTitle:
		q += ` ORDER BY b.title COLLATE NOCASE ASC`
	default:
		q += ` ORDER BY rank`
	}
	q += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying catalog: %w", err)
	}
	defer rows.Close()

	var results []types.CandidateResult
	for rows.Next() {
		var (
			c         types.CandidateResult
			id        int64
			authors   sql.NullString
			published sql.NullString
			isbn10    sql.NullString
			isbn13    sql.NullString
			coverURL  sql.NullString
			stored    int
		)
		if err := rows.Scan(&id, &c.Slug, &c.Title, &authors, &isbn10, &isbn13,
			&published, &coverURL, &c.CoverWidth, &c.CoverHeight, &stored, &c.Rating); err != nil {
			return nil, fmt.Errorf("scanning catalog row: %w", err)
		}
		c.LocalID = fmt.Sprintf("%d", id)
		c.Source = types.SourceLocal
		c.ISBN10 = isbn10.String
		c.ISBN13 = isbn13.String
		c.CoverURL = coverURL.String
		c.CoverStored = stored != 0
		if authors.String != "" {
			c.Authors = strings.Split(authors.String, "\x1f")
		}
		if published.String != "" {
			if t, parseErr := time.Parse(time.RFC3339, published.String); parseErr == nil {
				c.Published = t
			}
		}
		results = append(results, c)
	}
	return results, rows.Err()
}

// Upsert inserts or replaces one book keyed by slug and returns its
// local id. Batch ingestion jobs and tests use this as the stable
// write contract.
func (s *Store) Upsert(ctx context.Context, b types.CandidateResult) (string, error) {
	if b.Slug == "" || b.Title == "" {
		return "", fmt.Errorf("upsert requires slug and title")
	}

	var published any
	if !b.Published.IsZero() {
		published = b.Published.UTC().Format(time.RFC3339)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO books (slug, title, authors, isbn10, isbn13, published,
			cover_url, cover_width, cover_height, cover_stored, rating)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(slug) DO UPDATE SET
			title = excluded.title,
			authors = excluded.authors,
			isbn10 = excluded.isbn10,
			isbn13 = excluded.isbn13,
			published = excluded.published,
			cover_url = excluded.cover_url,
			cover_width = excluded.cover_width,
			cover_height = excluded.cover_height,
			cover_stored = excluded.cover_stored,
			rating = excluded.rating`,
		b.Slug, b.Title, strings.Join(b.Authors, "\x1f"), b.ISBN10, b.ISBN13,
		published, b.CoverURL, b.CoverWidth, b.CoverHeight, boolInt(b.CoverStored), b.Rating)
	if err != nil {
		return "", fmt.Errorf("upserting %q: %w", b.Slug, err)
	}

	var id int64
	row := s.db.QueryRowContext(ctx, `SELECT id FROM books WHERE slug = ?`, b.Slug)
	if err := row.Scan(&id); err != nil {
		return "", fmt.Errorf("resolving id for %q: %w", b.Slug, err)
	}
	return fmt.Sprintf("%d", id), nil
}

// Count returns the number of books in the catalog.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM books`).Scan(&n)
	return n, err
}

// ftsQuery turns a normalized query into a prefix-match FTS5 query
// ("dune mess" becomes `"dune"* "mess"*`).
func ftsQuery(normalized string) string {
	fields := strings.Fields(normalized)
	if len(fields) == 0 {
		return ""
	}
	terms := make([]string, len(fields))
	for i, f := range fields {
		terms[i] = `"` + strings.ReplaceAll(f, `"`, `""`) + `"*`
	}
	return strings.Join(terms, " ")
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
