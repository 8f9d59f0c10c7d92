// Package search keeps a SQLite FTS5 index of note text.
package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"unicode"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/freeeve/chessnotes/internal/vault"
)

const schema = `CREATE VIRTUAL TABLE IF NOT EXISTS notes_fts USING fts5(
	path UNINDEXED,
	title,
	tags,
	body,
	tokenize = 'unicode61'
)`

// Hit is one search result.
type Hit struct {
	Path    string `json:"path"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// Config configures an Index.
type Config struct {
	Path   string // database file; ":memory:" for a throwaway index
	Logger zerolog.Logger
}

// Index is a full-text index over notes.
type Index struct {
	db  *sql.DB
	log zerolog.Logger
}

// Open opens or creates the index database.
func Open(cfg Config) (*Index, error) {
	if cfg.Path == "" {
		cfg.Path = ":memory:"
	}
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// one connection: ":memory:" databases are per connection
	db.SetMaxOpenConns(1)

	if cfg.Path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting WAL mode: %w", err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating fts table: %w", err)
	}
	return &Index{db: db, log: cfg.Logger.With().Str("component", "search").Logger()}, nil
}

// Close closes the database.
func (ix *Index) Close() error {
	return ix.db.Close()
}

// Upsert replaces the indexed text of a note.
func (ix *Index) Upsert(ctx context.Context, note vault.Note, body string) error {
	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM notes_fts WHERE path = ?`, note.Path); err != nil {
		return fmt.Errorf("delete %s: %w", note.Path, err)
	}
	tags := strings.Join(vault.Tags(body), " ")
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO notes_fts (path, title, tags, body) VALUES (?, ?, ?, ?)`,
		note.Path, note.Title, tags, body); err != nil {
		return fmt.Errorf("insert %s: %w", note.Path, err)
	}
	return tx.Commit()
}

// Remove drops a note from the index.
func (ix *Index) Remove(ctx context.Context, path string) error {
	_, err := ix.db.ExecContext(ctx, `DELETE FROM notes_fts WHERE path = ?`, path)
	return err
}

// Rebuild clears the index and indexes every note in the store.
func (ix *Index) Rebuild(ctx context.Context, store *vault.Store) (int, error) {
	notes, err := store.List()
	if err != nil {
		return 0, err
	}
	if _, err := ix.db.ExecContext(ctx, `DELETE FROM notes_fts`); err != nil {
		return 0, fmt.Errorf("clear index: %w", err)
	}
	for _, n := range notes {
		body, err := store.Read(n.Path)
		if err != nil {
			return 0, err
		}
		if err := ix.Upsert(ctx, n, body); err != nil {
			return 0, err
		}
	}
	ix.log.Info().Int("notes", len(notes)).Msg("index rebuilt")
	return len(notes), nil
}

// Search runs a natural language query and returns hits by relevance.
// A query with no usable terms returns no hits.
func (ix *Index) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	q := BuildQuery(query)
	if q == "" {
		return []Hit{}, nil
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := ix.db.QueryContext(ctx, `
		SELECT path, title, snippet(notes_fts, 3, '[', ']', '...', 12)
		FROM notes_fts
		WHERE notes_fts MATCH ?
		ORDER BY rank
		LIMIT ?`, q, limit)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", q, err)
	}
	defer rows.Close()

	hits := []Hit{}
	for rows.Next() {
		var h Hit
		if err := rows.Scan(&h.Path, &h.Title, &h.Snippet); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	ix.log.Debug().Str("query", q).Int("hits", len(hits)).Msg("search")
	return hits, rows.Err()
}

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "in": true, "on": true,
	"at": true, "to": true, "for": true, "of": true, "is": true,
	"it": true, "and": true, "or": true, "with": true, "from": true,
	"by": true, "this": true, "that": true, "as": true, "be": true,
}

// BuildQuery turns free text into an FTS5 query: words are trimmed of
// surrounding punctuation, stopwords and single characters dropped, each
// remaining word quoted, and the words joined with OR. Two-letter words are
// kept so squares like e4 are searchable.
func BuildQuery(query string) string {
	var terms []string
	for _, w := range strings.Fields(query) {
		w = strings.TrimFunc(w, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
		})
		if len([]rune(w)) < 2 || stopwords[strings.ToLower(w)] {
			continue
		}
		terms = append(terms, `"`+strings.ReplaceAll(w, `"`, `""`)+`"`)
	}
	return strings.Join(terms, " OR ")
}
