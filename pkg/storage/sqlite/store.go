// Package sqlite persists the corpus (sentences, word statistics and the
// author permission ledger) in a single SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tinyland-inc/markovrelay/pkg/address"
	"github.com/tinyland-inc/markovrelay/pkg/corpus"
	"github.com/tinyland-inc/markovrelay/pkg/logger"
	"github.com/tinyland-inc/markovrelay/pkg/parser"
)

const schema = `
CREATE TABLE IF NOT EXISTS sentences (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	address         TEXT NOT NULL,
	author_service  TEXT NOT NULL,
	author_instance TEXT NOT NULL,
	author_id       INTEGER NOT NULL,
	created_at      INTEGER NOT NULL,
	text            TEXT NOT NULL,
	tokens          TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sentences_address ON sentences(address);

CREATE TABLE IF NOT EXISTS word_stats (
	name        TEXT PRIMARY KEY,
	appearances INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS author_permissions (
	author_service  TEXT NOT NULL,
	author_instance TEXT NOT NULL,
	author_id       INTEGER NOT NULL,
	from_address    TEXT NOT NULL,
	to_address      TEXT NOT NULL,
	denied          INTEGER NOT NULL,
	updated_at      INTEGER NOT NULL,
	PRIMARY KEY (author_service, author_instance, author_id, from_address)
);
`

// Store owns the database handle. Its sentence and word statistic halves
// are exposed as separate views because both contracts name a ReadRange.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates the database at path if needed and applies the schema.
// The special path ":memory:" opens a private in-memory database.
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer at a time; readers share the WAL
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	logger.DebugCF("storage", "Opened corpus database", map[string]any{"path": path})
	return &Store{db: db, path: path}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Ping reports whether the database answers.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) Path() string { return s.path }

func (s *Store) WordStats() *WordStats { return &WordStats{db: s.db} }

func (s *Store) Sentences() *Sentences { return &Sentences{db: s.db} }

// WordStats implements corpus.WordStatStore.
type WordStats struct{ db *sql.DB }

// WriteFromText counts every token of text once per appearance.
func (w *WordStats) WriteFromText(ctx context.Context, text string) error {
	tokens := parser.Tokenize(text)
	if len(tokens) == 0 {
		return nil
	}
	return withTx(ctx, w.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO word_stats (name, appearances) VALUES (?, 1)
			ON CONFLICT(name) DO UPDATE SET appearances = appearances + 1`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, tok := range tokens {
			if _, err := stmt.ExecContext(ctx, tok); err != nil {
				return fmt.Errorf("word %q: %w", tok, err)
			}
		}
		return nil
	})
}

// ReadRange returns the appearance count of each known name. Unknown names
// are absent from the result.
func (w *WordStats) ReadRange(ctx context.Context, names []string) (map[string]int64, error) {
	out := make(map[string]int64, len(names))
	if len(names) == 0 {
		return out, nil
	}
	args := make([]any, len(names))
	for i, n := range names {
		args[i] = n
	}
	q := `SELECT name, appearances FROM word_stats WHERE name IN (` + placeholders(len(names)) + `)`
	rows, err := w.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("reading word stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		var n int64
		if err := rows.Scan(&name, &n); err != nil {
			return nil, err
		}
		out[name] = n
	}
	return out, rows.Err()
}

// Sentences implements corpus.SentenceStore.
type Sentences struct{ db *sql.DB }

func (s *Sentences) WriteRange(ctx context.Context, sentences []corpus.Sentence) error {
	if len(sentences) == 0 {
		return nil
	}
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO sentences
			(address, author_service, author_instance, author_id, created_at, text, tokens)
			VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, st := range sentences {
			if st.Address.IsZero() {
				return errors.New("sentence without address")
			}
			_, err := stmt.ExecContext(ctx,
				st.Address.String(),
				string(st.Author.Service),
				st.Author.Instance,
				int64(st.Author.UserID),
				st.Timestamp.UnixMilli(),
				st.Text,
				tokenColumn(st.Text),
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Sentences) DeleteRange(ctx context.Context, f corpus.SentenceFilter) (int64, error) {
	where, args := filterClause(f)
	res, err := s.db.ExecContext(ctx, `DELETE FROM sentences`+where, args...)
	if err != nil {
		return 0, fmt.Errorf("deleting sentences: %w", err)
	}
	return res.RowsAffected()
}

// ReadRange returns up to limit random sentences matching f. A limit of
// zero or less is unbounded.
func (s *Sentences) ReadRange(ctx context.Context, f corpus.SentenceFilter, limit int) ([]corpus.Sentence, error) {
	where, args := filterClause(f)
	q := `SELECT address, author_service, author_instance, author_id, created_at, text FROM sentences` + where +
		` ORDER BY random()`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("reading sentences: %w", err)
	}
	defer rows.Close()

	var out []corpus.Sentence
	for rows.Next() {
		var (
			addr, service string
			st            corpus.Sentence
			authorID      int64
			created       int64
		)
		if err := rows.Scan(&addr, &service, &st.Author.Instance, &authorID, &created, &st.Text); err != nil {
			return nil, err
		}
		if st.Address, err = address.Parse(addr); err != nil {
			logger.WarnCF("storage", "Skipping sentence with bad address", map[string]any{"address": addr})
			continue
		}
		st.Author.Service = address.ServiceKind(service)
		st.Author.UserID = uint64(authorID)
		st.Timestamp = time.UnixMilli(created).UTC()
		out = append(out, st)
	}
	return out, rows.Err()
}

// WriteAuthorPermission implements corpus.PermissionLedger. A later record
// for the same author and starting scope replaces the earlier one.
func (s *Store) WriteAuthorPermission(ctx context.Context, p corpus.AuthorPermission) error {
	from, to := "", ""
	if p.From != nil {
		from = p.From.String()
	}
	if p.To != nil && !p.Denied {
		to = p.To.String()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO author_permissions
		(author_service, author_instance, author_id, from_address, to_address, denied, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(author_service, author_instance, author_id, from_address)
		DO UPDATE SET to_address = excluded.to_address, denied = excluded.denied, updated_at = excluded.updated_at`,
		string(p.Author.Service), p.Author.Instance, int64(p.Author.UserID), from, to, p.Denied, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("writing author permission: %w", err)
	}
	return nil
}

// AuthorPermissions lists the ledger entries of one author.
func (s *Store) AuthorPermissions(ctx context.Context, a corpus.Author) ([]corpus.AuthorPermission, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT from_address, to_address, denied FROM author_permissions
		WHERE author_service = ? AND author_instance = ? AND author_id = ? ORDER BY from_address`,
		string(a.Service), a.Instance, int64(a.UserID))
	if err != nil {
		return nil, fmt.Errorf("reading author permissions: %w", err)
	}
	defer rows.Close()

	var out []corpus.AuthorPermission
	for rows.Next() {
		var from, to string
		p := corpus.AuthorPermission{Author: a}
		if err := rows.Scan(&from, &to, &p.Denied); err != nil {
			return nil, err
		}
		if p.From, err = optionalAddress(from); err != nil {
			return nil, err
		}
		if p.To, err = optionalAddress(to); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func optionalAddress(s string) (*address.Address, error) {
	if s == "" {
		return nil, nil
	}
	a, err := address.Parse(s)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// filterClause matches an address and everything under it as a range over
// the serialized form: children extend the parent with ':' and ';' sorts
// directly after ':'.
func filterClause(f corpus.SentenceFilter) (string, []any) {
	var conds []string
	var args []any

	if len(f.Include) > 0 {
		var ors []string
		for _, a := range f.Include {
			if a.IsZero() {
				ors = nil
				break
			}
			prefix := a.String()
			ors = append(ors, `(address = ? OR (address >= ? AND address < ?))`)
			args = append(args, prefix, prefix+":", prefix+";")
		}
		if len(ors) > 0 {
			conds = append(conds, "("+strings.Join(ors, " OR ")+")")
		} else {
			args = nil
		}
	}
	for _, kw := range f.Keywords {
		conds = append(conds, `instr(tokens, ?) > 0`)
		args = append(args, " "+kw+" ")
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func tokenColumn(text string) string {
	return " " + strings.Join(parser.Tokenize(text), " ") + " "
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func withTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
