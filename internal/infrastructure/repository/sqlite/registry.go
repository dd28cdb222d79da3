package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	_ "modernc.org/sqlite"

	"github.com/kirillkom/docsearch/internal/core/domain"
	"github.com/kirillkom/docsearch/internal/core/ports"
)

var _ ports.DocumentRegistry = (*Registry)(nil)

// migrations run in order; the slice index plus one is the schema version.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS document_registry (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_document_registry_title ON document_registry(title COLLATE NOCASE)`,
}

// Registry is a single-file registry for local and CLI use.
type Registry struct {
	db *sql.DB
}

func Open(path string) (*Registry, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// one writer keeps concurrent puts from tripping SQLITE_BUSY
	db.SetMaxOpenConns(1)

	r := &Registry{db: db}
	if err := r.Migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Registry) Close() error {
	return r.db.Close()
}

func (r *Registry) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`); err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var current int
	if err := r.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	for i, stmt := range migrations {
		version := i + 1
		if version <= current {
			continue
		}
		tx, err := r.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("beginning migration %d: %w", version, err)
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("executing migration %d: %w", version, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}
	return nil
}

func (r *Registry) Put(ctx context.Context, id, title string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO document_registry (id, title) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET title = excluded.title`, id, title)
	if err != nil {
		return domain.WrapError(domain.ErrRegistryUnavailable, "registry put", err)
	}
	return nil
}

func (r *Registry) Get(ctx context.Context, id string) (*domain.RegistryEntry, bool, error) {
	var entry domain.RegistryEntry
	err := r.db.QueryRowContext(ctx, `SELECT id, title FROM document_registry WHERE id = ?`, id).
		Scan(&entry.ID, &entry.Title)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, domain.WrapError(domain.ErrRegistryUnavailable, "registry get", err)
	}
	return &entry, true, nil
}

func (r *Registry) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM document_registry`).Scan(&n); err != nil {
		return 0, domain.WrapError(domain.ErrRegistryUnavailable, "registry count", err)
	}
	return n, nil
}

// SearchByTitle matches a case-insensitive substring of the title. SQLite LIKE folds
// ASCII only, so a term with other letters is matched in Go after a full scan.
func (r *Registry) SearchByTitle(ctx context.Context, pattern string) ([]domain.RegistryEntry, error) {
	term := strings.TrimSpace(pattern)
	if term == "" {
		return []domain.RegistryEntry{}, nil
	}

	query := `SELECT id, title FROM document_registry WHERE title LIKE ? ESCAPE '\' ORDER BY rowid`
	args := []any{"%" + likeEscaper.Replace(term) + "%"}
	var keep func(title string) bool
	if !isASCII(term) {
		query = `SELECT id, title FROM document_registry ORDER BY rowid`
		args = nil
		needle := strings.ToLower(term)
		keep = func(title string) bool {
			return strings.Contains(strings.ToLower(title), needle)
		}
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.WrapError(domain.ErrRegistryUnavailable, "registry search", err)
	}
	defer rows.Close()

	out := make([]domain.RegistryEntry, 0)
	for rows.Next() {
		var entry domain.RegistryEntry
		if err := rows.Scan(&entry.ID, &entry.Title); err != nil {
			return nil, domain.WrapError(domain.ErrRegistryUnavailable, "registry search", err)
		}
		if keep == nil || keep(entry.Title) {
			out = append(out, entry)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrRegistryUnavailable, "registry search", err)
	}
	return out, nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
