package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/docsearch/internal/core/domain"
	"github.com/kirillkom/docsearch/internal/core/ports"
)

var _ ports.DocumentRegistry = (*RegistryRepository)(nil)

const schemaLockID int64 = 2026101501

type RegistryRepository struct {
	db *sql.DB
}

func NewRegistryRepository(db *sql.DB) *RegistryRepository {
	return &RegistryRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the registry table. Concurrent startups serialize on an advisory lock.
func (r *RegistryRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockID); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS document_registry (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_document_registry_created_at ON document_registry(created_at);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *RegistryRepository) Put(ctx context.Context, id, title string) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO document_registry (id, title, created_at)
VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title
`, id, title, time.Now().UTC())
	if err != nil {
		return domain.WrapError(domain.ErrRegistryUnavailable, "registry put", err)
	}
	return nil
}

func (r *RegistryRepository) Get(ctx context.Context, id string) (*domain.RegistryEntry, bool, error) {
	var entry domain.RegistryEntry
	err := r.db.QueryRowContext(ctx, `SELECT id, title FROM document_registry WHERE id = $1`, id).
		Scan(&entry.ID, &entry.Title)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, domain.WrapError(domain.ErrRegistryUnavailable, "registry get", err)
	}
	return &entry, true, nil
}

func (r *RegistryRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM document_registry`).Scan(&n); err != nil {
		return 0, domain.WrapError(domain.ErrRegistryUnavailable, "registry count", err)
	}
	return n, nil
}

func (r *RegistryRepository) SearchByTitle(ctx context.Context, pattern string) ([]domain.RegistryEntry, error) {
	term := strings.TrimSpace(pattern)
	if term == "" {
		return []domain.RegistryEntry{}, nil
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT id, title
FROM document_registry
WHERE title ILIKE $1 ESCAPE '\'
ORDER BY created_at, id
`, "%"+escapeLike(term)+"%")
	if err != nil {
		return nil, domain.WrapError(domain.ErrRegistryUnavailable, "registry search", err)
	}
	defer rows.Close()

	out := make([]domain.RegistryEntry, 0)
	for rows.Next() {
		var entry domain.RegistryEntry
		if err := rows.Scan(&entry.ID, &entry.Title); err != nil {
			return nil, domain.WrapError(domain.ErrRegistryUnavailable, "registry search", fmt.Errorf("scan row: %w", err))
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrRegistryUnavailable, "registry search", err)
	}
	return out, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
