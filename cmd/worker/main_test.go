package main

import (
	"path/filepath"
	"testing"

	"github.com/kirillkom/docsearch/internal/core/domain"
	"github.com/kirillkom/docsearch/internal/infrastructure/vector/bolt"
)

func TestRunReleasesStoresOnStartupFailure(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	boltPath := filepath.Join(dir, "vectors.db")
	t.Setenv("DOTENV_FILE", "")
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("EMBEDDER_BACKEND", "hash")
	t.Setenv("VECTOR_BACKEND", "bolt")
	t.Setenv("BOLT_PATH", boltPath)
	t.Setenv("REGISTRY_BACKEND", "sqlite")
	t.Setenv("SQLITE_PATH", filepath.Join(dir, "registry.db"))
	t.Setenv("WORKER_METRICS_PORT", "0")
	t.Setenv("INGEST_DIR", filepath.Join(dir, "missing"))

	if err := run(); err == nil {
		t.Fatal("expected an error for a missing ingest directory")
	}

	// bbolt holds an exclusive file lock until closed; Open times out otherwise.
	idx, err := bolt.Open(boltPath)
	if err != nil {
		t.Fatalf("vector index still locked after run returned: %v", err)
	}
	_ = idx.Close()
}

func TestFileOutcome(t *testing.T) {
	cases := map[string]domain.LoadedFile{
		"ingested": {Path: "a.txt", Segments: 2},
		"skipped":  {Path: "b.txt", Skipped: true},
		"error":    {Path: "c.txt", Error: "boom"},
	}
	for want, file := range cases {
		if got := fileOutcome(file); got != want {
			t.Fatalf("fileOutcome(%+v) = %q, want %q", file, got, want)
		}
	}
}
