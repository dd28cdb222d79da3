package ports

import (
	"context"

	"github.com/kirillkom/docsearch/internal/core/domain"
)

// DocumentIngestor is the inbound contract for synchronous ingestion.
type DocumentIngestor interface {
	Ingest(ctx context.Context, title, text string) (*domain.IngestResult, error)
}

// DocumentSearchService is the inbound contract for lexical, semantic and hybrid queries.
type DocumentSearchService interface {
	Count(ctx context.Context) (int64, error)
	GetDocument(ctx context.Context, id string) (*domain.RegistryEntry, bool, error)
	SearchByTitle(ctx context.Context, term string) ([]domain.RegistryEntry, error)
	FindSimilar(ctx context.Context, term string, k int) ([]domain.CombinedSearchResult, error)
	Hybrid(ctx context.Context, term string, k int) ([]domain.CombinedSearchResult, error)
}

// IngestPublisher hands ingestion off to a worker.
type IngestPublisher interface {
	PublishIngestRequest(ctx context.Context, req domain.IngestRequest) error
}

// DirectoryLoader bulk-ingests files from a source directory.
type DirectoryLoader interface {
	Load(ctx context.Context, progress func(domain.LoadedFile)) ([]domain.LoadedFile, error)
}
