package ports

import (
	"context"
	"io"

	"github.com/kirillkom/docsearch/internal/core/domain"
)

// Chunker splits document text into overlapping segments.
type Chunker interface {
	Split(text string) ([]string, error)
}

// Embedder builds a fixed-dimension vector for a text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex stores segments and answers top-k similarity queries.
// A segment is searchable as soon as Add returns. Results are ordered by
// descending score, ties in insertion order.
type VectorIndex interface {
	Add(ctx context.Context, segment domain.Segment) error
	Search(ctx context.Context, queryVector []float32, k int) ([]domain.SegmentMatch, error)
}

// DocumentRegistry is the keyed store of document metadata.
// Get reports a miss as (nil, false, nil). Implementations must be safe for concurrent use.
type DocumentRegistry interface {
	Put(ctx context.Context, id, title string) error
	Get(ctx context.Context, id string) (*domain.RegistryEntry, bool, error)
	Count(ctx context.Context) (int64, error)
	SearchByTitle(ctx context.Context, pattern string) ([]domain.RegistryEntry, error)
}

// IngestQueue publishes and consumes queued ingestion requests.
type IngestQueue interface {
	IngestPublisher
	SubscribeIngestRequests(ctx context.Context, handler func(context.Context, domain.IngestRequest) error) error
}

// FileSource lists and opens the files of an ingestion directory.
type FileSource interface {
	List(ctx context.Context) ([]string, error)
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

// TextExtractor turns a file's bytes into plain text.
type TextExtractor interface {
	Extract(ctx context.Context, name string, body io.Reader) (string, error)
}
