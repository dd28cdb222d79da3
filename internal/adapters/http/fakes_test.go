package httpadapter

import (
	"context"
	"sync"

	"github.com/kirillkom/docsearch/internal/config"
	"github.com/kirillkom/docsearch/internal/core/domain"
)

type ingestorFake struct {
	result *domain.IngestResult
	err    error

	mu    sync.Mutex
	title string
	text  string
}

func (f *ingestorFake) Ingest(_ context.Context, title, text string) (*domain.IngestResult, error) {
	f.mu.Lock()
	f.title, f.text = title, text
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &domain.IngestResult{DocumentID: "doc-1", Title: title, Segments: 2}, nil
}

type searchFake struct {
	count   int64
	entries []domain.RegistryEntry
	entry   *domain.RegistryEntry
	results []domain.CombinedSearchResult
	err     error

	mu     sync.Mutex
	lastK  int
	lastQ  string
	hybrid bool
}

func (f *searchFake) Count(context.Context) (int64, error) {
	return f.count, f.err
}

func (f *searchFake) GetDocument(_ context.Context, id string) (*domain.RegistryEntry, bool, error) {
	if f.err != nil {
		return nil, false, f.err
	}
	if f.entry == nil || f.entry.ID != id {
		return nil, false, nil
	}
	return f.entry, true, nil
}

func (f *searchFake) SearchByTitle(_ context.Context, term string) ([]domain.RegistryEntry, error) {
	f.mu.Lock()
	f.lastQ = term
	f.mu.Unlock()
	return f.entries, f.err
}

func (f *searchFake) FindSimilar(_ context.Context, term string, k int) ([]domain.CombinedSearchResult, error) {
	f.mu.Lock()
	f.lastQ, f.lastK, f.hybrid = term, k, false
	f.mu.Unlock()
	return f.results, f.err
}

func (f *searchFake) Hybrid(_ context.Context, term string, k int) ([]domain.CombinedSearchResult, error) {
	f.mu.Lock()
	f.lastQ, f.lastK, f.hybrid = term, k, true
	f.mu.Unlock()
	return f.results, f.err
}

type publisherFake struct {
	err error

	mu       sync.Mutex
	requests []domain.IngestRequest
}

func (f *publisherFake) PublishIngestRequest(_ context.Context, req domain.IngestRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.requests = append(f.requests, req)
	return nil
}

type embedderFake struct {
	vector []float32
	err    error
}

func (f embedderFake) Embed(context.Context, string) ([]float32, error) {
	return f.vector, f.err
}

func newTestRouter(cfg config.Config, svc Services) *Router {
	if svc.Ingestor == nil {
		svc.Ingestor = &ingestorFake{}
	}
	if svc.Search == nil {
		svc.Search = &searchFake{}
	}
	return NewRouter(cfg, svc)
}
