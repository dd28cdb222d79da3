package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/kirillkom/docsearch/internal/core/domain"
	"github.com/kirillkom/docsearch/internal/core/ports"
)

var _ ports.DocumentSearchService = (*SearchUseCase)(nil)

type SearchOptions struct {
	DefaultK         int
	HybridCandidates int
	RRFK             int
	LexicalWeight    float64
	// SemanticOnly drops the lexical ranking from hybrid fusion; a zero LexicalWeight means the default.
	SemanticOnly bool
}

func DefaultSearchOptions() SearchOptions {
	return SearchOptions{
		DefaultK:         10,
		HybridCandidates: 50,
		RRFK:             60,
		LexicalWeight:    1.0,
	}
}

func (o SearchOptions) withDefaults() SearchOptions {
	def := DefaultSearchOptions()
	if o.DefaultK <= 0 {
		o.DefaultK = def.DefaultK
	}
	if o.HybridCandidates <= 0 {
		o.HybridCandidates = def.HybridCandidates
	}
	if o.RRFK <= 0 {
		o.RRFK = def.RRFK
	}
	switch {
	case o.SemanticOnly:
		o.LexicalWeight = 0
	case o.LexicalWeight <= 0:
		o.LexicalWeight = def.LexicalWeight
	}
	return o
}

// SearchUseCase answers lexical, semantic and hybrid queries. It never writes to either store.
type SearchUseCase struct {
	embedder ports.Embedder
	index    ports.VectorIndex
	registry ports.DocumentRegistry
	opts     SearchOptions
}

func NewSearchUseCase(
	embedder ports.Embedder,
	index ports.VectorIndex,
	registry ports.DocumentRegistry,
	opts SearchOptions,
) *SearchUseCase {
	return &SearchUseCase{
		embedder: embedder,
		index:    index,
		registry: registry,
		opts:     opts.withDefaults(),
	}
}

func (uc *SearchUseCase) Count(ctx context.Context) (int64, error) {
	n, err := uc.registry.Count(ctx)
	if err != nil {
		return 0, ensureKind(err, domain.ErrRegistryUnavailable, "count documents")
	}
	return n, nil
}

func (uc *SearchUseCase) GetDocument(ctx context.Context, id string) (*domain.RegistryEntry, bool, error) {
	if strings.TrimSpace(id) == "" {
		return nil, false, domain.WrapError(domain.ErrInvalidArgument, "get document", fmt.Errorf("empty document id"))
	}
	entry, ok, err := uc.registry.Get(ctx, id)
	if err != nil {
		return nil, false, ensureKind(err, domain.ErrRegistryUnavailable, "get document")
	}
	return entry, ok, nil
}

func (uc *SearchUseCase) SearchByTitle(ctx context.Context, term string) ([]domain.RegistryEntry, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return []domain.RegistryEntry{}, nil
	}
	entries, err := uc.registry.SearchByTitle(ctx, term)
	if err != nil {
		return nil, ensureKind(err, domain.ErrRegistryUnavailable, "search by title")
	}
	if entries == nil {
		entries = []domain.RegistryEntry{}
	}
	return entries, nil
}

// FindSimilar returns the k nearest segments in index order, each joined with its document title.
// k == 0 means the configured default.
func (uc *SearchUseCase) FindSimilar(ctx context.Context, term string, k int) ([]domain.CombinedSearchResult, error) {
	if strings.TrimSpace(term) == "" {
		return []domain.CombinedSearchResult{}, nil
	}
	if k == 0 {
		k = uc.opts.DefaultK
	}

	matches, err := uc.semanticMatches(ctx, term, k)
	if err != nil {
		return nil, err
	}
	return uc.joinTitles(ctx, matches)
}

func (uc *SearchUseCase) semanticMatches(ctx context.Context, term string, k int) ([]domain.SegmentMatch, error) {
	vector, err := uc.embedder.Embed(ctx, term)
	if err != nil {
		return nil, ensureKind(err, domain.ErrEmbeddingUnavailable, "embed query")
	}
	matches, err := uc.index.Search(ctx, vector, k)
	if err != nil {
		return nil, ensureKind(err, domain.ErrIndexUnavailable, "search index")
	}
	return matches, nil
}

// joinTitles looks each owning document up once per call. A miss yields UnknownTitle.
func (uc *SearchUseCase) joinTitles(ctx context.Context, matches []domain.SegmentMatch) ([]domain.CombinedSearchResult, error) {
	titles := make(map[string]string, len(matches))
	out := make([]domain.CombinedSearchResult, 0, len(matches))
	for _, m := range matches {
		docID := m.Segment.DocumentID
		title, seen := titles[docID]
		if !seen {
			entry, ok, err := uc.registry.Get(ctx, docID)
			if err != nil {
				return nil, ensureKind(err, domain.ErrRegistryUnavailable, "join titles")
			}
			title = domain.UnknownTitle
			if ok {
				title = entry.Title
			}
			titles[docID] = title
		}
		out = append(out, domain.CombinedSearchResult{
			Score:        m.Score,
			Text:         m.Segment.Text,
			DocumentID:   docID,
			Title:        title,
			SegmentIndex: m.Segment.SequenceIndex,
		})
	}
	return out, nil
}
