package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/kirillkom/docsearch/internal/core/domain"
	"github.com/kirillkom/docsearch/internal/core/ports"
)

var _ ports.VectorIndex = (*Index)(nil)

// Index is an append-only brute force cosine index.
// The dimension is fixed by the first segment added.
type Index struct {
	mu       sync.RWMutex
	dim      int
	segments []domain.Segment
}

func NewIndex() *Index {
	return &Index{}
}

func (x *Index) Add(_ context.Context, segment domain.Segment) error {
	if len(segment.Vector) == 0 {
		return domain.WrapError(domain.ErrInvalidArgument, "memory index add", fmt.Errorf("segment %s/%d has no vector", segment.DocumentID, segment.SequenceIndex))
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if x.dim == 0 {
		x.dim = len(segment.Vector)
	}
	if len(segment.Vector) != x.dim {
		return domain.WrapError(domain.ErrInvalidArgument, "memory index add", fmt.Errorf("vector dimension %d, index dimension %d", len(segment.Vector), x.dim))
	}

	stored := segment
	stored.Vector = append([]float32(nil), segment.Vector...)
	x.segments = append(x.segments, stored)
	return nil
}

func (x *Index) Search(_ context.Context, queryVector []float32, k int) ([]domain.SegmentMatch, error) {
	if k <= 0 {
		return nil, domain.WrapError(domain.ErrInvalidArgument, "memory index search", fmt.Errorf("k must be positive, got %d", k))
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	if len(x.segments) == 0 {
		return []domain.SegmentMatch{}, nil
	}
	if len(queryVector) != x.dim {
		return nil, domain.WrapError(domain.ErrInvalidArgument, "memory index search", fmt.Errorf("query dimension %d, index dimension %d", len(queryVector), x.dim))
	}
	return TopK(x.segments, queryVector, k), nil
}

// Len returns the number of stored segments.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.segments)
}

// TopK scores segments against the query and keeps the k best.
// Equal scores keep the order of segments.
func TopK(segments []domain.Segment, query []float32, k int) []domain.SegmentMatch {
	matches := make([]domain.SegmentMatch, 0, len(segments))
	for _, s := range segments {
		matches = append(matches, domain.SegmentMatch{Segment: s, Score: Cosine(query, s.Vector)})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if k < len(matches) {
		matches = matches[:k]
	}
	return matches
}

func Cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
