package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/kirillkom/docsearch/internal/core/domain"
)

// Hybrid widens the semantic candidate pool, ranks the same candidates lexically
// by token overlap with their title and text, and fuses both rankings with RRF.
func (uc *SearchUseCase) Hybrid(ctx context.Context, term string, k int) ([]domain.CombinedSearchResult, error) {
	if strings.TrimSpace(term) == "" {
		return []domain.CombinedSearchResult{}, nil
	}
	if k < 0 {
		return nil, domain.WrapError(domain.ErrInvalidArgument, "hybrid search", fmt.Errorf("k must not be negative, got %d", k))
	}
	if k == 0 {
		k = uc.opts.DefaultK
	}

	matches, err := uc.semanticMatches(ctx, term, max(k, uc.opts.HybridCandidates))
	if err != nil {
		return nil, err
	}
	semantic, err := uc.joinTitles(ctx, matches)
	if err != nil {
		return nil, err
	}

	lexical := rankLexically(term, semantic)
	fused := fuseRRF(semantic, lexical, uc.opts.RRFK, uc.opts.LexicalWeight)
	if len(fused) > k {
		fused = fused[:k]
	}
	return fused, nil
}

// rankLexically keeps candidates sharing at least one token with the query,
// best overlap first, ties in semantic order.
func rankLexically(term string, candidates []domain.CombinedSearchResult) []domain.CombinedSearchResult {
	query := toTokenSet(term)
	if len(query) == 0 {
		return nil
	}

	type scored struct {
		result  domain.CombinedSearchResult
		overlap float64
	}
	hits := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		overlap := tokenOverlap(query, toTokenSet(c.Title+" "+c.Text))
		if overlap > 0 {
			hits = append(hits, scored{result: c, overlap: overlap})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].overlap > hits[j].overlap
	})

	out := make([]domain.CombinedSearchResult, len(hits))
	for i, h := range hits {
		out[i] = h.result
	}
	return out
}

func fuseRRF(semantic, lexical []domain.CombinedSearchResult, rrfK int, lexicalWeight float64) []domain.CombinedSearchResult {
	type fused struct {
		result domain.CombinedSearchResult
		score  float64
	}
	acc := make(map[string]*fused, len(semantic))
	order := make([]string, 0, len(semantic))
	add := func(list []domain.CombinedSearchResult, weight float64) {
		for rank, r := range list {
			key := resultKey(r)
			f, ok := acc[key]
			if !ok {
				f = &fused{result: r}
				acc[key] = f
				order = append(order, key)
			}
			f.score += weight / float64(rrfK+rank+1)
		}
	}
	add(semantic, 1.0)
	add(lexical, lexicalWeight)

	out := make([]domain.CombinedSearchResult, 0, len(order))
	for _, key := range order {
		f := acc[key]
		r := f.result
		r.Score = f.score
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].DocumentID != out[j].DocumentID {
			return out[i].DocumentID < out[j].DocumentID
		}
		return out[i].SegmentIndex < out[j].SegmentIndex
	})
	return out
}

func resultKey(r domain.CombinedSearchResult) string {
	return fmt.Sprintf("%s:%d", r.DocumentID, r.SegmentIndex)
}

func tokenOverlap(query, candidate map[string]struct{}) float64 {
	if len(query) == 0 || len(candidate) == 0 {
		return 0
	}
	matches := 0
	for token := range query {
		if _, ok := candidate[token]; ok {
			matches++
		}
	}
	return float64(matches) / float64(len(query))
}

func toTokenSet(s string) map[string]struct{} {
	tokens := splitWordsLower(s)
	out := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		out[token] = struct{}{}
	}
	return out
}

func splitWordsLower(s string) []string {
	if s == "" {
		return nil
	}
	tokens := make([]string, 0, 16)
	var b strings.Builder
	for _, r := range s {
		r = unicode.ToLower(r)
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		tokens = append(tokens, b.String())
	}
	return tokens
}
