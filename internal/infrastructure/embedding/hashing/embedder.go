package hashing

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/kirillkom/docsearch/internal/core/domain"
)

const (
	DefaultDimension = 512
	tokenWeight      = 1.0
	trigramWeight    = 0.5
)

// Embedder maps text to a feature-hashed vector of lowercase words and their
// character trigrams. It needs no model and is fully deterministic.
type Embedder struct {
	dim int
}

func New(dim int) (*Embedder, error) {
	if dim <= 0 {
		return nil, domain.WrapError(domain.ErrInvalidConfiguration, "hash embedder", fmt.Errorf("dimension must be positive, got %d", dim))
	}
	return &Embedder{dim: dim}, nil
}

func (e *Embedder) Dimension() int {
	return e.dim
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrEmbeddingUnavailable, "hash embed", err)
	}

	acc := make([]float64, e.dim)
	for _, token := range tokenize(text) {
		acc[e.bucket(token)] += tokenWeight
		for _, gram := range trigrams(token) {
			acc[e.bucket("#"+gram)] += trigramWeight
		}
	}

	var norm float64
	for _, v := range acc {
		norm += v * v
	}
	norm = math.Sqrt(norm)

	out := make([]float32, e.dim)
	if norm == 0 {
		return out, nil
	}
	for i, v := range acc {
		out[i] = float32(v / norm)
	}
	return out, nil
}

func (e *Embedder) bucket(feature string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(feature))
	return int(h.Sum32() % uint32(e.dim))
}

func tokenize(s string) []string {
	if s == "" {
		return nil
	}
	out := make([]string, 0, 24)
	var b strings.Builder
	for _, r := range s {
		r = unicode.ToLower(r)
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			out = append(out, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		out = append(out, b.String())
	}
	return out
}

// trigrams pads the token with boundary markers so prefixes and suffixes count.
func trigrams(token string) []string {
	runes := []rune("<" + token + ">")
	if len(runes) < 3 {
		return nil
	}
	out := make([]string, 0, len(runes)-2)
	for i := 0; i+3 <= len(runes); i++ {
		out = append(out, string(runes[i:i+3]))
	}
	return out
}
