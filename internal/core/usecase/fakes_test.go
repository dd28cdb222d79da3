package usecase

import (
	"context"
	"errors"
	"sync"

	"github.com/kirillkom/docsearch/internal/core/domain"
)

type chunkerFake struct {
	parts []string
	err   error
}

func (f *chunkerFake) Split(string) ([]string, error) {
	return f.parts, f.err
}

type embedderFake struct {
	mu     sync.Mutex
	calls  []string
	failAt int
	err    error
}

func (f *embedderFake) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, text)
	if f.err != nil && len(f.calls)-1 >= f.failAt {
		return nil, f.err
	}
	return []float32{float32(len(text)), 1}, nil
}

type indexFake struct {
	mu      sync.Mutex
	added   []domain.Segment
	failAt  int
	addErr  error
	matches []domain.SegmentMatch
	err     error
	lastK   int
}

func (f *indexFake) Add(_ context.Context, s domain.Segment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil && len(f.added) >= f.failAt {
		return f.addErr
	}
	f.added = append(f.added, s)
	return nil
}

func (f *indexFake) Search(_ context.Context, _ []float32, k int) ([]domain.SegmentMatch, error) {
	f.lastK = k
	if f.err != nil {
		return nil, f.err
	}
	if k <= 0 {
		return nil, domain.WrapError(domain.ErrInvalidArgument, "fake search", errors.New("k must be positive"))
	}
	if k < len(f.matches) {
		return f.matches[:k], nil
	}
	return f.matches, nil
}

type registryFake struct {
	mu       sync.Mutex
	entries  map[string]string
	putErr   error
	getErr   error
	getCalls map[string]int
	searched []string
}

func newRegistryFake() *registryFake {
	return &registryFake{entries: map[string]string{}, getCalls: map[string]int{}}
}

func (f *registryFake) Put(_ context.Context, id, title string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	f.entries[id] = title
	return nil
}

func (f *registryFake) Get(_ context.Context, id string) (*domain.RegistryEntry, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls[id]++
	if f.getErr != nil {
		return nil, false, f.getErr
	}
	title, ok := f.entries[id]
	if !ok {
		return nil, false, nil
	}
	return &domain.RegistryEntry{ID: id, Title: title}, true, nil
}

func (f *registryFake) Count(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.entries)), nil
}

func (f *registryFake) SearchByTitle(_ context.Context, pattern string) ([]domain.RegistryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searched = append(f.searched, pattern)
	return []domain.RegistryEntry{{ID: "r1", Title: pattern}}, nil
}
