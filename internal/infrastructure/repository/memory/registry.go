package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/kirillkom/docsearch/internal/core/domain"
	"github.com/kirillkom/docsearch/internal/core/ports"
)

var _ ports.DocumentRegistry = (*Registry)(nil)

// Registry keeps entries in a map and remembers first-put order for listings.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]domain.RegistryEntry
	order   []string
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]domain.RegistryEntry)}
}

func (r *Registry) Put(_ context.Context, id, title string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[id]; !exists {
		r.order = append(r.order, id)
	}
	r.entries[id] = domain.RegistryEntry{ID: id, Title: title}
	return nil
}

func (r *Registry) Get(_ context.Context, id string) (*domain.RegistryEntry, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[id]
	if !ok {
		return nil, false, nil
	}
	return &entry, true, nil
}

func (r *Registry) Count(context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.entries)), nil
}

// SearchByTitle matches a case-insensitive substring of the title.
func (r *Registry) SearchByTitle(_ context.Context, pattern string) ([]domain.RegistryEntry, error) {
	needle := strings.ToLower(strings.TrimSpace(pattern))
	if needle == "" {
		return []domain.RegistryEntry{}, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.RegistryEntry, 0)
	for _, id := range r.order {
		entry := r.entries[id]
		if strings.Contains(strings.ToLower(entry.Title), needle) {
			out = append(out, entry)
		}
	}
	return out, nil
}
