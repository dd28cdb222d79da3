package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/docsearch/internal/core/domain"
	"github.com/kirillkom/docsearch/internal/infrastructure/resilience"
)

// Embedder calls the Ollama /api/embed endpoint for one text at a time.
type Embedder struct {
	baseURL    string
	model      string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Options struct {
	Timeout  time.Duration
	Executor *resilience.Executor
}

func New(baseURL, model string, opts Options) *Embedder {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Embedder{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		executor:   opts.Executor,
	}
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vector, err := resilience.Call(ctx, e.executor, "ollama.embed", func(ctx context.Context) ([]float32, error) {
		return e.embedOnce(ctx, text)
	}, resilience.ClassifyTransport)
	if err != nil {
		return nil, domain.WrapError(domain.ErrEmbeddingUnavailable, "ollama embed", err)
	}
	return vector, nil
}

func (e *Embedder) embedOnce(ctx context.Context, text string) ([]float32, error) {
	request := map[string]any{
		"model": e.model,
		"input": []string{text},
	}
	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := e.postJSON(ctx, "/api/embed", request, &response, "embed"); err != nil {
		return nil, err
	}
	if len(response.Embeddings) == 0 || len(response.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("ollama returned no embedding for model %q", e.model)
	}
	return response.Embeddings[0], nil
}
