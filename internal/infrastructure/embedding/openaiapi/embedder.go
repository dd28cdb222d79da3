package openaiapi

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/kirillkom/docsearch/internal/core/domain"
	"github.com/kirillkom/docsearch/internal/infrastructure/resilience"
)

const DefaultModel = "text-embedding-3-small"

// Embedder calls an OpenAI-compatible /embeddings endpoint.
type Embedder struct {
	client   openai.Client
	model    string
	executor *resilience.Executor
}

type Options struct {
	APIKey   string
	BaseURL  string
	Model    string
	Timeout  time.Duration
	Executor *resilience.Executor
}

func New(opts Options) *Embedder {
	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		// retries are owned by the executor
		option.WithMaxRetries(0),
	}
	if base := strings.TrimSpace(opts.BaseURL); base != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(strings.TrimRight(base, "/")+"/"))
	}
	if opts.Timeout > 0 {
		reqOpts = append(reqOpts, option.WithRequestTimeout(opts.Timeout))
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = DefaultModel
	}
	return &Embedder{
		client:   openai.NewClient(reqOpts...),
		model:    model,
		executor: opts.Executor,
	}
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vector, err := resilience.Call(ctx, e.executor, "openai.embed", func(ctx context.Context) ([]float32, error) {
		return e.embedOnce(ctx, text)
	}, classifyOpenAIError)
	if err != nil {
		return nil, domain.WrapError(domain.ErrEmbeddingUnavailable, "openai embed", err)
	}
	return vector, nil
}

func (e *Embedder) embedOnce(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings request: %w", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("openai returned no embedding for model %q", e.model)
	}

	raw := resp.Data[0].Embedding
	out := make([]float32, len(raw))
	for i, v := range raw {
		out[i] = float32(v)
	}
	return out, nil
}

func classifyOpenAIError(err error) resilience.Verdict {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == 408, apiErr.StatusCode == 429, apiErr.StatusCode >= 500:
			return resilience.Verdict{Retryable: true, RecordFailure: true}
		default:
			return resilience.Verdict{}
		}
	}
	return resilience.ClassifyTransport(err)
}
