package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/docsearch/internal/core/domain"
	"github.com/kirillkom/docsearch/internal/core/ports"
	"github.com/kirillkom/docsearch/internal/infrastructure/resilience"
)

var _ ports.VectorIndex = (*Client)(nil)

// pointNamespace derives stable point ids so a retried upsert overwrites instead of duplicating.
var pointNamespace = uuid.MustParse("6f1c3b0e-5d1a-4f57-9a0e-2b8f4c7d9e10")

type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client
	executor   *resilience.Executor

	ensureMu   sync.Mutex
	ensuredDim int
}

type Options struct {
	Timeout  time.Duration
	Executor *resilience.Executor
}

func New(baseURL, collection string, opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: timeout},
		executor:   opts.Executor,
	}
}

// Add upserts one segment with wait=true, so it is searchable once Add returns.
func (c *Client) Add(ctx context.Context, segment domain.Segment) error {
	if len(segment.Vector) == 0 {
		return domain.WrapError(domain.ErrInvalidArgument, "qdrant add", fmt.Errorf("segment %s/%d has no vector", segment.DocumentID, segment.SequenceIndex))
	}

	body, err := json.Marshal(map[string]any{
		"points": []map[string]any{
			{
				"id":     PointID(segment.DocumentID, segment.SequenceIndex),
				"vector": segment.Vector,
				"payload": map[string]any{
					"doc_id":         segment.DocumentID,
					"text":           segment.Text,
					"sequence_index": segment.SequenceIndex,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("marshal upsert body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points?wait=true", c.baseURL, c.collection)
	err = c.executor.Do(ctx, "qdrant.upsert", func(ctx context.Context) error {
		return c.send(ctx, http.MethodPut, url, body, "upsert", nil)
	}, resilience.ClassifyTransport)
	if err != nil {
		return domain.WrapError(domain.ErrIndexUnavailable, "qdrant add", err)
	}
	return nil
}

// Search returns hits in the order qdrant ranks them.
func (c *Client) Search(ctx context.Context, queryVector []float32, k int) ([]domain.SegmentMatch, error) {
	if k <= 0 {
		return nil, domain.WrapError(domain.ErrInvalidArgument, "qdrant search", fmt.Errorf("k must be positive, got %d", k))
	}

	body, err := json.Marshal(map[string]any{
		"vector":       queryVector,
		"limit":        k,
		"with_payload": true,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal search body: %w", err)
	}

	var searchResp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, c.collection)
	err = c.executor.Do(ctx, "qdrant.search", func(ctx context.Context) error {
		return c.send(ctx, http.MethodPost, url, body, "search", &searchResp)
	}, resilience.ClassifyTransport)
	if err != nil {
		return nil, domain.WrapError(domain.ErrIndexUnavailable, "qdrant search", err)
	}

	out := make([]domain.SegmentMatch, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		out = append(out, domain.SegmentMatch{
			Segment: domain.Segment{
				DocumentID:    getStringPayload(r.Payload, "doc_id"),
				Text:          getStringPayload(r.Payload, "text"),
				SequenceIndex: getIntPayload(r.Payload, "sequence_index"),
			},
			Score: r.Score,
		})
	}
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

// EnsureCollection creates the collection with cosine distance if it is missing.
func (c *Client) EnsureCollection(ctx context.Context, dim int) error {
	if dim <= 0 {
		return domain.WrapError(domain.ErrInvalidConfiguration, "qdrant ensure collection", fmt.Errorf("vector size must be positive, got %d", dim))
	}
	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	if c.ensuredDim == dim {
		return nil
	}

	body, err := json.Marshal(map[string]any{
		"vectors": map[string]any{
			"size":     dim,
			"distance": "Cosine",
		},
	})
	if err != nil {
		return fmt.Errorf("marshal create collection body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s", c.baseURL, c.collection)
	err = c.executor.Do(ctx, "qdrant.ensure_collection", func(ctx context.Context) error {
		err := c.send(ctx, http.MethodPut, url, body, "ensure collection", nil)
		// 409 when the collection already exists
		var statusErr *resilience.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusConflict {
			return nil
		}
		return err
	}, resilience.ClassifyTransport)
	if err != nil {
		return domain.WrapError(domain.ErrIndexUnavailable, "qdrant ensure collection", err)
	}
	c.ensuredDim = dim
	return nil
}

func (c *Client) send(ctx context.Context, method, url string, body []byte, operation string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return resilience.NewStatusError("qdrant", operation, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

func PointID(documentID string, sequenceIndex int) string {
	return uuid.NewSHA1(pointNamespace, []byte(fmt.Sprintf("%s:%d", documentID, sequenceIndex))).String()
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func getIntPayload(payload map[string]any, key string) int {
	switch v := payload[key].(type) {
	case float64:
		return int(v)
	case json.Number:
		n, _ := v.Int64()
		return int(n)
	default:
		return 0
	}
}
