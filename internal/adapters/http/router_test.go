package httpadapter

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/docsearch/internal/config"
	"github.com/kirillkom/docsearch/internal/core/domain"
	"github.com/kirillkom/docsearch/internal/observability/metrics"
)

func serve(h http.Handler, method, target string, body string, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)
	return res
}

func decodeBody(t *testing.T, res *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.NewDecoder(bytes.NewReader(res.Body.Bytes())).Decode(out); err != nil {
		t.Fatalf("decode response %q: %v", res.Body.String(), err)
	}
}

func TestIngestDocumentReturns201(t *testing.T) {
	ingestor := &ingestorFake{}
	handler := newTestRouter(config.Config{}, Services{Ingestor: ingestor}).Handler()

	res := serve(handler, http.MethodPost, "/v1/documents", `{"title":"Cats","text":"Cats purr."}`, "application/json")
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", res.Code, res.Body.String())
	}
	var got domain.IngestResult
	decodeBody(t, res, &got)
	if got.DocumentID != "doc-1" || got.Segments != 2 {
		t.Fatalf("unexpected result: %+v", got)
	}
	if ingestor.title != "Cats" || ingestor.text != "Cats purr." {
		t.Fatalf("ingestor got %q/%q", ingestor.title, ingestor.text)
	}
	if res.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected request id header")
	}
}

func TestIngestDocumentAsyncPublishes(t *testing.T) {
	publisher := &publisherFake{}
	handler := newTestRouter(config.Config{}, Services{Publisher: publisher}).Handler()

	res := serve(handler, http.MethodPost, "/v1/documents?async=true", `{"title":"Report","text":"Q3"}`, "application/json")
	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.Code, res.Body.String())
	}
	if len(publisher.requests) != 1 || publisher.requests[0].Title != "Report" || publisher.requests[0].EnqueuedAt.IsZero() {
		t.Fatalf("unexpected published requests: %+v", publisher.requests)
	}
}

func TestIngestDocumentAsyncWithoutQueueReturns503(t *testing.T) {
	handler := newTestRouter(config.Config{}, Services{}).Handler()

	res := serve(handler, http.MethodPost, "/v1/documents?async=true", `{"title":"a","text":"b"}`, "application/json")
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}
}

func TestIngestDocumentAsyncTemporaryPublishFailureReturns503(t *testing.T) {
	publisher := &publisherFake{err: domain.WrapError(domain.ErrTemporary, "nats publish", errors.New("no servers"))}
	handler := newTestRouter(config.Config{}, Services{Publisher: publisher}).Handler()

	res := serve(handler, http.MethodPost, "/v1/documents?async=true", `{"title":"a","text":"b"}`, "application/json")
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}
}

func TestIngestDocumentRejectsInvalidJSON(t *testing.T) {
	handler := newTestRouter(config.Config{}, Services{}).Handler()

	res := serve(handler, http.MethodPost, "/v1/documents", `{"title":`, "application/json")
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	res = serve(handler, http.MethodPost, "/v1/documents?async=maybe", `{}`, "application/json")
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed async flag, got %d", res.Code)
	}
}

func TestIngestFailureReportsStageAndCauseStatus(t *testing.T) {
	ingestor := &ingestorFake{err: &domain.IngestionError{
		DocumentID:      "doc-9",
		Stage:           domain.StageEmbed,
		SegmentIndex:    1,
		SegmentsIndexed: 1,
		Err:             domain.WrapError(domain.ErrEmbeddingUnavailable, "embed segment", errors.New("connection refused")),
	}}
	handler := newTestRouter(config.Config{}, Services{Ingestor: ingestor}).Handler()

	res := serve(handler, http.MethodPost, "/v1/documents", `{"title":"a","text":"b"}`, "application/json")
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}
	var body map[string]any
	decodeBody(t, res, &body)
	if body["stage"] != "embed" || body["documentId"] != "doc-9" || body["segmentsIndexed"] != float64(1) {
		t.Fatalf("unexpected error body: %v", body)
	}
}

func TestCountAndGetDocument(t *testing.T) {
	search := &searchFake{count: 3, entry: &domain.RegistryEntry{ID: "d1", Title: "Cats"}}
	handler := newTestRouter(config.Config{}, Services{Search: search}).Handler()

	res := serve(handler, http.MethodGet, "/v1/documents/count", "", "")
	var count map[string]int64
	decodeBody(t, res, &count)
	if res.Code != http.StatusOK || count["count"] != 3 {
		t.Fatalf("unexpected count response %d %v", res.Code, count)
	}

	res = serve(handler, http.MethodGet, "/v1/documents/d1", "", "")
	var entry domain.RegistryEntry
	decodeBody(t, res, &entry)
	if res.Code != http.StatusOK || entry.Title != "Cats" {
		t.Fatalf("unexpected entry response %d %+v", res.Code, entry)
	}

	res = serve(handler, http.MethodGet, "/v1/documents/missing", "", "")
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestSearchByTitleReturnsEmptyArray(t *testing.T) {
	search := &searchFake{}
	handler := newTestRouter(config.Config{}, Services{Search: search}).Handler()

	res := serve(handler, http.MethodGet, "/v1/documents/search?title=zzz", "", "")
	if res.Code != http.StatusOK || strings.TrimSpace(res.Body.String()) != "[]" {
		t.Fatalf("expected empty array, got %d %q", res.Code, res.Body.String())
	}
	if search.lastQ != "zzz" {
		t.Fatalf("expected term zzz, got %q", search.lastQ)
	}

	res = serve(handler, http.MethodGet, "/v1/documents/search", "", "")
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without title, got %d", res.Code)
	}
}

func TestSimilarAndHybridPassTermAndK(t *testing.T) {
	search := &searchFake{results: []domain.CombinedSearchResult{
		{Score: 0.9, Text: "Cats purr.", DocumentID: "d1", Title: "Cats", SegmentIndex: 0},
	}}
	handler := newTestRouter(config.Config{}, Services{Search: search}).Handler()

	res := serve(handler, http.MethodGet, "/v1/search/similar?q=purring+cats&k=3", "", "")
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	var results []domain.CombinedSearchResult
	decodeBody(t, res, &results)
	if len(results) != 1 || results[0].Title != "Cats" {
		t.Fatalf("unexpected results: %+v", results)
	}
	if search.lastQ != "purring cats" || search.lastK != 3 || search.hybrid {
		t.Fatalf("unexpected call: %q k=%d hybrid=%v", search.lastQ, search.lastK, search.hybrid)
	}
	if !strings.Contains(res.Body.String(), `"documentId":"d1"`) || !strings.Contains(res.Body.String(), `"segmentIndex":0`) {
		t.Fatalf("unexpected wire format: %s", res.Body.String())
	}

	res = serve(handler, http.MethodGet, "/v1/search/hybrid?q=cats", "", "")
	if res.Code != http.StatusOK || !search.hybrid || search.lastK != 0 {
		t.Fatalf("expected hybrid call with default k, got %d hybrid=%v k=%d", res.Code, search.hybrid, search.lastK)
	}
}

func TestSimilarRejectsBadParameters(t *testing.T) {
	handler := newTestRouter(config.Config{}, Services{}).Handler()

	for _, target := range []string{"/v1/search/similar", "/v1/search/similar?q=x&k=many"} {
		res := serve(handler, http.MethodGet, target, "", "")
		if res.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", target, res.Code)
		}
	}
}

func TestSimilarMapsInvalidArgumentTo400(t *testing.T) {
	search := &searchFake{err: domain.WrapError(domain.ErrInvalidArgument, "search", errors.New("k must be positive"))}
	handler := newTestRouter(config.Config{}, Services{Search: search}).Handler()

	res := serve(handler, http.MethodGet, "/v1/search/similar?q=x&k=-1", "", "")
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestEmbedEndpoint(t *testing.T) {
	handler := newTestRouter(config.Config{}, Services{Embedder: embedderFake{vector: []float32{0.5, -0.5}}}).Handler()

	res := serve(handler, http.MethodPost, "/v1/embed", "cats", "text/plain")
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var vector []float32
	decodeBody(t, res, &vector)
	if len(vector) != 2 || vector[0] != 0.5 {
		t.Fatalf("unexpected vector: %v", vector)
	}

	res = serve(handler, http.MethodPost, "/v1/embed", "   ", "text/plain")
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank text, got %d", res.Code)
	}
}

func TestEmbedEndpointMapsBackendFailureTo503(t *testing.T) {
	handler := newTestRouter(config.Config{}, Services{Embedder: embedderFake{err: errors.New("model not loaded")}}).Handler()

	res := serve(handler, http.MethodPost, "/v1/embed", "cats", "text/plain")
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}
}

func TestRequestValidationRejectsSchemaViolations(t *testing.T) {
	handler := newTestRouter(config.Config{APIValidateRequests: true}, Services{}).Handler()

	res := serve(handler, http.MethodPost, "/v1/documents", `{"title":5,"text":"x"}`, "application/json")
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for wrong title type, got %d", res.Code)
	}
	res = serve(handler, http.MethodPost, "/v1/documents", `{"title":"x"}`, "application/json")
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing text, got %d", res.Code)
	}
	res = serve(handler, http.MethodPost, "/v1/documents", `{"title":"x","text":"y"}`, "application/json")
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201 for valid body, got %d: %s", res.Code, res.Body.String())
	}
}

func TestOpenAPIDocumentIsServedAndValid(t *testing.T) {
	if _, err := newRequestValidator(); err != nil {
		t.Fatalf("embedded document must load: %v", err)
	}
	handler := newTestRouter(config.Config{}, Services{}).Handler()
	res := serve(handler, http.MethodGet, "/openapi.json", "", "")
	if res.Code != http.StatusOK || !strings.Contains(res.Body.String(), `"FindSimilar"`) {
		t.Fatalf("unexpected openapi response %d", res.Code)
	}
}

func TestMetricsEndpointExposesRequestCounters(t *testing.T) {
	m := metrics.NewHTTPServerMetrics(serviceName)
	handler := newTestRouter(config.Config{}, Services{Metrics: m}).Handler()

	serve(handler, http.MethodGet, "/v1/search/similar?q=cats", "", "")
	res := serve(handler, http.MethodGet, "/metrics", "", "")
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	body := res.Body.String()
	if !strings.Contains(body, "docsearch_http_requests_total") || !strings.Contains(body, `docsearch_search_requests_total{mode="similar",service="api"} 1`) {
		t.Fatalf("missing counters in:\n%s", body)
	}
}
