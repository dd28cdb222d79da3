package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/oapi-codegen/runtime"

	"github.com/kirillkom/docsearch/internal/config"
	"github.com/kirillkom/docsearch/internal/core/domain"
	"github.com/kirillkom/docsearch/internal/core/ports"
	"github.com/kirillkom/docsearch/internal/observability/metrics"
)

const (
	serviceName      = "api"
	searchStreamPath = "/v1/search/ws"

	maxDocumentBytes = 16 << 20
	maxEmbedBytes    = 1 << 20
	backpressureWait = 250 * time.Millisecond
)

// Services are the core ports the router exposes. Publisher, Embedder and Metrics may be nil.
type Services struct {
	Ingestor  ports.DocumentIngestor
	Search    ports.DocumentSearchService
	Publisher ports.IngestPublisher
	Embedder  ports.Embedder
	Metrics   *metrics.HTTPServerMetrics
}

type Router struct {
	cfg       config.Config
	ingestor  ports.DocumentIngestor
	search    ports.DocumentSearchService
	publisher ports.IngestPublisher
	embedder  ports.Embedder
	metrics   *metrics.HTTPServerMetrics
}

func NewRouter(cfg config.Config, svc Services) *Router {
	return &Router{
		cfg:       cfg,
		ingestor:  svc.Ingestor,
		search:    svc.Search,
		publisher: svc.Publisher,
		embedder:  svc.Embedder,
		metrics:   svc.Metrics,
	}
}

var loadValidator = sync.OnceValues(newRequestValidator)

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("GET /openapi.json", rt.openAPI)
	mux.HandleFunc("POST /v1/documents", rt.ingestDocument)
	mux.HandleFunc("GET /v1/documents/count", rt.countDocuments)
	mux.HandleFunc("GET /v1/documents/search", rt.searchByTitle)
	mux.HandleFunc("GET /v1/documents/{id}", rt.getDocument)
	mux.HandleFunc("GET /v1/search/similar", rt.findSimilar)
	mux.HandleFunc("GET /v1/search/hybrid", rt.hybridSearch)
	mux.HandleFunc("POST /v1/embed", rt.embed)
	mux.Handle("GET "+searchStreamPath, rt.searchStream())
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	var h http.Handler = mux
	if rt.cfg.APIValidateRequests {
		validator, err := loadValidator()
		if err != nil {
			// the document is embedded at build time, so this is a programming error
			panic(err)
		}
		h = validator.middleware(h)
	}
	h = apiKeyMiddleware(h, rt.cfg.APIKey)
	h = backpressureMiddleware(h, rt.cfg.APIMaxInFlight, backpressureWait, rt.rejected("overloaded"))
	h = rateLimitMiddleware(h, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst, rt.rejected("rate_limited"))
	if rt.metrics != nil {
		h = rt.metrics.Middleware(serviceName, h)
	}
	h = accessLogMiddleware(h)
	return requestIDMiddleware(h)
}

func (rt *Router) rejected(reason string) func() {
	if rt.metrics == nil {
		return nil
	}
	return func() { rt.metrics.RecordRejected(serviceName, reason) }
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type ingestRequest struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

func (rt *Router) ingestDocument(w http.ResponseWriter, r *http.Request) {
	var async *bool
	if err := runtime.BindQueryParameter("form", true, false, "async", r.URL.Query(), &async); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req ingestRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxDocumentBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	if async != nil && *async {
		rt.enqueueDocument(w, r, req)
		return
	}

	result, err := rt.ingestor.Ingest(r.Context(), req.Title, req.Text)
	rt.recordIngest("sync", result, err)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (rt *Router) enqueueDocument(w http.ResponseWriter, r *http.Request, req ingestRequest) {
	if rt.publisher == nil {
		writeError(w, http.StatusServiceUnavailable, "asynchronous ingestion is not configured")
		return
	}
	err := rt.publisher.PublishIngestRequest(r.Context(), domain.IngestRequest{
		Title:      req.Title,
		Text:       req.Text,
		EnqueuedAt: time.Now().UTC(),
	})
	rt.recordIngest("async", nil, err)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued", "title": req.Title})
}

func (rt *Router) recordIngest(mode string, result *domain.IngestResult, err error) {
	if rt.metrics == nil {
		return
	}
	segments := 0
	if result != nil {
		segments = result.Segments
	}
	rt.metrics.RecordIngest(serviceName, mode, segments, err)
}

func (rt *Router) countDocuments(w http.ResponseWriter, r *http.Request) {
	n, err := rt.search.Count(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"count": n})
}

func (rt *Router) searchByTitle(w http.ResponseWriter, r *http.Request) {
	var title string
	if err := runtime.BindQueryParameter("form", true, true, "title", r.URL.Query(), &title); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	start := time.Now()
	entries, err := rt.search.SearchByTitle(r.Context(), title)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if entries == nil {
		entries = []domain.RegistryEntry{}
	}
	rt.recordSearch("title", len(entries), time.Since(start))
	writeJSON(w, http.StatusOK, entries)
}

func (rt *Router) getDocument(w http.ResponseWriter, r *http.Request) {
	entry, found, err := rt.search.GetDocument(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (rt *Router) findSimilar(w http.ResponseWriter, r *http.Request) {
	rt.semanticSearch(w, r, modeSimilar)
}

func (rt *Router) hybridSearch(w http.ResponseWriter, r *http.Request) {
	rt.semanticSearch(w, r, modeHybrid)
}

func (rt *Router) semanticSearch(w http.ResponseWriter, r *http.Request, mode string) {
	query := r.URL.Query()
	var term string
	if err := runtime.BindQueryParameter("form", true, true, "q", query, &term); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var k *int
	if err := runtime.BindQueryParameter("form", true, false, "k", query, &k); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit := 0
	if k != nil {
		limit = *k
	}

	results, err := rt.runSearch(r.Context(), mode, term, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

const (
	modeSimilar = "similar"
	modeHybrid  = "hybrid"
)

func (rt *Router) runSearch(ctx context.Context, mode, term string, k int) ([]domain.CombinedSearchResult, error) {
	start := time.Now()
	var (
		results []domain.CombinedSearchResult
		err     error
	)
	if mode == modeHybrid {
		results, err = rt.search.Hybrid(ctx, term, k)
	} else {
		results, err = rt.search.FindSimilar(ctx, term, k)
	}
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []domain.CombinedSearchResult{}
	}
	rt.recordSearch(mode, len(results), time.Since(start))
	return results, nil
}

func (rt *Router) recordSearch(mode string, n int, d time.Duration) {
	if rt.metrics != nil {
		rt.metrics.RecordSearch(serviceName, mode, n, d)
	}
}

func (rt *Router) embed(w http.ResponseWriter, r *http.Request) {
	if rt.embedder == nil {
		writeError(w, http.StatusServiceUnavailable, "embedder is not configured")
		return
	}
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxEmbedBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}
	text := string(raw)
	if strings.TrimSpace(text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	vector, err := rt.embedder.Embed(r.Context(), text)
	if err != nil {
		if !domain.IsKind(err, domain.ErrEmbeddingUnavailable) && !domain.IsKind(err, domain.ErrInvalidArgument) {
			err = domain.WrapError(domain.ErrEmbeddingUnavailable, "embed", err)
		}
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, vector)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeDomainError(w http.ResponseWriter, err error) {
	status := mapErrorToHTTPStatus(err)
	body := map[string]any{"error": err.Error()}

	var ingestErr *domain.IngestionError
	if errors.As(err, &ingestErr) {
		body["documentId"] = ingestErr.DocumentID
		body["stage"] = string(ingestErr.Stage)
		body["segmentsIndexed"] = ingestErr.SegmentsIndexed
	}
	writeJSON(w, status, body)
}
