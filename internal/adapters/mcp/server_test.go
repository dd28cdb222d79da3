package mcpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kirillkom/docsearch/internal/core/domain"
)

type ingestorFake struct {
	title, text string
	err         error
}

func (f *ingestorFake) Ingest(_ context.Context, title, text string) (*domain.IngestResult, error) {
	f.title, f.text = title, text
	if f.err != nil {
		return nil, f.err
	}
	return &domain.IngestResult{DocumentID: "doc-1", Title: title, Segments: 1}, nil
}

type searchFake struct {
	lastK  int
	hybrid bool
	err    error
}

func (f *searchFake) Count(context.Context) (int64, error) { return 2, f.err }

func (f *searchFake) GetDocument(context.Context, string) (*domain.RegistryEntry, bool, error) {
	return nil, false, nil
}

func (f *searchFake) SearchByTitle(context.Context, string) ([]domain.RegistryEntry, error) {
	return []domain.RegistryEntry{{ID: "d1", Title: "Quarterly Report"}}, f.err
}

func (f *searchFake) FindSimilar(_ context.Context, _ string, k int) ([]domain.CombinedSearchResult, error) {
	f.lastK, f.hybrid = k, false
	return []domain.CombinedSearchResult{{Score: 0.7, Text: "Cats purr.", DocumentID: "d1", Title: "Cats"}}, f.err
}

func (f *searchFake) Hybrid(_ context.Context, _ string, k int) ([]domain.CombinedSearchResult, error) {
	f.lastK, f.hybrid = k, true
	return nil, f.err
}

func call(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if res == nil || len(res.Content) == 0 {
		t.Fatalf("empty tool result")
	}
	switch c := res.Content[0].(type) {
	case mcp.TextContent:
		return c.Text
	case *mcp.TextContent:
		return c.Text
	default:
		t.Fatalf("unexpected content type %T", c)
		return ""
	}
}

func TestIngestDocumentTool(t *testing.T) {
	ingestor := &ingestorFake{}
	tools := NewTools(ingestor, &searchFake{})

	res, err := tools.ingestDocument(context.Background(), call("ingest_document", map[string]any{
		"title": "Cats", "text": "Cats purr.",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(t, res))
	}
	var got domain.IngestResult
	if err := json.Unmarshal([]byte(resultText(t, res)), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.DocumentID != "doc-1" || ingestor.title != "Cats" {
		t.Fatalf("unexpected result %+v", got)
	}
}

func TestIngestDocumentToolRequiresText(t *testing.T) {
	tools := NewTools(&ingestorFake{}, &searchFake{})
	res, err := tools.ingestDocument(context.Background(), call("ingest_document", map[string]any{"title": "Cats"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.IsError {
		t.Fatalf("expected tool error")
	}
}

func TestIngestFailureIsToolError(t *testing.T) {
	tools := NewTools(&ingestorFake{err: &domain.IngestionError{Stage: domain.StageIndex, Err: domain.ErrIndexUnavailable}}, &searchFake{})
	res, err := tools.ingestDocument(context.Background(), call("ingest_document", map[string]any{"title": "a", "text": "b"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.IsError || !strings.Contains(resultText(t, res), "ingestion failed") {
		t.Fatalf("expected ingestion failure, got %q", resultText(t, res))
	}
}

func TestFindSimilarTool(t *testing.T) {
	search := &searchFake{}
	tools := NewTools(&ingestorFake{}, search)

	res, err := tools.findSimilar(context.Background(), call("find_similar", map[string]any{"query": "purring", "k": 3}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got []domain.CombinedSearchResult
	if err := json.Unmarshal([]byte(resultText(t, res)), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].Title != "Cats" || search.lastK != 3 || search.hybrid {
		t.Fatalf("unexpected call: %+v k=%d hybrid=%v", got, search.lastK, search.hybrid)
	}

	res, err = tools.findSimilar(context.Background(), call("find_similar", map[string]any{"query": "x", "hybrid": true}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resultText(t, res) != "[]" || !search.hybrid || search.lastK != 0 {
		t.Fatalf("expected empty hybrid result with default k, got %q k=%d", resultText(t, res), search.lastK)
	}
}

func TestCountAndTitleTools(t *testing.T) {
	tools := NewTools(&ingestorFake{}, &searchFake{})

	res, _ := tools.countDocuments(context.Background(), call("count_documents", nil))
	if resultText(t, res) != "2" {
		t.Fatalf("unexpected count %q", resultText(t, res))
	}

	res, _ = tools.searchByTitle(context.Background(), call("search_by_title", map[string]any{"term": "report"}))
	if !strings.Contains(resultText(t, res), "Quarterly Report") {
		t.Fatalf("unexpected title result %q", resultText(t, res))
	}

	failing := NewTools(&ingestorFake{}, &searchFake{err: errors.New("registry down")})
	res, _ = failing.countDocuments(context.Background(), call("count_documents", nil))
	if !res.IsError {
		t.Fatalf("expected tool error")
	}
}

func TestServerListsTools(t *testing.T) {
	s := NewTools(&ingestorFake{}, &searchFake{}).Server("docsearch", "test")
	resp := s.HandleMessage(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	raw, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, name := range []string{"ingest_document", "count_documents", "search_by_title", "find_similar"} {
		if !strings.Contains(string(raw), `"`+name+`"`) {
			t.Fatalf("tool %s missing from %s", name, raw)
		}
	}
}
