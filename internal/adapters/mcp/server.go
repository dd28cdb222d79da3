package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/docsearch/internal/core/domain"
	"github.com/kirillkom/docsearch/internal/core/ports"
)

// Tools exposes ingestion and retrieval as MCP tools for an external assistant.
type Tools struct {
	ingestor ports.DocumentIngestor
	search   ports.DocumentSearchService
}

func NewTools(ingestor ports.DocumentIngestor, search ports.DocumentSearchService) *Tools {
	return &Tools{ingestor: ingestor, search: search}
}

func (t *Tools) Server(name, version string) *server.MCPServer {
	s := server.NewMCPServer(name, version, server.WithToolCapabilities(false))

	s.AddTool(mcp.NewTool("ingest_document",
		mcp.WithDescription("Split, embed and index a document so it becomes searchable. Returns the new document id."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Document title")),
		mcp.WithString("text", mcp.Required(), mcp.Description("Full document text")),
	), t.ingestDocument)

	s.AddTool(mcp.NewTool("count_documents",
		mcp.WithDescription("Number of documents in the registry."),
	), t.countDocuments)

	s.AddTool(mcp.NewTool("search_by_title",
		mcp.WithDescription("Documents whose title contains the term, case-insensitively."),
		mcp.WithString("term", mcp.Required(), mcp.Description("Title substring")),
	), t.searchByTitle)

	s.AddTool(mcp.NewTool("find_similar",
		mcp.WithDescription("Document segments most similar in meaning to the query, with their document titles."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Natural-language query")),
		mcp.WithNumber("k", mcp.Description("Maximum number of segments, default 10")),
		mcp.WithBoolean("hybrid", mcp.Description("Re-rank semantic candidates with keyword overlap")),
	), t.findSimilar)

	return s
}

func (t *Tools) ingestDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := t.ingestor.Ingest(ctx, title, text)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(result)
}

func (t *Tools) countDocuments(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	n, err := t.search.Count(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%d", n)), nil
}

func (t *Tools) searchByTitle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	term, err := req.RequireString("term")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	entries, err := t.search.SearchByTitle(ctx, term)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if entries == nil {
		entries = []domain.RegistryEntry{}
	}
	return jsonResult(entries)
}

func (t *Tools) findSimilar(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	k := req.GetInt("k", 0)

	var results []domain.CombinedSearchResult
	if req.GetBool("hybrid", false) {
		results, err = t.search.Hybrid(ctx, query, k)
	} else {
		results, err = t.search.FindSimilar(ctx, query, k)
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if results == nil {
		results = []domain.CombinedSearchResult{}
	}
	return jsonResult(results)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(raw)), nil
}
