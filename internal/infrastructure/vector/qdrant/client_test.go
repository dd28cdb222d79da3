package qdrant

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/kirillkom/docsearch/internal/core/domain"
)

func TestAddUpsertsWithWaitAndStablePointID(t *testing.T) {
	var ids []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/collections/docs/points" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("wait") != "true" {
			t.Errorf("expected wait=true, got %q", r.URL.RawQuery)
		}
		var body struct {
			Points []struct {
				ID      string         `json:"id"`
				Payload map[string]any `json:"payload"`
			} `json:"points"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode upsert: %v", err)
		}
		ids = append(ids, body.Points[0].ID)
		if body.Points[0].Payload["doc_id"] != "doc-1" {
			t.Errorf("unexpected payload %v", body.Points[0].Payload)
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	client := New(server.URL, "docs", Options{})
	segment := domain.Segment{DocumentID: "doc-1", Text: "a", SequenceIndex: 2, Vector: []float32{0.1, 0.2}}
	for i := 0; i < 2; i++ {
		if err := client.Add(context.Background(), segment); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}
	if len(ids) != 2 || ids[0] != ids[1] || ids[0] != PointID("doc-1", 2) {
		t.Fatalf("expected the same point id on retry, got %v", ids)
	}
}

func TestSearchDecodesPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/collections/docs/points/search" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"result":[
			{"score":0.9,"payload":{"doc_id":"d1","text":"first","sequence_index":3}},
			{"score":0.4,"payload":{"doc_id":"d2","text":"second","sequence_index":0}}
		]}`))
	}))
	defer server.Close()

	got, err := New(server.URL, "docs", Options{}).Search(context.Background(), []float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 2 || got[0].Segment.DocumentID != "d1" || got[0].Segment.SequenceIndex != 3 || got[1].Score != 0.4 {
		t.Fatalf("unexpected matches %+v", got)
	}
}

func TestSearchRejectsNonPositiveK(t *testing.T) {
	_, err := New("http://unused", "docs", Options{}).Search(context.Background(), []float32{1}, 0)
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestSearchFailureIsIndexUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "collection not found", http.StatusNotFound)
	}))
	defer server.Close()

	_, err := New(server.URL, "docs", Options{}).Search(context.Background(), []float32{1}, 3)
	if !errors.Is(err, domain.ErrIndexUnavailable) {
		t.Fatalf("expected ErrIndexUnavailable, got %v", err)
	}
	if !strings.Contains(err.Error(), "collection not found") {
		t.Fatalf("expected body in error, got %v", err)
	}
}

func TestEnsureCollectionOncePerDimension(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut && r.URL.Path == "/collections/docs" {
			if atomic.AddInt32(&calls, 1) > 1 {
				w.WriteHeader(http.StatusConflict)
				return
			}
			w.WriteHeader(http.StatusOK)
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := New(server.URL, "docs", Options{})
	for i := 0; i < 2; i++ {
		if err := client.EnsureCollection(context.Background(), 4); err != nil {
			t.Fatalf("EnsureCollection() error = %v", err)
		}
	}
	if err := client.EnsureCollection(context.Background(), 8); err != nil {
		t.Fatalf("EnsureCollection() with existing collection error = %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("expected 2 ensure calls, got %d", got)
	}
}
