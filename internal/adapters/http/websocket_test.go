package httpadapter

import (
	"bufio"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/net/websocket"

	"github.com/kirillkom/docsearch/internal/config"
	"github.com/kirillkom/docsearch/internal/core/domain"
)

func TestSearchStreamAnswersEachFrame(t *testing.T) {
	search := &searchFake{results: []domain.CombinedSearchResult{
		{Score: 0.8, Text: "Revenue grew 12% in Q3.", DocumentID: "d2", Title: "Report", SegmentIndex: 0},
	}}
	srv := httptest.NewServer(newTestRouter(config.Config{}, Services{Search: search}).Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + searchStreamPath
	ws, err := websocket.Dial(url, "", srv.URL)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()
	if err := ws.SetDeadline(time.Now().Add(5 * time.Second)); err != nil {
		t.Fatalf("set deadline: %v", err)
	}

	if err := websocket.Message.Send(ws, "quarterly revenue"); err != nil {
		t.Fatalf("send: %v", err)
	}
	var results []domain.CombinedSearchResult
	if err := websocket.JSON.Receive(ws, &results); err != nil {
		t.Fatalf("receive: %v", err)
	}
	if len(results) != 1 || results[0].Title != "Report" {
		t.Fatalf("unexpected results: %+v", results)
	}

	if err := websocket.Message.Send(ws, `{"q":"growth","k":4,"mode":"hybrid"}`); err != nil {
		t.Fatalf("send: %v", err)
	}
	results = nil
	if err := websocket.JSON.Receive(ws, &results); err != nil {
		t.Fatalf("receive: %v", err)
	}

	search.mu.Lock()
	defer search.mu.Unlock()
	if !search.hybrid || search.lastQ != "growth" || search.lastK != 4 {
		t.Fatalf("unexpected hybrid call: q=%q k=%d hybrid=%v", search.lastQ, search.lastK, search.hybrid)
	}
}

// upgrade sends a bare websocket handshake and returns the response status.
func upgrade(t *testing.T, srv *httptest.Server, origin string) int {
	t.Helper()
	conn, err := net.Dial("tcp", srv.Listener.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if err := conn.SetDeadline(time.Now().Add(5 * time.Second)); err != nil {
		t.Fatalf("set deadline: %v", err)
	}

	req, err := http.NewRequest(http.MethodGet, srv.URL+searchStreamPath, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Upgrade", "websocket")
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==")
	req.Header.Set("Sec-WebSocket-Version", "13")
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	if err := req.Write(conn); err != nil {
		t.Fatalf("write handshake: %v", err)
	}
	resp, err := http.ReadResponse(bufio.NewReader(conn), req)
	if err != nil {
		t.Fatalf("read handshake: %v", err)
	}
	resp.Body.Close()
	return resp.StatusCode
}

func TestSearchStreamOriginPolicy(t *testing.T) {
	open := httptest.NewServer(newTestRouter(config.Config{}, Services{}).Handler())
	defer open.Close()

	if got := upgrade(t, open, ""); got != http.StatusSwitchingProtocols {
		t.Fatalf("client without Origin: expected 101, got %d", got)
	}
	if got := upgrade(t, open, "http://any.example"); got != http.StatusSwitchingProtocols {
		t.Fatalf("any origin with empty allow list: expected 101, got %d", got)
	}

	cfg := config.Config{APIWSAllowedOrigins: []string{"https://app.example/"}}
	restricted := httptest.NewServer(newTestRouter(cfg, Services{}).Handler())
	defer restricted.Close()

	if got := upgrade(t, restricted, "https://app.example"); got != http.StatusSwitchingProtocols {
		t.Fatalf("listed origin: expected 101, got %d", got)
	}
	if got := upgrade(t, restricted, "https://evil.example"); got != http.StatusForbidden {
		t.Fatalf("unlisted origin: expected 403, got %d", got)
	}
	if got := upgrade(t, restricted, ""); got != http.StatusSwitchingProtocols {
		t.Fatalf("client without Origin: expected 101, got %d", got)
	}
}

func TestParseStreamQuery(t *testing.T) {
	if q := parseStreamQuery("cats"); q.Q != "cats" || q.Mode != modeSimilar || q.K != 0 {
		t.Fatalf("unexpected plain query: %+v", q)
	}
	if q := parseStreamQuery(`{"q":"x","mode":"bogus"}`); q.Mode != modeSimilar {
		t.Fatalf("unknown mode must fall back to similar: %+v", q)
	}
	if q := parseStreamQuery("{not json"); q.Q != "{not json" {
		t.Fatalf("broken json must be treated as a term: %+v", q)
	}
}
