package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/net/websocket"
)

type streamQuery struct {
	Q    string `json:"q"`
	K    int    `json:"k"`
	Mode string `json:"mode"`
}

// searchStream answers one search per text frame. A frame is either a bare query term
// or a JSON object {"q","k","mode"} with mode "similar" (default) or "hybrid".
func (rt *Router) searchStream() http.Handler {
	return websocket.Server{
		Handshake: rt.checkStreamOrigin,
		Handler:   rt.serveStream,
	}
}

// checkStreamOrigin admits clients that send no Origin (CLI tools, services). Browser
// origins must be listed in API_WS_ALLOWED_ORIGINS unless the list is empty.
func (rt *Router) checkStreamOrigin(cfg *websocket.Config, r *http.Request) error {
	if r.Header.Get("Origin") == "" {
		return nil
	}
	origin, err := websocket.Origin(cfg, r)
	if err != nil {
		return fmt.Errorf("bad origin: %w", err)
	}
	cfg.Origin = origin
	if len(rt.cfg.APIWSAllowedOrigins) == 0 {
		return nil
	}
	got := strings.TrimSuffix(strings.ToLower(origin.String()), "/")
	for _, allowed := range rt.cfg.APIWSAllowedOrigins {
		if strings.TrimSuffix(strings.ToLower(allowed), "/") == got {
			return nil
		}
	}
	slog.Warn("search_stream_origin_rejected", "request_id", requestIDFromContext(r.Context()), "origin", got)
	return fmt.Errorf("origin %q not allowed", got)
}

func (rt *Router) serveStream(ws *websocket.Conn) {
	defer ws.Close()
	ctx := ws.Request().Context()
	requestID := requestIDFromContext(ctx)

	for {
		var frame string
		if err := websocket.Message.Receive(ws, &frame); err != nil {
			if !errors.Is(err, io.EOF) {
				slog.Debug("search_stream_closed", "request_id", requestID, "error", err)
			}
			return
		}

		query := parseStreamQuery(frame)
		results, err := rt.runSearch(ctx, query.Mode, query.Q, query.K)
		if err != nil {
			err = websocket.JSON.Send(ws, map[string]any{
				"error":  err.Error(),
				"status": mapErrorToHTTPStatus(err),
			})
		} else {
			err = websocket.JSON.Send(ws, results)
		}
		if err != nil {
			slog.Debug("search_stream_send_failed", "request_id", requestID, "error", err)
			return
		}
	}
}

func parseStreamQuery(frame string) streamQuery {
	trimmed := strings.TrimSpace(frame)
	query := streamQuery{Q: frame, Mode: modeSimilar}
	if strings.HasPrefix(trimmed, "{") {
		var parsed streamQuery
		if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil {
			query = parsed
		}
	}
	if query.Mode != modeHybrid {
		query.Mode = modeSimilar
	}
	return query
}
