package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/kirillkom/docsearch/internal/adapters/http"
	"github.com/kirillkom/docsearch/internal/bootstrap"
	"github.com/kirillkom/docsearch/internal/config"
	"github.com/kirillkom/docsearch/internal/observability/logging"
	"github.com/kirillkom/docsearch/internal/observability/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_error", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logging.NewJSONLogger("api", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap_error", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	svc := httpadapter.Services{
		Ingestor: app.IngestUC,
		Search:   app.SearchUC,
		Embedder: app.Embedder,
		Metrics:  metrics.NewHTTPServerMetrics("api"),
	}
	// Without NATS the API still serves synchronous ingestion; async requests get 503.
	if queue, err := app.NewQueue(); err != nil {
		slog.Warn("queue_unavailable", "error", err)
	} else {
		svc.Publisher = queue
	}

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      httpadapter.NewRouter(cfg, svc).Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("api_listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("api_server_error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("api_shutdown_error", "error", err)
	}
}
