package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/server"

	mcpadapter "github.com/kirillkom/docsearch/internal/adapters/mcp"
	"github.com/kirillkom/docsearch/internal/bootstrap"
	"github.com/kirillkom/docsearch/internal/config"
	"github.com/kirillkom/docsearch/internal/observability/logging"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_error", "error", err)
		os.Exit(1)
	}
	// stdout carries the protocol.
	slog.SetDefault(logging.NewTextLogger(os.Stderr, "mcp", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap_error", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	srv := mcpadapter.NewTools(app.IngestUC, app.SearchUC).Server("docsearch", version)
	if err := server.ServeStdio(srv); err != nil {
		slog.Error("mcp_server_error", "error", err)
	}
}
