package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/docsearch/internal/bootstrap"
	"github.com/kirillkom/docsearch/internal/config"
	"github.com/kirillkom/docsearch/internal/core/domain"
	"github.com/kirillkom/docsearch/internal/core/usecase"
	"github.com/kirillkom/docsearch/internal/observability/logging"
	"github.com/kirillkom/docsearch/internal/observability/metrics"
)

const (
	serviceName   = "worker"
	ingestTimeout = 5 * time.Minute
)

func main() {
	if err := run(); err != nil {
		slog.Error("worker_error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.SetDefault(logging.NewJSONLogger(serviceName, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("worker_metrics_listening", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker_metrics_error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	group, groupCtx := errgroup.WithContext(ctx)

	if cfg.IngestDir != "" {
		loader, source, err := app.NewDirectoryLoader("", nil)
		if err != nil {
			return fmt.Errorf("directory loader: %w", err)
		}
		group.Go(func() error {
			return runDirectory(groupCtx, loader, source.Watch, cfg.IngestWatch, workerMetrics)
		})
	}

	queue, err := app.NewQueue()
	if err != nil {
		stop()
		_ = group.Wait()
		return err
	}
	group.Go(func() error {
		slog.Info("worker_subscribed", "subject", cfg.NATSSubject)
		return queue.SubscribeIngestRequests(groupCtx, func(handlerCtx context.Context, req domain.IngestRequest) error {
			if !req.EnqueuedAt.IsZero() {
				workerMetrics.ObserveQueueLag(serviceName, time.Since(req.EnqueuedAt))
			}
			processCtx, cancel := context.WithTimeout(handlerCtx, ingestTimeout)
			defer cancel()

			workerMetrics.StartIngest()
			started := time.Now()
			_, err := app.IngestUC.Ingest(processCtx, req.Title, req.Text)
			workerMetrics.FinishIngest(serviceName, time.Since(started), err)
			return err
		})
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runDirectory(
	ctx context.Context,
	loader *usecase.LoadDirectoryUseCase,
	watch func(context.Context, func(string)) error,
	keepWatching bool,
	workerMetrics *metrics.WorkerMetrics,
) error {
	record := func(file domain.LoadedFile) {
		workerMetrics.RecordFile(serviceName, fileOutcome(file))
	}
	files, err := loader.Load(ctx, record)
	if err != nil {
		return err
	}
	slog.Info("directory_loaded", "files", len(files))

	if !keepWatching {
		return nil
	}
	return watch(ctx, func(path string) {
		fileCtx, cancel := context.WithTimeout(ctx, ingestTimeout)
		defer cancel()
		record(loader.LoadFile(fileCtx, path))
	})
}

func fileOutcome(file domain.LoadedFile) string {
	switch {
	case file.Error != "":
		return "error"
	case file.Skipped:
		return "skipped"
	default:
		return "ingested"
	}
}
