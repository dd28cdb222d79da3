package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kirillkom/docsearch/internal/config"
	"github.com/kirillkom/docsearch/internal/core/domain"
	"github.com/kirillkom/docsearch/internal/core/ports"
	"github.com/kirillkom/docsearch/internal/core/usecase"
	"github.com/kirillkom/docsearch/internal/infrastructure/chunking"
	"github.com/kirillkom/docsearch/internal/infrastructure/embedding/hashing"
	"github.com/kirillkom/docsearch/internal/infrastructure/embedding/ollama"
	"github.com/kirillkom/docsearch/internal/infrastructure/embedding/openaiapi"
	"github.com/kirillkom/docsearch/internal/infrastructure/extractor"
	"github.com/kirillkom/docsearch/internal/infrastructure/queue/nats"
	memregistry "github.com/kirillkom/docsearch/internal/infrastructure/repository/memory"
	"github.com/kirillkom/docsearch/internal/infrastructure/repository/neo4j"
	"github.com/kirillkom/docsearch/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/docsearch/internal/infrastructure/repository/sqlite"
	"github.com/kirillkom/docsearch/internal/infrastructure/resilience"
	"github.com/kirillkom/docsearch/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/docsearch/internal/infrastructure/vector/bolt"
	memindex "github.com/kirillkom/docsearch/internal/infrastructure/vector/memory"
	"github.com/kirillkom/docsearch/internal/infrastructure/vector/qdrant"
)

// probeText is embedded once at startup to learn the vector dimension of remote embedders.
const probeText = "dimension probe"

type App struct {
	Config config.Config

	Executor *resilience.Executor
	Embedder ports.Embedder
	Index    ports.VectorIndex
	Registry ports.DocumentRegistry

	IngestUC *usecase.IngestUseCase
	SearchUC *usecase.SearchUseCase

	closers []func()
}

// New wires the configured backends and provisions their schema before returning.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	app := &App{
		Config:   cfg,
		Executor: resilience.NewExecutor(resilienceConfig(cfg)),
	}
	ok := false
	defer func() {
		if !ok {
			app.Close()
		}
	}()

	chunker, err := chunking.NewSplitter(cfg.ChunkMaxLength, cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}

	if app.Embedder, err = newEmbedder(cfg, app.Executor); err != nil {
		return nil, fmt.Errorf("init embedder: %w", err)
	}
	if app.Registry, err = app.openRegistry(ctx); err != nil {
		return nil, fmt.Errorf("init document registry: %w", err)
	}
	if app.Index, err = app.openIndex(ctx); err != nil {
		return nil, fmt.Errorf("init vector index: %w", err)
	}

	app.IngestUC = usecase.NewIngestUseCase(chunker, app.Embedder, app.Index, app.Registry)
	app.SearchUC = usecase.NewSearchUseCase(app.Embedder, app.Index, app.Registry, usecase.SearchOptions{
		DefaultK:         cfg.SearchDefaultK,
		HybridCandidates: cfg.HybridCandidates,
		RRFK:             cfg.HybridRRFK,
		LexicalWeight:    cfg.HybridLexicalWeight,
		SemanticOnly:     cfg.HybridLexicalWeight == 0,
	})

	slog.Info("bootstrap_ready",
		"embedder", cfg.EmbedderBackend,
		"vector_backend", cfg.VectorBackend,
		"registry_backend", cfg.RegistryBackend,
	)
	ok = true
	return app, nil
}

// NewQueue connects to NATS; only the API and worker need it.
func (a *App) NewQueue() (*nats.Queue, error) {
	queue, err := nats.NewWithOptions(a.Config.NATSURL, a.Config.NATSSubject, nats.Options{Executor: a.Executor})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}
	a.closers = append(a.closers, queue.Close)
	return queue, nil
}

// NewDirectoryLoader builds a loader over dir, falling back to INGEST_DIR and INGEST_INCLUDE.
func (a *App) NewDirectoryLoader(dir string, include []string) (*usecase.LoadDirectoryUseCase, *localfs.Source, error) {
	if dir == "" {
		dir = a.Config.IngestDir
	}
	if len(include) == 0 {
		include = a.Config.IngestInclude
	}
	if dir == "" {
		return nil, nil, domain.WrapError(domain.ErrInvalidConfiguration, "directory loader", errors.New("no source directory"))
	}
	source, err := localfs.New(dir, include)
	if err != nil {
		return nil, nil, domain.WrapError(domain.ErrInvalidConfiguration, "directory loader", err)
	}
	return usecase.NewLoadDirectoryUseCase(source, extractor.New(), a.IngestUC), source, nil
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) onClose(name string, fn func() error) {
	a.closers = append(a.closers, func() {
		if err := fn(); err != nil {
			slog.Warn("close_failed", "component", name, "error", err)
		}
	})
}

func newEmbedder(cfg config.Config, exec *resilience.Executor) (ports.Embedder, error) {
	switch cfg.EmbedderBackend {
	case "hash":
		return hashing.New(cfg.HashEmbedDim)
	case "openai":
		return openaiapi.New(openaiapi.Options{
			APIKey:   cfg.OpenAIAPIKey,
			BaseURL:  cfg.OpenAIBaseURL,
			Model:    cfg.OpenAIEmbedModel,
			Timeout:  cfg.RemoteTimeout,
			Executor: exec,
		}), nil
	case "ollama":
		return ollama.New(cfg.OllamaURL, cfg.OllamaEmbedModel, ollama.Options{
			Timeout:  cfg.RemoteTimeout,
			Executor: exec,
		}), nil
	default:
		return nil, unknownBackend("EMBEDDER_BACKEND", cfg.EmbedderBackend)
	}
}

func (a *App) openRegistry(ctx context.Context) (ports.DocumentRegistry, error) {
	cfg := a.Config
	switch cfg.RegistryBackend {
	case "memory":
		return memregistry.NewRegistry(), nil
	case "postgres":
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		a.onClose("postgres", db.Close)
		repo := postgres.NewRegistryRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		return repo, nil
	case "sqlite":
		reg, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.onClose("sqlite", reg.Close)
		if err := reg.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrate sqlite: %w", err)
		}
		return reg, nil
	case "neo4j":
		reg, err := neo4j.Open(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword, cfg.Neo4jDatabase)
		if err != nil {
			return nil, err
		}
		a.onClose("neo4j", func() error { return reg.Close(context.Background()) })
		if err := reg.EnsureConstraint(ctx); err != nil {
			return nil, err
		}
		return reg, nil
	default:
		return nil, unknownBackend("REGISTRY_BACKEND", cfg.RegistryBackend)
	}
}

func (a *App) openIndex(ctx context.Context) (ports.VectorIndex, error) {
	cfg := a.Config
	switch cfg.VectorBackend {
	case "memory":
		return memindex.NewIndex(), nil
	case "bolt":
		idx, err := bolt.Open(cfg.BoltPath)
		if err != nil {
			return nil, err
		}
		a.onClose("bolt", idx.Close)
		return idx, nil
	case "qdrant":
		client := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, qdrant.Options{
			Timeout:  cfg.RemoteTimeout,
			Executor: a.Executor,
		})
		dim, err := probeDimension(ctx, a.Embedder)
		if err != nil {
			return nil, err
		}
		if err := client.EnsureCollection(ctx, dim); err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, unknownBackend("VECTOR_BACKEND", cfg.VectorBackend)
	}
}

func probeDimension(ctx context.Context, embedder ports.Embedder) (int, error) {
	if sized, ok := embedder.(interface{ Dimension() int }); ok {
		return sized.Dimension(), nil
	}
	vector, err := embedder.Embed(ctx, probeText)
	if err != nil {
		return 0, fmt.Errorf("probe embedding dimension: %w", err)
	}
	if len(vector) == 0 {
		return 0, domain.WrapError(domain.ErrEmbeddingUnavailable, "probe embedding dimension", errors.New("empty vector"))
	}
	return len(vector), nil
}

func resilienceConfig(cfg config.Config) resilience.Config {
	return resilience.Config{
		RetryMaxAttempts:        cfg.ResilienceRetryMaxAttempts,
		RetryInitialBackoff:     cfg.ResilienceRetryInitialBackoff,
		RetryMaxBackoff:         cfg.ResilienceRetryMaxBackoff,
		RetryMultiplier:         2.0,
		BreakerEnabled:          cfg.ResilienceBreakerEnabled,
		BreakerMinRequests:      toUint32(cfg.ResilienceBreakerMinRequests),
		BreakerFailureRatio:     cfg.ResilienceBreakerFailureRatio,
		BreakerOpenTimeout:      cfg.ResilienceBreakerOpenTimeout,
		BreakerHalfOpenMaxCalls: toUint32(cfg.ResilienceBreakerHalfOpenCalls),
	}
}

func toUint32(n int) uint32 {
	if n <= 0 {
		return 0
	}
	return uint32(n)
}

func unknownBackend(key, value string) error {
	return domain.WrapError(domain.ErrInvalidConfiguration, "bootstrap", fmt.Errorf("unknown %s %q", key, value))
}
