package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/kirillkom/news-retriever/internal/config"
	"github.com/kirillkom/news-retriever/internal/core/ports"
	"github.com/kirillkom/news-retriever/internal/core/usecase"
	"github.com/kirillkom/news-retriever/internal/infrastructure/embedding/ollama"
	"github.com/kirillkom/news-retriever/internal/infrastructure/embedding/openai"
	"github.com/kirillkom/news-retriever/internal/infrastructure/queue/nats"
	"github.com/kirillkom/news-retriever/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/news-retriever/internal/infrastructure/resilience"
	"github.com/kirillkom/news-retriever/internal/infrastructure/vector/bolt"
	"github.com/kirillkom/news-retriever/internal/infrastructure/vector/qdrant"
)

// Component selects what New wires beyond the optional Postgres and NATS
// collaborators.
type Component uint8

const (
	// Search wires the retriever: query embedder plus a read side of the
	// vector index.
	Search Component = 1 << iota
	// Build wires the indexer: build embedder plus the index writer. With
	// the bolt backend this holds the index file lock until Close.
	Build
)

type App struct {
	Config config.Config

	// Set with Search.
	Retriever *usecase.Retriever
	// Set with Build.
	Indexer *usecase.IndexArticlesUseCase
	// IndexSize counts indexed articles; set with Search or Build.
	IndexSize func(ctx context.Context) (int, error)

	// Optional collaborators; nil when not configured.
	Articles  ports.ArticleRepository
	Events    *postgres.RetrievalEventRepository
	Broker    *nats.Publisher
	Publisher ports.RetrievalEventPublisher

	closers []func()
}

// New wires the application from configuration. Only the requested
// components are built, so the audit worker (no components) never touches
// the embedding provider or the vector index. Query-path collaborators get
// a fail-fast executor; index builds get the retrying one.
func New(ctx context.Context, cfg config.Config, components ...Component) (*App, error) {
	var want Component
	for _, c := range components {
		want |= c
	}

	policy := RetrievalPolicy(cfg.Policy)
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	app := &App{Config: cfg}
	ok := false
	defer func() {
		if !ok {
			app.Close()
		}
	}()

	queryExec, buildExec := executors(cfg)
	if want != 0 {
		if err := app.wireIndex(cfg, want, policy, queryExec, buildExec); err != nil {
			return nil, err
		}
	}

	if cfg.PostgresDSN != "" {
		db, err := postgres.OpenDB(ctx, cfg.PostgresDSN, postgres.DefaultPoolOptions())
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		app.closers = append(app.closers, func() { _ = db.Close() })
		if err := app.initRepositories(ctx, db); err != nil {
			return nil, err
		}
		if app.Indexer != nil {
			app.Indexer.WithCatalog(app.Articles)
		}
	}

	app.Publisher = nats.NoopPublisher{}
	if cfg.NATSURL != "" {
		broker, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ResilienceExecutor: queryExec,
			Logger:             slog.Default(),
		})
		if err != nil {
			return nil, fmt.Errorf("init event broker: %w", err)
		}
		app.closers = append(app.closers, broker.Close)
		app.Broker = broker
		app.Publisher = broker
	}

	ok = true
	return app, nil
}

// wireIndex builds the embedders and vector index sides the components
// need. With bolt, a search-only process reads through a snapshot that
// holds no file lock and follows rebuilds made by other processes.
func (a *App) wireIndex(
	cfg config.Config,
	want Component,
	policy usecase.RetrievalPolicy,
	queryExec, buildExec *resilience.Executor,
) error {
	var (
		searchIndex ports.VectorIndex
		writer      ports.VectorIndexWriter
	)
	switch cfg.VectorBackend {
	case "bolt":
		if want&Build != 0 {
			idx, err := bolt.Open(cfg.BoltIndexPath)
			if err != nil {
				return fmt.Errorf("open bolt index: %w", err)
			}
			a.closers = append(a.closers, func() { _ = idx.Close() })
			writer = idx
			searchIndex = idx
			a.IndexSize = idx.Count
		} else {
			snap, err := bolt.OpenSnapshot(cfg.BoltIndexPath)
			if err != nil {
				return fmt.Errorf("open bolt index snapshot: %w", err)
			}
			searchIndex = snap
			a.IndexSize = snap.Count
		}
	default:
		if want&Search != 0 {
			reader := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, qdrant.WithExecutor(queryExec))
			searchIndex = reader
			a.IndexSize = reader.Count
		}
		if want&Build != 0 {
			client := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, qdrant.WithExecutor(buildExec))
			writer = client
			a.IndexSize = client.Count
		}
	}

	if want&Search != 0 {
		embedder, err := newEmbedder(cfg, queryExec)
		if err != nil {
			return err
		}
		a.Retriever = usecase.NewRetriever(embedder, searchIndex, policy)
	}
	if want&Build != 0 {
		embedder, err := newEmbedder(cfg, buildExec)
		if err != nil {
			return err
		}
		a.Indexer = usecase.NewIndexArticlesUseCase(embedder, writer, cfg.EmbedBatchSize)
	}
	return nil
}

func (a *App) initRepositories(ctx context.Context, db *sql.DB) error {
	articles := postgres.NewArticleRepository(db)
	if err := articles.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure articles schema: %w", err)
	}
	events := postgres.NewRetrievalEventRepository(db)
	if err := events.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure events schema: %w", err)
	}
	a.Articles = articles
	a.Events = events
	return nil
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// RetrievalPolicy maps the configured knobs onto the use-case policy.
func RetrievalPolicy(p config.PolicyConfig) usecase.RetrievalPolicy {
	return usecase.RetrievalPolicy{
		SimilarityThreshold:  p.SimilarityThreshold,
		FocusedTopK:          p.FocusedTopK,
		ExplorationTopK:      p.ExplorationTopK,
		ExplorationThreshold: p.ExplorationThreshold,
		ExplorationMinScore:  p.ExplorationMinScore,
	}
}

// executors returns nil executors when resilience is disabled; adapters then
// call upstream directly.
func executors(cfg config.Config) (query, build *resilience.Executor) {
	if !cfg.ResilienceEnabled {
		return nil, nil
	}
	base := resilience.Config{
		Name:                    "build",
		RetryMaxAttempts:        cfg.RetryMaxAttempts,
		RetryInitialBackoff:     cfg.RetryInitialBackoff,
		RetryMaxBackoff:         cfg.RetryMaxBackoff,
		RetryMultiplier:         2.0,
		BreakerEnabled:          true,
		BreakerMinRequests:      uint32(max(cfg.BreakerMinRequests, 0)),
		BreakerFailureRatio:     cfg.BreakerFailureRatio,
		BreakerOpenTimeout:      cfg.BreakerOpenTimeout,
		BreakerHalfOpenMaxCalls: uint32(max(cfg.BreakerHalfOpenMaxCall, 0)),
	}
	return resilience.NewExecutor(base.FailFast()), resilience.NewExecutor(base)
}

func newEmbedder(cfg config.Config, exec *resilience.Executor) (ports.Embedder, error) {
	switch cfg.EmbeddingProvider {
	case "openai":
		return openai.NewEmbedder(cfg.OpenAIAPIKey, cfg.OpenAIEmbedModel, cfg.OpenAIBaseURL, exec)
	default:
		return ollama.NewEmbedder(cfg.OllamaURL, cfg.OllamaEmbedModel, ollama.WithExecutor(exec)), nil
	}
}
