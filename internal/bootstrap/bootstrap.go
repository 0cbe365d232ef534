package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/mvolkov/firmscope/internal/config"
	"github.com/mvolkov/firmscope/internal/core/ports"
	"github.com/mvolkov/firmscope/internal/core/usecase"
	"github.com/mvolkov/firmscope/internal/infrastructure/chunking"
	"github.com/mvolkov/firmscope/internal/infrastructure/extractor/htmltext"
	"github.com/mvolkov/firmscope/internal/infrastructure/fetcher/browser"
	"github.com/mvolkov/firmscope/internal/infrastructure/llm/openai"
	"github.com/mvolkov/firmscope/internal/infrastructure/queue/nats"
	"github.com/mvolkov/firmscope/internal/infrastructure/repository/postgres"
	"github.com/mvolkov/firmscope/internal/infrastructure/resilience"
	"github.com/mvolkov/firmscope/internal/infrastructure/sources"
	"github.com/mvolkov/firmscope/internal/infrastructure/vector/qdrant"
	"github.com/mvolkov/firmscope/internal/observability/metrics"
)

const browserUserAgent = "firmscope-ingest/1.0"

type App struct {
	Config config.Config

	Queue      ports.MessageQueue
	Repo       ports.SourceRepository
	IngestUC   ports.SourceIngestor
	BatchUC    ports.BatchIngestor
	AnswerUC   ports.AnswerService
	RegistryUC ports.SourceReader

	WorkerMetrics *metrics.WorkerMetrics
	HTTPMetrics   *metrics.HTTPServerMetrics

	closeFn func()
}

// New wires every adapter behind the ports and verifies external
// prerequisites (schema, vector collection) before returning.
func New(ctx context.Context, cfg config.Config, service string) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewSourceRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	registered, err := sources.Load(cfg.SourcesFile)
	if err != nil {
		return nil, fmt.Errorf("load source manifest: %w", err)
	}
	if err := repo.SyncSources(ctx, registered); err != nil {
		return nil, fmt.Errorf("sync sources: %w", err)
	}

	executorCfg := resilience.DefaultConfig()
	executorCfg.RetryMaxAttempts = cfg.FetchRetries
	executor := resilience.NewExecutor(executorCfg)

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	openaiClient := openai.New(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.EmbedModel, cfg.GenModel, openai.Options{
		EmbedDim:  cfg.EmbedDim,
		BatchSize: cfg.EmbedBatchSize,
		Executor:  executor,
	})
	embedder := openai.NewEmbedder(openaiClient)
	generator := openai.NewGenerator(openaiClient)

	vectorDB := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, cfg.EmbedDim, qdrant.Options{
		APIKey:   cfg.QdrantAPIKey,
		Executor: executor,
	})
	if err := vectorDB.EnsureExists(ctx); err != nil {
		queue.Close()
		_ = db.Close()
		return nil, fmt.Errorf("verify vector collection: %w", err)
	}

	pool := browser.NewPool(cfg.BrowserPoolSize, browserUserAgent, time.Duration(cfg.PageTimeoutSecs)*time.Second)
	fetcher := browser.NewFetcher(pool, browser.Config{
		MaxPagesPerSource: cfg.MaxPagesPerSource,
	}, executor)

	chunker := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	extractor := htmltext.New(0)

	workerMetrics := metrics.NewWorkerMetrics(service)
	httpMetrics := metrics.NewHTTPServerMetrics(service)

	ingestUC := usecase.NewIngestSourceUseCase(repo, fetcher, extractor, chunker, embedder, vectorDB)
	batchUC := usecase.NewBatchIngestUseCase(
		repo,
		repo,
		ingestUC,
		cfg.IngestWorkers,
		time.Duration(cfg.FreshnessHours)*time.Hour,
		workerMetrics,
		service,
	)
	answerUC := usecase.NewAnswerUseCase(embedder, vectorDB, generator, cfg.TopK, cfg.ContextBudget)
	registryUC := usecase.NewSourceRegistryUseCase(repo)

	return &App{
		Config: cfg,
		Queue:  queue,
		Repo:   repo,

		IngestUC:   ingestUC,
		BatchUC:    batchUC,
		AnswerUC:   answerUC,
		RegistryUC: registryUC,

		WorkerMetrics: workerMetrics,
		HTTPMetrics:   httpMetrics,

		closeFn: func() {
			queue.Close()
			pool.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
