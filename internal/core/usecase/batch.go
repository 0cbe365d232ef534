package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/mvolkov/firmscope/internal/core/domain"
	"github.com/mvolkov/firmscope/internal/core/ports"
	"github.com/mvolkov/firmscope/internal/observability/metrics"
)

// BatchIngestUseCase runs a full refresh over every registered source,
// bounded by a worker pool. Sources ingested within the freshness window
// are skipped so a restarted run resumes where the previous one stopped.
type BatchIngestUseCase struct {
	repo     ports.SourceRepository
	recorder ports.RunRecorder
	ingestor ports.SourceIngestor
	workers  int
	freshFor time.Duration
	metrics  *metrics.WorkerMetrics
	service  string
}

func NewBatchIngestUseCase(
	repo ports.SourceRepository,
	recorder ports.RunRecorder,
	ingestor ports.SourceIngestor,
	workers int,
	freshFor time.Duration,
	workerMetrics *metrics.WorkerMetrics,
	service string,
) *BatchIngestUseCase {
	if workers < 1 {
		workers = 1
	}
	return &BatchIngestUseCase{
		repo:     repo,
		recorder: recorder,
		ingestor: ingestor,
		workers:  workers,
		freshFor: freshFor,
		metrics:  workerMetrics,
		service:  service,
	}
}

func (uc *BatchIngestUseCase) Run(ctx context.Context) (*domain.IngestSummary, error) {
	sources, err := uc.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	summary := &domain.IngestSummary{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
	slog.Info("ingest_run_started", "run_id", summary.RunID, "sources", len(sources), "workers", uc.workers)

	pool, err := ants.NewPool(uc.workers)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	var (
		wg           sync.WaitGroup
		succeeded    atomic.Int64
		failed       atomic.Int64
		skipped      atomic.Int64
		pagesFetched atomic.Int64
		pagesFailed  atomic.Int64
		chunksUpsert atomic.Int64
	)

	for _, source := range sources {
		if ctx.Err() != nil {
			break
		}
		if uc.isFresh(source, summary.StartedAt) {
			skipped.Add(1)
			slog.Info("source_skipped_fresh", "run_id", summary.RunID, "source_id", source.ID)
			continue
		}

		source := source
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			uc.ingestOne(ctx, summary.RunID, source,
				&succeeded, &failed, &pagesFetched, &pagesFailed, &chunksUpsert)
		})
		if submitErr != nil {
			wg.Done()
			failed.Add(1)
			slog.Error("source_submit_failed", "run_id", summary.RunID, "source_id", source.ID, "error", submitErr)
		}
	}
	wg.Wait()

	summary.FinishedAt = time.Now().UTC()
	summary.Succeeded = int(succeeded.Load())
	summary.Failed = int(failed.Load())
	summary.Skipped = int(skipped.Load())
	summary.PagesFetched = int(pagesFetched.Load())
	summary.PagesFailed = int(pagesFailed.Load())
	summary.ChunksUpserted = int(chunksUpsert.Load())

	if err := uc.recorder.RecordRun(ctx, *summary); err != nil {
		slog.Error("ingest_run_record_failed", "run_id", summary.RunID, "error", err)
	}
	slog.Info("ingest_run_finished",
		"run_id", summary.RunID,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
		"chunks_upserted", summary.ChunksUpserted,
		"duration", summary.FinishedAt.Sub(summary.StartedAt).String(),
	)
	return summary, ctx.Err()
}

func (uc *BatchIngestUseCase) ingestOne(
	ctx context.Context,
	runID string,
	source domain.Source,
	succeeded, failed, pagesFetched, pagesFailed, chunksUpsert *atomic.Int64,
) {
	if uc.metrics != nil {
		uc.metrics.StartSource()
	}
	start := time.Now()

	result, err := uc.ingestor.IngestSource(ctx, source.ID)
	status := string(domain.StatusUpserted)
	if err != nil {
		status = string(domain.StatusFailed)
		failed.Add(1)
		slog.Error("source_ingest_failed", "run_id", runID, "source_id", source.ID, "error", err)
	} else {
		succeeded.Add(1)
		slog.Info("source_ingest_succeeded",
			"run_id", runID,
			"source_id", source.ID,
			"pages_fetched", result.PagesFetched,
			"chunks", result.Chunks,
		)
	}

	if result != nil {
		pagesFetched.Add(int64(result.PagesFetched))
		pagesFailed.Add(int64(result.PagesFailed))
		chunksUpsert.Add(int64(result.Chunks))
		if uc.metrics != nil {
			uc.metrics.ObservePages(uc.service, result.PagesFetched, result.PagesFailed)
			uc.metrics.AddChunks(result.Chunks)
		}
	}
	if uc.metrics != nil {
		uc.metrics.FinishSource(uc.service, status, time.Since(start))
	}
}

func (uc *BatchIngestUseCase) isFresh(source domain.Source, now time.Time) bool {
	if uc.freshFor <= 0 || source.LastIngestedAt == nil {
		return false
	}
	if source.Status != domain.StatusUpserted {
		return false
	}
	return now.Sub(*source.LastIngestedAt) < uc.freshFor
}
