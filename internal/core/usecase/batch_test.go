package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mvolkov/firmscope/internal/core/domain"
)

type ingestorFake struct {
	mu      sync.Mutex
	calls   []string
	failIDs map[string]bool
}

func (f *ingestorFake) IngestSource(_ context.Context, sourceID string) (*domain.SourceResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, sourceID)
	f.mu.Unlock()

	if f.failIDs[sourceID] {
		return &domain.SourceResult{SourceID: sourceID, Status: domain.StatusFailed, PagesFailed: 1},
			errors.New("ingest failed")
	}
	return &domain.SourceResult{
		SourceID:     sourceID,
		Status:       domain.StatusUpserted,
		PagesFetched: 2,
		Chunks:       5,
	}, nil
}

func TestBatchRunCountsOutcomes(t *testing.T) {
	repo := newRepoFake(
		domain.Source{ID: "firm-a", Status: domain.StatusPending},
		domain.Source{ID: "firm-b", Status: domain.StatusPending},
		domain.Source{ID: "firm-c", Status: domain.StatusPending},
	)
	ingestor := &ingestorFake{failIDs: map[string]bool{"firm-b": true}}
	uc := NewBatchIngestUseCase(repo, repo, ingestor, 2, 0, nil, "worker")

	summary, err := uc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if summary.Succeeded != 2 || summary.Failed != 1 || summary.Skipped != 0 {
		t.Fatalf("summary = %+v", summary)
	}
	if summary.PagesFetched != 4 || summary.ChunksUpserted != 10 {
		t.Fatalf("aggregates wrong: %+v", summary)
	}
	if len(ingestor.calls) != 3 {
		t.Fatalf("ingestor called %d times, want 3", len(ingestor.calls))
	}
	if len(repo.runs) != 1 {
		t.Fatalf("expected run recorded once, got %d", len(repo.runs))
	}
	if repo.runs[0].RunID != summary.RunID {
		t.Fatalf("recorded run id mismatch")
	}
}

func TestBatchRunSkipsFreshSources(t *testing.T) {
	recent := time.Now().UTC().Add(-1 * time.Hour)
	stale := time.Now().UTC().Add(-48 * time.Hour)
	repo := newRepoFake(
		domain.Source{ID: "fresh", Status: domain.StatusUpserted, LastIngestedAt: &recent},
		domain.Source{ID: "stale", Status: domain.StatusUpserted, LastIngestedAt: &stale},
		domain.Source{ID: "failed-before", Status: domain.StatusFailed, LastIngestedAt: &recent},
	)
	ingestor := &ingestorFake{}
	uc := NewBatchIngestUseCase(repo, repo, ingestor, 1, 24*time.Hour, nil, "worker")

	summary, err := uc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if summary.Skipped != 1 {
		t.Fatalf("skipped = %d, want 1", summary.Skipped)
	}
	for _, id := range ingestor.calls {
		if id == "fresh" {
			t.Fatalf("fresh source must not be re-ingested")
		}
	}
	if len(ingestor.calls) != 2 {
		t.Fatalf("ingestor called %d times, want 2", len(ingestor.calls))
	}
}

func TestBatchRunCancelledContext(t *testing.T) {
	repo := newRepoFake(
		domain.Source{ID: "firm-a", Status: domain.StatusPending},
	)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	uc := NewBatchIngestUseCase(repo, repo, &ingestorFake{}, 1, 0, nil, "worker")
	if _, err := uc.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
