package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mvolkov/firmscope/internal/core/domain"
	"github.com/mvolkov/firmscope/internal/core/ports"
)

// IngestSourceUseCase drives one source through
// fetch -> extract -> chunk -> embed -> upsert. Each stage advances the
// persisted status so operators can see where a run stopped.
type IngestSourceUseCase struct {
	repo      ports.SourceRepository
	fetcher   ports.PageFetcher
	extractor ports.Extractor
	chunker   ports.Chunker
	embedder  ports.Embedder
	vectorDB  ports.VectorStore
}

func NewIngestSourceUseCase(
	repo ports.SourceRepository,
	fetcher ports.PageFetcher,
	extractor ports.Extractor,
	chunker ports.Chunker,
	embedder ports.Embedder,
	vectorDB ports.VectorStore,
) *IngestSourceUseCase {
	return &IngestSourceUseCase{
		repo:      repo,
		fetcher:   fetcher,
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		vectorDB:  vectorDB,
	}
}

func (uc *IngestSourceUseCase) IngestSource(ctx context.Context, sourceID string) (*domain.SourceResult, error) {
	source, err := uc.repo.GetByID(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("load source: %w", err)
	}

	if err := uc.markStatus(ctx, sourceID, domain.StatusPending, ""); err != nil {
		return nil, fmt.Errorf("set status=pending: %w", err)
	}

	result, err := uc.pipeline(ctx, *source)
	if err != nil {
		result.Status = domain.StatusFailed
		result.Error = err.Error()
		if failErr := uc.markStatus(ctx, sourceID, domain.StatusFailed, err.Error()); failErr != nil {
			return result, fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return result, err
	}

	if err := uc.repo.MarkIngested(ctx, sourceID, time.Now().UTC(), result.Chunks); err != nil {
		return result, fmt.Errorf("mark ingested: %w", err)
	}
	result.Status = domain.StatusUpserted
	return result, nil
}

func (uc *IngestSourceUseCase) pipeline(ctx context.Context, source domain.Source) (*domain.SourceResult, error) {
	result := &domain.SourceResult{SourceID: source.ID}

	documents, err := uc.fetchAndExtract(ctx, source, result)
	if err != nil {
		return result, err
	}

	chunks := uc.chunkDocuments(source.ID, documents)
	if len(chunks) == 0 {
		return result, domain.WrapError(domain.ErrInvalidInput, "chunk source",
			errors.New("chunking produced zero chunks"))
	}
	if err := uc.markStatus(ctx, source.ID, domain.StatusExtracted, ""); err != nil {
		return result, fmt.Errorf("set status=extracted: %w", err)
	}

	vectors, err := uc.embedChunks(ctx, chunks)
	if err != nil {
		return result, err
	}
	if err := uc.markStatus(ctx, source.ID, domain.StatusEmbedded, ""); err != nil {
		return result, fmt.Errorf("set status=embedded: %w", err)
	}

	if err := uc.vectorDB.Upsert(ctx, chunks, vectors); err != nil {
		return result, fmt.Errorf("upsert chunks: %w", err)
	}
	// Positional ids overwrite in place; anything past the new tail is stale.
	if err := uc.vectorDB.PruneSource(ctx, source.ID, len(chunks)); err != nil {
		return result, fmt.Errorf("prune stale chunks: %w", err)
	}

	result.Chunks = len(chunks)
	return result, nil
}

func (uc *IngestSourceUseCase) fetchAndExtract(
	ctx context.Context,
	source domain.Source,
	result *domain.SourceResult,
) ([]domain.Document, error) {
	var documents []domain.Document

	report, err := uc.fetcher.Fetch(ctx, source, func(page domain.RawPage) error {
		doc, extractErr := uc.extractor.Extract(page)
		if extractErr != nil {
			return fmt.Errorf("extract %s: %w", page.URL, extractErr)
		}
		if doc == nil {
			result.PagesSkipped++
			slog.Info("page_skipped_low_content", "source_id", source.ID, "url", page.URL)
			return nil
		}
		documents = append(documents, *doc)
		return nil
	})

	result.PagesFetched = report.Fetched
	result.PagesFailed = report.Failed
	if err != nil {
		return nil, fmt.Errorf("fetch source: %w", err)
	}
	if err := uc.markStatus(ctx, source.ID, domain.StatusFetched, ""); err != nil {
		return nil, fmt.Errorf("set status=fetched: %w", err)
	}

	if len(documents) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "extract source",
			errors.New("no page yielded meaningful text"))
	}
	return documents, nil
}

// chunkDocuments assigns source-wide ordinals in page arrival order so
// chunk ids stay stable across re-runs of unchanged content.
func (uc *IngestSourceUseCase) chunkDocuments(sourceID string, documents []domain.Document) []domain.Chunk {
	var chunks []domain.Chunk
	ordinal := 0
	for _, doc := range documents {
		for _, text := range uc.chunker.Split(doc.Text) {
			chunks = append(chunks, domain.Chunk{
				ID:       domain.ChunkID(sourceID, ordinal),
				SourceID: sourceID,
				URL:      doc.URL,
				Ordinal:  ordinal,
				Text:     text,
			})
			ordinal++
		}
	}
	return chunks
}

func (uc *IngestSourceUseCase) embedChunks(ctx context.Context, chunks []domain.Chunk) ([][]float32, error) {
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	vectors, err := uc.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, domain.WrapError(domain.ErrEmbedding, "embed chunks",
			fmt.Errorf("vectors/chunks mismatch: %d/%d", len(vectors), len(chunks)))
	}

	want := uc.embedder.Dimension()
	for i, vector := range vectors {
		if len(vector) != want {
			return nil, domain.WrapError(domain.ErrEmbedding, "embed chunks",
				fmt.Errorf("chunk %d dimension %d, expected %d", i, len(vector), want))
		}
	}
	return vectors, nil
}

func (uc *IngestSourceUseCase) markStatus(ctx context.Context, sourceID string, status domain.SourceStatus, errMessage string) error {
	return uc.repo.UpdateStatus(ctx, sourceID, status, errMessage)
}
