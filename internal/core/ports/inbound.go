package ports

import (
	"context"

	"github.com/mvolkov/firmscope/internal/core/domain"
)

// SourceIngestor is the inbound contract for single-source ingestion.
type SourceIngestor interface {
	IngestSource(ctx context.Context, sourceID string) (*domain.SourceResult, error)
}

// BatchIngestor runs the full pipeline over the configured source set.
type BatchIngestor interface {
	Run(ctx context.Context) (*domain.IngestSummary, error)
}

// AnswerService is the inbound contract for retrieval-augmented answers.
type AnswerService interface {
	Answer(ctx context.Context, question string, topK int, filter domain.SearchFilter) (*domain.Answer, error)
}

// SourceReader exposes the source registry to the API surface.
type SourceReader interface {
	List(ctx context.Context) ([]domain.Source, error)
}
