package ports

import (
	"context"
	"time"

	"github.com/mvolkov/firmscope/internal/core/domain"
)

// SourceRepository persists the source registry and per-source ingest state.
type SourceRepository interface {
	SyncSources(ctx context.Context, sources []domain.Source) error
	List(ctx context.Context) ([]domain.Source, error)
	GetByID(ctx context.Context, id string) (*domain.Source, error)
	UpdateStatus(ctx context.Context, id string, status domain.SourceStatus, errMessage string) error
	MarkIngested(ctx context.Context, id string, at time.Time, chunkCount int) error
}

// RunRecorder persists batch run summaries.
type RunRecorder interface {
	RecordRun(ctx context.Context, summary domain.IngestSummary) error
}

// PageFetcher retrieves rendered pages for a source. Pages are delivered
// through emit as they arrive; the report accounts for every attempted URL.
type PageFetcher interface {
	Fetch(ctx context.Context, source domain.Source, emit func(domain.RawPage) error) (domain.FetchReport, error)
}

// Extractor normalizes a fetched page. A (nil, nil) return means the page
// carried too little meaningful text and was skipped, not failed.
type Extractor interface {
	Extract(page domain.RawPage) (*domain.Document, error)
}

// Chunker splits normalized text into bounded overlapping segments.
type Chunker interface {
	Split(text string) []string
}

// Embedder builds vectors for chunks and query text. Both sides must use
// the same model and dimension or similarity scores are meaningless.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// VectorStore owns all access to the external vector index.
type VectorStore interface {
	EnsureExists(ctx context.Context) error
	Upsert(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error
	Query(ctx context.Context, queryVector []float32, topK int, filter domain.SearchFilter) ([]domain.RetrievedChunk, error)
	// PruneSource removes entries for a source at ordinals >= keep, so a
	// shrinking document leaves no stale tail chunks behind.
	PruneSource(ctx context.Context, sourceID string, keep int) error
}

// AnswerGenerator produces the final answer text from assembled context.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, question, contextBlock string) (string, error)
}

// MessageQueue carries source refresh triggers between api and worker.
type MessageQueue interface {
	PublishSourceRefresh(ctx context.Context, sourceID string) error
	SubscribeSourceRefresh(ctx context.Context, handler func(context.Context, string) error) error
}
