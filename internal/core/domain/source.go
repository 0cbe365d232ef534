package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type SourceStatus string

const (
	StatusPending   SourceStatus = "pending"
	StatusFetched   SourceStatus = "fetched"
	StatusExtracted SourceStatus = "extracted"
	StatusEmbedded  SourceStatus = "embedded"
	StatusUpserted  SourceStatus = "upserted"
	StatusSkipped   SourceStatus = "skipped"
	StatusFailed    SourceStatus = "failed"
)

// Source is one target organization website. Sources come from the manifest
// and are read-only during a run; only status fields change.
type Source struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	RootURL        string       `json:"root_url"`
	ExtraPaths     []string     `json:"extra_paths,omitempty"`
	Status         SourceStatus `json:"status"`
	Error          string       `json:"error,omitempty"`
	ChunkCount     int          `json:"chunk_count"`
	LastIngestedAt *time.Time   `json:"last_ingested_at,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// RawPage is the rendered content of one URL under a Source. It lives only
// for the duration of a run.
type RawPage struct {
	SourceID  string
	URL       string
	Body      string
	FetchedAt time.Time
}

// FetchReport accounts for every URL a fetch attempted.
type FetchReport struct {
	Attempted int
	Fetched   int
	Failed    int
}

// Document is the normalized text extracted from one RawPage.
type Document struct {
	SourceID    string
	URL         string
	Text        string
	ExtractedAt time.Time
}

// Chunk is the atomic unit of embedding and retrieval. Its ID is a pure
// function of (source id, ordinal) so re-ingestion overwrites in place.
type Chunk struct {
	ID       string
	SourceID string
	URL      string
	Ordinal  int
	Text     string
}

var chunkNamespace = uuid.MustParse("7b0ab1f4-52d5-4d85-9a61-3f0c2a6e8d14")

// ChunkID derives the stable point id for a source position. The id is
// independent of chunk text: shifted content overwrites rather than orphans.
func ChunkID(sourceID string, ordinal int) string {
	return uuid.NewSHA1(chunkNamespace, []byte(fmt.Sprintf("%s#%d", sourceID, ordinal))).String()
}

// SourceResult is the outcome of one source's ingestion pipeline.
type SourceResult struct {
	SourceID     string       `json:"source_id"`
	Status       SourceStatus `json:"status"`
	PagesFetched int          `json:"pages_fetched"`
	PagesFailed  int          `json:"pages_failed"`
	PagesSkipped int          `json:"pages_skipped"`
	Chunks       int          `json:"chunks"`
	Error        string       `json:"error,omitempty"`
}

// IngestSummary aggregates a full batch pass over the source set.
type IngestSummary struct {
	RunID          string    `json:"run_id"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	Succeeded      int       `json:"succeeded"`
	Failed         int       `json:"failed"`
	Skipped        int       `json:"skipped"`
	PagesFetched   int       `json:"pages_fetched"`
	PagesFailed    int       `json:"pages_failed"`
	ChunksUpserted int       `json:"chunks_upserted"`
}
