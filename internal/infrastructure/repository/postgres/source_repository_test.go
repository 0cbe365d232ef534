package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/mvolkov/firmscope/internal/core/domain"
)

func newRepoWithMock(t *testing.T) (*SourceRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &SourceRepository{db: db}, mock, func() { _ = db.Close() }
}

func sourceColumns() []string {
	return []string{
		"id", "name", "root_url", "extra_paths", "status",
		"error_message", "chunk_count", "last_ingested_at", "created_at", "updated_at",
	}
}

func TestGetByIDReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, name, root_url").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrSourceNotFound) {
		t.Fatalf("expected ErrSourceNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetByIDScansSource(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	now := time.Now().UTC()
	rows := sqlmock.NewRows(sourceColumns()).AddRow(
		"firm-a", "Firm A", "https://a.example", []byte(`["/grads"]`), "upserted",
		"", 12, now, now, now,
	)
	mock.ExpectQuery("SELECT id, name, root_url").
		WithArgs("firm-a").
		WillReturnRows(rows)

	source, err := repo.GetByID(context.Background(), "firm-a")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if source.Status != domain.StatusUpserted || source.ChunkCount != 12 {
		t.Fatalf("source = %+v", source)
	}
	if source.LastIngestedAt == nil {
		t.Fatalf("last_ingested_at not scanned")
	}
	if len(source.ExtraPaths) != 1 || source.ExtraPaths[0] != "/grads" {
		t.Fatalf("extra paths = %v", source.ExtraPaths)
	}
}

func TestListScansAllSources(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	now := time.Now().UTC()
	rows := sqlmock.NewRows(sourceColumns()).
		AddRow("firm-a", "Firm A", "https://a.example", []byte(`[]`), "pending", "", 0, nil, now, now).
		AddRow("firm-b", "Firm B", "https://b.example", []byte(`[]`), "failed", "timeout", 0, nil, now, now)
	mock.ExpectQuery("SELECT id, name, root_url").WillReturnRows(rows)

	sources, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(sources))
	}
	if sources[1].Error != "timeout" || sources[1].LastIngestedAt != nil {
		t.Fatalf("second source = %+v", sources[1])
	}
}

func TestUpdateStatusReturnsDomainNotFoundWhenNoRowsAffected(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE sources").
		WithArgs("missing", string(domain.StatusFetched), "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "missing", domain.StatusFetched, "")
	if !domain.IsKind(err, domain.ErrSourceNotFound) {
		t.Fatalf("expected ErrSourceNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestMarkIngestedUpdatesCountAndTimestamp(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	at := time.Now().UTC()
	mock.ExpectExec("UPDATE sources").
		WithArgs("firm-a", string(domain.StatusUpserted), 42, at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.MarkIngested(context.Background(), "firm-a", at, 42); err != nil {
		t.Fatalf("MarkIngested() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSyncSourcesUpsertsEachEntry(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("INSERT INTO sources").
		WithArgs("firm-a", "Firm A", "https://a.example", []byte(`[]`), string(domain.StatusPending), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO sources").
		WithArgs("firm-b", "Firm B", "https://b.example", []byte(`["/grads"]`), string(domain.StatusPending), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SyncSources(context.Background(), []domain.Source{
		{ID: "firm-a", Name: "Firm A", RootURL: "https://a.example"},
		{ID: "firm-b", Name: "Firm B", RootURL: "https://b.example", ExtraPaths: []string{"/grads"}},
	})
	if err != nil {
		t.Fatalf("SyncSources() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRecordRunInsertsSummary(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	summary := domain.IngestSummary{
		RunID:          "run-1",
		StartedAt:      time.Now().UTC(),
		FinishedAt:     time.Now().UTC(),
		Succeeded:      3,
		Failed:         1,
		Skipped:        2,
		PagesFetched:   14,
		PagesFailed:    2,
		ChunksUpserted: 120,
	}
	mock.ExpectExec("INSERT INTO ingest_runs").
		WithArgs(summary.RunID, summary.StartedAt, summary.FinishedAt,
			summary.Succeeded, summary.Failed, summary.Skipped,
			summary.PagesFetched, summary.PagesFailed, summary.ChunksUpserted).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.RecordRun(context.Background(), summary); err != nil {
		t.Fatalf("RecordRun() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
