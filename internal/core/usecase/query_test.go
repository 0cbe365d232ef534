package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/mvolkov/firmscope/internal/core/domain"
)

type answerEmbedderFake struct {
	query string
	err   error
}

func (f *answerEmbedderFake) Embed(context.Context, []string) ([][]float32, error) { return nil, nil }
func (f *answerEmbedderFake) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.query = text
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2}, nil
}
func (f *answerEmbedderFake) Dimension() int { return 2 }

type answerVectorFake struct {
	topK    int
	filter  domain.SearchFilter
	results []domain.RetrievedChunk
	err     error
}

func (f *answerVectorFake) EnsureExists(context.Context) error { return nil }
func (f *answerVectorFake) Upsert(context.Context, []domain.Chunk, [][]float32) error {
	return nil
}
func (f *answerVectorFake) Query(_ context.Context, _ []float32, topK int, filter domain.SearchFilter) ([]domain.RetrievedChunk, error) {
	f.topK = topK
	f.filter = filter
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}
func (f *answerVectorFake) PruneSource(context.Context, string, int) error { return nil }

type answerGeneratorFake struct {
	called       bool
	contextBlock string
	err          error
}

func (f *answerGeneratorFake) GenerateAnswer(_ context.Context, _, contextBlock string) (string, error) {
	f.called = true
	f.contextBlock = contextBlock
	if f.err != nil {
		return "", f.err
	}
	return "grounded answer", nil
}

func TestAnswerUseCaseDefaultTopK(t *testing.T) {
	vector := &answerVectorFake{results: []domain.RetrievedChunk{
		{ChunkID: "c1", SourceID: "firm-a", URL: "https://a.example/careers", Text: "chunk", Score: 0.9},
	}}
	uc := NewAnswerUseCase(&answerEmbedderFake{}, vector, &answerGeneratorFake{}, 3, 6000)

	answer, err := uc.Answer(context.Background(), "what roles are open?", 0, domain.SearchFilter{})
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if answer.Text != "grounded answer" {
		t.Fatalf("unexpected answer text: %s", answer.Text)
	}
	if vector.topK != 3 {
		t.Fatalf("expected default topK=3, got %d", vector.topK)
	}
}

func TestAnswerUseCaseEmptyQuestion(t *testing.T) {
	uc := NewAnswerUseCase(&answerEmbedderFake{}, &answerVectorFake{}, &answerGeneratorFake{}, 3, 6000)
	_, err := uc.Answer(context.Background(), "   ", 3, domain.SearchFilter{})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestAnswerUseCaseNoContextSkipsGenerator(t *testing.T) {
	generator := &answerGeneratorFake{}
	uc := NewAnswerUseCase(&answerEmbedderFake{}, &answerVectorFake{}, generator, 3, 6000)

	answer, err := uc.Answer(context.Background(), "anything?", 3, domain.SearchFilter{})
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if !answer.NoContext {
		t.Fatalf("expected NoContext=true")
	}
	if answer.Text != NoContextAnswer {
		t.Fatalf("unexpected no-context text: %s", answer.Text)
	}
	if len(answer.Sources) != 0 {
		t.Fatalf("expected no sources, got %d", len(answer.Sources))
	}
	if generator.called {
		t.Fatalf("generator must not run without retrieved context")
	}
}

func TestAnswerUseCaseQueryErrorPropagates(t *testing.T) {
	vector := &answerVectorFake{err: domain.WrapError(domain.ErrIndexQuery, "search", errors.New("boom"))}
	uc := NewAnswerUseCase(&answerEmbedderFake{}, vector, &answerGeneratorFake{}, 3, 6000)

	_, err := uc.Answer(context.Background(), "q", 3, domain.SearchFilter{})
	if !domain.IsKind(err, domain.ErrIndexQuery) {
		t.Fatalf("expected ErrIndexQuery, got %v", err)
	}
}

func TestAnswerUseCaseContextBudget(t *testing.T) {
	long := strings.Repeat("x", 400)
	vector := &answerVectorFake{results: []domain.RetrievedChunk{
		{ChunkID: "c1", SourceID: "firm-a", URL: "https://a.example/about", Text: long, Score: 0.9},
		{ChunkID: "c2", SourceID: "firm-b", URL: "https://b.example/news", Text: long, Score: 0.8},
		{ChunkID: "c3", SourceID: "firm-c", URL: "https://c.example/team", Text: long, Score: 0.7},
	}}
	generator := &answerGeneratorFake{}
	uc := NewAnswerUseCase(&answerEmbedderFake{}, vector, generator, 3, 1000)

	answer, err := uc.Answer(context.Background(), "q", 3, domain.SearchFilter{})
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if len(generator.contextBlock) > 1000 {
		t.Fatalf("context block exceeds budget: %d", len(generator.contextBlock))
	}
	// The third snippet does not fit; attributions cover only what was sent.
	if len(answer.Sources) != 2 {
		t.Fatalf("expected 2 attributions, got %d", len(answer.Sources))
	}
	if answer.Sources[0].SourceID != "firm-a" || answer.Sources[1].SourceID != "firm-b" {
		t.Fatalf("attributions out of score order: %+v", answer.Sources)
	}
}

func TestTruncateAtRune(t *testing.T) {
	s := "ab" + "мир" // 'м' spans bytes 2-3
	cases := []struct {
		limit int
		want  string
	}{
		{0, ""},
		{2, "ab"},
		{3, "ab"}, // mid-rune, backs off
		{4, "abм"},
		{len(s), s},
		{len(s) + 10, s},
	}
	for _, tc := range cases {
		got := truncateAtRune(s, tc.limit)
		if got != tc.want {
			t.Errorf("truncateAtRune(%q, %d) = %q, want %q", s, tc.limit, got, tc.want)
		}
		if !utf8.ValidString(got) {
			t.Errorf("truncateAtRune(%q, %d) produced invalid UTF-8", s, tc.limit)
		}
	}
}

func TestAnswerUseCaseOversizedSnippetKeepsValidUTF8(t *testing.T) {
	chunk := domain.RetrievedChunk{
		ChunkID:  "c1",
		SourceID: "firm-a",
		URL:      "https://a.example/about",
		Text:     strings.Repeat("юридическая фирма ", 40),
		Score:    0.9,
	}
	snippet := formatSnippet(chunk)
	// Budget lands one byte into the first Cyrillic rune of the text.
	budget := strings.Index(snippet, "\n") + 2

	vector := &answerVectorFake{results: []domain.RetrievedChunk{chunk}}
	generator := &answerGeneratorFake{}
	uc := NewAnswerUseCase(&answerEmbedderFake{}, vector, generator, 3, budget)

	answer, err := uc.Answer(context.Background(), "q", 1, domain.SearchFilter{})
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if !utf8.ValidString(generator.contextBlock) {
		t.Fatalf("context block is not valid UTF-8: %q", generator.contextBlock)
	}
	if len(generator.contextBlock) > budget {
		t.Fatalf("context block exceeds budget: %d > %d", len(generator.contextBlock), budget)
	}
	if len(answer.Sources) != 1 {
		t.Fatalf("expected the truncated snippet to keep its attribution, got %d", len(answer.Sources))
	}
}

func TestAnswerUseCaseAttributionsDeduped(t *testing.T) {
	vector := &answerVectorFake{results: []domain.RetrievedChunk{
		{ChunkID: "c1", SourceID: "firm-a", URL: "https://a.example/careers", Text: "one", Score: 0.9},
		{ChunkID: "c2", SourceID: "firm-a", URL: "https://a.example/careers", Text: "two", Score: 0.8},
	}}
	uc := NewAnswerUseCase(&answerEmbedderFake{}, vector, &answerGeneratorFake{}, 3, 6000)

	answer, err := uc.Answer(context.Background(), "q", 3, domain.SearchFilter{})
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if len(answer.Sources) != 1 {
		t.Fatalf("expected deduped attribution, got %d", len(answer.Sources))
	}
}

func TestAnswerUseCaseFilterPassedThrough(t *testing.T) {
	vector := &answerVectorFake{results: []domain.RetrievedChunk{
		{ChunkID: "c1", SourceID: "firm-a", URL: "https://a.example", Text: "chunk", Score: 0.5},
	}}
	uc := NewAnswerUseCase(&answerEmbedderFake{}, vector, &answerGeneratorFake{}, 3, 6000)

	if _, err := uc.Answer(context.Background(), "q", 1, domain.SearchFilter{SourceID: "firm-a"}); err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if vector.filter.SourceID != "firm-a" {
		t.Fatalf("filter not propagated: %+v", vector.filter)
	}
}
