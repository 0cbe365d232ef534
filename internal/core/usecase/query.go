package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mvolkov/firmscope/internal/core/domain"
	"github.com/mvolkov/firmscope/internal/core/ports"
)

// NoContextAnswer is returned verbatim when retrieval finds nothing
// relevant. The generator is never consulted in that case.
const NoContextAnswer = "No relevant information was found in the indexed firm websites for this question."

// AnswerUseCase embeds the question, retrieves the closest chunks and
// asks the generator for an answer grounded strictly in those chunks.
type AnswerUseCase struct {
	embedder      ports.Embedder
	vectorDB      ports.VectorStore
	generator     ports.AnswerGenerator
	defaultTopK   int
	contextBudget int
}

func NewAnswerUseCase(
	embedder ports.Embedder,
	vectorDB ports.VectorStore,
	generator ports.AnswerGenerator,
	defaultTopK int,
	contextBudget int,
) *AnswerUseCase {
	if defaultTopK < 1 {
		defaultTopK = 3
	}
	if contextBudget < 1 {
		contextBudget = 6000
	}
	return &AnswerUseCase{
		embedder:      embedder,
		vectorDB:      vectorDB,
		generator:     generator,
		defaultTopK:   defaultTopK,
		contextBudget: contextBudget,
	}
}

func (uc *AnswerUseCase) Answer(ctx context.Context, question string, topK int, filter domain.SearchFilter) (*domain.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "answer question",
			errors.New("question is empty"))
	}
	if topK < 1 {
		topK = uc.defaultTopK
	}

	queryVector, err := uc.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	retrieved, err := uc.vectorDB.Query(ctx, queryVector, topK, filter)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	if len(retrieved) == 0 {
		return &domain.Answer{Text: NoContextAnswer, NoContext: true}, nil
	}

	contextBlock, included := uc.buildContext(retrieved)

	text, err := uc.generator.GenerateAnswer(ctx, question, contextBlock)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	return &domain.Answer{
		Text:    text,
		Sources: attributions(included),
	}, nil
}

// buildContext concatenates snippets highest-score-first until the
// character budget is spent. At least one snippet is always included,
// truncated if it alone exceeds the budget.
func (uc *AnswerUseCase) buildContext(retrieved []domain.RetrievedChunk) (string, []domain.RetrievedChunk) {
	var (
		builder  strings.Builder
		included []domain.RetrievedChunk
	)

	for i, chunk := range retrieved {
		snippet := formatSnippet(chunk)
		if builder.Len()+len(snippet) > uc.contextBudget {
			if i == 0 {
				builder.WriteString(truncateAtRune(snippet, uc.contextBudget))
				included = append(included, chunk)
			}
			break
		}
		builder.WriteString(snippet)
		included = append(included, chunk)
	}
	return builder.String(), included
}

// truncateAtRune cuts s to at most limit bytes, backing off so a
// multi-byte rune is never split.
func truncateAtRune(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}

func formatSnippet(chunk domain.RetrievedChunk) string {
	return fmt.Sprintf("[source: %s | url: %s]\n%s\n\n", chunk.SourceID, chunk.URL, chunk.Text)
}

// attributions deduplicates (source, url) pairs preserving score order.
func attributions(included []domain.RetrievedChunk) []domain.Attribution {
	seen := make(map[string]struct{}, len(included))
	result := make([]domain.Attribution, 0, len(included))
	for _, chunk := range included {
		key := chunk.SourceID + "|" + chunk.URL
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, domain.Attribution{SourceID: chunk.SourceID, URL: chunk.URL})
	}
	return result
}
