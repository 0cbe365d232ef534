package openai

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/mvolkov/firmscope/internal/core/domain"
	"github.com/mvolkov/firmscope/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	apiKey     string
	embedModel string
	genModel   string
	embedDim   int
	batchSize  int
	httpClient *http.Client
	executor   *resilience.Executor
}

type Options struct {
	EmbedDim  int
	BatchSize int
	Executor  *resilience.Executor
	Timeout   time.Duration
}

func New(baseURL, apiKey, embedModel, genModel string, options Options) *Client {
	if options.EmbedDim <= 0 {
		options.EmbedDim = 1536
	}
	if options.BatchSize <= 0 {
		options.BatchSize = 64
	}
	if options.Timeout <= 0 {
		options.Timeout = 120 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		embedModel: embedModel,
		genModel:   genModel,
		embedDim:   options.EmbedDim,
		batchSize:  options.BatchSize,
		httpClient: &http.Client{Timeout: options.Timeout},
		executor:   options.Executor,
	}
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Dimension() int {
	return e.client.embedDim
}

// Embed vectorizes texts in batches. The provider must return one vector of
// the configured dimension per input; anything else is a hard failure.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.client.batchSize {
		end := start + e.client.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		vectors, err := e.client.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embed batch [%d:%d]: %w", start, end, err)
		}
		out = append(out, vectors...)
	}
	return out, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, domain.WrapError(domain.ErrEmbedding, "embed query", fmt.Errorf("empty embedding result"))
	}
	return vectors[0], nil
}

func (c *Client) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	request := map[string]any{
		"model": c.embedModel,
		"input": texts,
	}

	var response struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}

	call := func(callCtx context.Context) error {
		return c.postJSON(callCtx, "/v1/embeddings", request, &response, "embed")
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "openai.embed", call, classifyProviderError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, wrapEmbedError(err)
	}

	if len(response.Data) != len(texts) {
		return nil, domain.WrapError(domain.ErrEmbedding, "embed",
			fmt.Errorf("vectors/inputs mismatch: %d/%d", len(response.Data), len(texts)))
	}

	sort.Slice(response.Data, func(i, j int) bool {
		return response.Data[i].Index < response.Data[j].Index
	})

	out := make([][]float32, 0, len(response.Data))
	for _, item := range response.Data {
		if len(item.Embedding) != c.embedDim {
			return nil, domain.WrapError(domain.ErrEmbedding, "embed",
				fmt.Errorf("dimension mismatch: got %d, want %d", len(item.Embedding), c.embedDim))
		}
		out = append(out, item.Embedding)
	}
	return out, nil
}

type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) GenerateAnswer(ctx context.Context, question, contextBlock string) (string, error) {
	request := map[string]any{
		"model":       g.client.genModel,
		"temperature": 0,
		"messages": []map[string]string{
			{"role": "system", "content": answerSystemPrompt},
			{"role": "user", "content": buildAnswerPrompt(question, contextBlock)},
		},
	}

	var response struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}

	call := func(callCtx context.Context) error {
		return g.client.postJSON(callCtx, "/v1/chat/completions", request, &response, "generate")
	}

	var err error
	if g.client.executor != nil {
		err = g.client.executor.Execute(ctx, "openai.generate", call, classifyProviderError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return "", err
	}

	if len(response.Choices) == 0 {
		return "", fmt.Errorf("generate: empty choices")
	}
	return strings.TrimSpace(response.Choices[0].Message.Content), nil
}
