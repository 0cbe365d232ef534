package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mvolkov/firmscope/internal/core/domain"
	"github.com/mvolkov/firmscope/internal/infrastructure/resilience"
)

// Client talks to a Qdrant collection over its HTTP API. The collection is
// provisioned out-of-band; EnsureExists only verifies the contract.
type Client struct {
	baseURL    string
	apiKey     string
	collection string
	expectDim  int
	httpClient *http.Client
	executor   *resilience.Executor
}

type Options struct {
	APIKey   string
	Executor *resilience.Executor
	Timeout  time.Duration
}

func New(baseURL, collection string, expectDim int, options Options) *Client {
	if options.Timeout <= 0 {
		options.Timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     options.APIKey,
		collection: collection,
		expectDim:  expectDim,
		httpClient: &http.Client{Timeout: options.Timeout},
		executor:   options.Executor,
	}
}

// EnsureExists verifies the collection exists with the expected dimension
// and cosine distance. It never creates the collection: provisioning is a
// deliberate operator action, and silently creating one with default
// parameters would corrupt the contract.
func (c *Client) EnsureExists(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, fmt.Sprintf("/collections/%s", c.collection), nil)
	if err != nil {
		return fmt.Errorf("create collection info request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant collection info request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return domain.WrapError(domain.ErrIndexMissing, "ensure index",
			fmt.Errorf("collection %q does not exist", c.collection))
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant collection info status: %s", readStatus(resp))
	}

	var info struct {
		Result struct {
			Config struct {
				Params struct {
					Vectors struct {
						Size     int    `json:"size"`
						Distance string `json:"distance"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return fmt.Errorf("decode collection info: %w", err)
	}

	vectors := info.Result.Config.Params.Vectors
	if vectors.Size != c.expectDim {
		return domain.WrapError(domain.ErrIndexMissing, "ensure index",
			fmt.Errorf("collection %q dimension %d, expected %d", c.collection, vectors.Size, c.expectDim))
	}
	if !strings.EqualFold(vectors.Distance, "cosine") {
		return domain.WrapError(domain.ErrIndexMissing, "ensure index",
			fmt.Errorf("collection %q distance %q, expected cosine", c.collection, vectors.Distance))
	}
	return nil
}

// Upsert writes chunk points keyed by their deterministic ids. Re-running
// with the same ids replaces vectors and payloads in place.
func (c *Client) Upsert(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) == 0 {
		return nil
	}
	if len(chunks) != len(vectors) {
		return domain.WrapError(domain.ErrInvalidInput, "upsert",
			fmt.Errorf("chunks/vectors mismatch: %d/%d", len(chunks), len(vectors)))
	}
	for i, vector := range vectors {
		if len(vector) != c.expectDim {
			return domain.WrapError(domain.ErrInvalidInput, "upsert",
				fmt.Errorf("vector %d dimension %d, expected %d", i, len(vector), c.expectDim))
		}
	}

	type point struct {
		ID      string         `json:"id"`
		Vector  []float32      `json:"vector"`
		Payload map[string]any `json:"payload"`
	}

	points := make([]point, 0, len(chunks))
	for i, chunk := range chunks {
		points = append(points, point{
			ID:     chunk.ID,
			Vector: vectors[i],
			Payload: map[string]any{
				"source_id": chunk.SourceID,
				"url":       chunk.URL,
				"ordinal":   chunk.Ordinal,
				"text":      chunk.Text,
			},
		})
	}

	path := fmt.Sprintf("/collections/%s/points?wait=true", c.collection)
	call := func(callCtx context.Context) error {
		return c.doJSON(callCtx, http.MethodPut, path, map[string]any{"points": points}, nil, "upsert")
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "qdrant.upsert", call, classifyQdrantError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return domain.WrapError(domain.ErrIndexWrite, "upsert", err)
	}
	return nil
}

// Query returns up to topK entries by descending cosine similarity. A
// provider error is surfaced as ErrIndexQuery, never as an empty result.
func (c *Client) Query(
	ctx context.Context,
	queryVector []float32,
	topK int,
	filter domain.SearchFilter,
) ([]domain.RetrievedChunk, error) {
	reqBody := map[string]any{
		"vector":       queryVector,
		"limit":        topK,
		"with_payload": true,
	}
	if filter.SourceID != "" {
		reqBody["filter"] = map[string]any{
			"must": []map[string]any{
				{
					"key":   "source_id",
					"match": map[string]any{"value": filter.SourceID},
				},
			},
		}
	}

	var searchResp struct {
		Result []struct {
			ID      string         `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}

	path := fmt.Sprintf("/collections/%s/points/search", c.collection)
	call := func(callCtx context.Context) error {
		return c.doJSON(callCtx, http.MethodPost, path, reqBody, &searchResp, "search")
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "qdrant.search", call, classifyQdrantError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, domain.WrapError(domain.ErrIndexQuery, "search", err)
	}

	out := make([]domain.RetrievedChunk, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		out = append(out, domain.RetrievedChunk{
			ChunkID:  r.ID,
			SourceID: payloadString(r.Payload, "source_id"),
			URL:      payloadString(r.Payload, "url"),
			Text:     payloadString(r.Payload, "text"),
			Score:    r.Score,
		})
	}
	return out, nil
}

// PruneSource deletes a source's points at ordinals >= keep. Positional
// chunk ids mean a shrinking document would otherwise leave stale tail
// entries that keep matching queries.
func (c *Client) PruneSource(ctx context.Context, sourceID string, keep int) error {
	if keep < 0 {
		keep = 0
	}
	reqBody := map[string]any{
		"filter": map[string]any{
			"must": []map[string]any{
				{
					"key":   "source_id",
					"match": map[string]any{"value": sourceID},
				},
				{
					"key":   "ordinal",
					"range": map[string]any{"gte": keep},
				},
			},
		},
	}

	path := fmt.Sprintf("/collections/%s/points/delete?wait=true", c.collection)
	call := func(callCtx context.Context) error {
		return c.doJSON(callCtx, http.MethodPost, path, reqBody, nil, "prune")
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "qdrant.prune", call, classifyQdrantError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return domain.WrapError(domain.ErrIndexWrite, "prune", err)
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload any, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s body: %w", operation, err)
	}

	req, err := c.newRequest(ctx, method, path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return &statusError{Operation: operation, StatusCode: resp.StatusCode, Status: readStatus(resp)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}
	return req, nil
}

func readStatus(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	if msg := strings.TrimSpace(string(body)); msg != "" {
		return resp.Status + ": " + msg
	}
	return resp.Status
}

func payloadString(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
