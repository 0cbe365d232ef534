package domain

type SearchFilter struct {
	SourceID string
}

type RetrievedChunk struct {
	ChunkID  string  `json:"chunk_id"`
	SourceID string  `json:"source_id"`
	URL      string  `json:"url"`
	Text     string  `json:"text"`
	Score    float64 `json:"score"`
}

// Attribution is one distinct source that contributed context to an answer.
type Attribution struct {
	SourceID string `json:"source_id"`
	URL      string `json:"url"`
}

type Answer struct {
	Text    string        `json:"text"`
	Sources []Attribution `json:"sources"`
	// NoContext marks answers produced without any retrieved evidence.
	// The generation model is never called in that case.
	NoContext bool `json:"no_context,omitempty"`
}
