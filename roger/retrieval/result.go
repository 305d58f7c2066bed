package retrieval

// Result is a retrieved snippet with a confidence score. Confidence below
// the configured threshold invalidates the result for direct insertion
// and forces the rerank fallback.
type Result struct {
	Content    string  `json:"content"`
	Confidence float64 `json:"confidence"` // [0,1]
	SourceID   string  `json:"source_id"`
}

// Mode identifies which retrieval path produced a result.
type Mode string

const (
	// ModeEmbedding means the embedding backend is initialized and queries
	// are answered by cosine similarity over passage embeddings.
	ModeEmbedding Mode = "embedding"
	// ModeFallback means no embedding model is available and queries are
	// answered by the lexical index at a fixed low confidence.
	ModeFallback Mode = "fallback"
)
