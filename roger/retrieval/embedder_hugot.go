//go:build hugot_embed
// +build hugot_embed

package retrieval

// Build-tagged ONNX embedding support. When building with -tags
// hugot_embed, the service can leave fallback mode and answer queries
// with real sentence embeddings.

import (
	"context"
	"fmt"

	"github.com/knights-analytics/hugot"

	"github.com/CVMHW/roger-74-sub004/roger/config"
)

// hugotEmbedder wraps a hugot feature-extraction pipeline.
type hugotEmbedder struct {
	session  *hugot.Session
	pipeline *hugot.FeatureExtractionPipeline
	dims     int
}

// newEmbedder constructs the ONNX-backed embedder.
func newEmbedder(cfg config.RetrievalConfig) (Embedder, error) {
	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create hugot session: %w", err)
	}

	pipelineConfig := hugot.FeatureExtractionConfig{
		ModelPath: cfg.EmbeddingModelPath,
		Name:      "roger-embedder",
	}
	pipeline, err := hugot.NewPipeline(session, pipelineConfig)
	if err != nil {
		session.Destroy()
		return nil, fmt.Errorf("failed to create embedding pipeline: %w", err)
	}

	return &hugotEmbedder{session: session, pipeline: pipeline, dims: cfg.EmbeddingDims}, nil
}

// Embed generates embeddings for a batch of texts.
func (e *hugotEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	output, err := e.pipeline.RunPipeline(texts)
	if err != nil {
		return nil, fmt.Errorf("embedding inference failed: %w", err)
	}

	result := make([][]float64, len(output.Embeddings))
	for i, emb := range output.Embeddings {
		vec := make([]float64, len(emb))
		for j, v := range emb {
			vec[j] = float64(v)
		}
		result[i] = vec
	}
	return result, nil
}

// Dimension returns the embedding dimension.
func (e *hugotEmbedder) Dimension() int {
	return e.dims
}

// Close releases the ONNX session.
func (e *hugotEmbedder) Close() error {
	return e.session.Destroy()
}
