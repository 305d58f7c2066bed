package retrieval

import (
	"context"
	"errors"

	"gonum.org/v1/gonum/floats"
)

// Embedder turns text into dense vectors for the embedding retrieval mode.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
	Dimension() int
	Close() error
}

// ErrEmbedderUnavailable means no embedding backend can be constructed on
// this runtime; the service stays in (or falls back to) lexical mode.
var ErrEmbedderUnavailable = errors.New("embedding backend unavailable")

// cosineSimilarity returns the cosine of the angle between two vectors,
// or 0 for degenerate input.
func cosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	na := floats.Norm(a, 2)
	nb := floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	return floats.Dot(a, b) / (na * nb)
}

// cosineConfidence maps cosine similarity [-1,1] onto a [0,1] confidence.
func cosineConfidence(cos float64) float64 {
	c := (cos + 1) / 2
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
