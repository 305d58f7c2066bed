//go:build !hugot_embed
// +build !hugot_embed

package retrieval

import (
	"github.com/CVMHW/roger-74-sub004/roger/config"
)

// newEmbedder is disabled when not building with hugot_embed; the
// service stays in lexical fallback mode.
func newEmbedder(cfg config.RetrievalConfig) (Embedder, error) {
	return nil, ErrEmbedderUnavailable
}
