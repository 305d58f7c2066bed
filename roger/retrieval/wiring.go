package retrieval

import (
	"context"
	"time"

	"github.com/CVMHW/roger-74-sub004/roger/config"
	"github.com/CVMHW/roger-74-sub004/roger/pipeline/adapters"
	ports "github.com/CVMHW/roger-74-sub004/roger/pipeline/ports"
)

// NewServiceFromConfig builds a service from file-backed configuration:
// the corpus is loaded (and optionally watched) from cfg.CorpusPath,
// retrieval results are memoized in an LRU cache, and embedder
// re-initialization is gated by a token-bucket cooldown.
func NewServiceFromConfig(ctx context.Context, cfg config.RetrievalConfig, tracer ports.Tracer) (*Service, error) {
	corpus, err := LoadCorpus(cfg.CorpusPath, cfg.SchemaValidate)
	if err != nil {
		return nil, err
	}

	capacity := cfg.CacheCapacity
	if capacity <= 0 {
		capacity = 1000
	}
	cooldown := cfg.InitCooldown
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}

	svc, err := NewService(ctx, ServiceConfig{
		Config:   cfg,
		Corpus:   corpus,
		Tracer:   tracer,
		Cache:    adapters.NewLRUCache(capacity),
		Cooldown: adapters.NewTokenBucket(1, cooldown),
	})
	if err != nil {
		return nil, err
	}

	if cfg.WatchCorpus {
		if err := svc.WatchCorpus(ctx, cfg.CorpusPath, cfg.SchemaValidate); err != nil {
			return nil, err
		}
	}
	return svc, nil
}
