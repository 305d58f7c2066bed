package retrieval

import (
	"context"
	"fmt"

	"github.com/fsnotify/fsnotify"
)

// ReloadCorpus swaps in a new corpus snapshot: the lexical index is
// rebuilt and, in embedding mode, the passages are re-embedded. A failed
// swap leaves the previous snapshot live.
func (s *Service) ReloadCorpus(ctx context.Context, corpus *Corpus) error {
	if corpus == nil || len(corpus.Passages) == 0 {
		return fmt.Errorf("refusing to swap in an empty corpus")
	}

	lexical := BuildLexicalIndex(corpus)

	s.mu.Lock()
	mode := s.mode
	embedder := s.embedder
	s.mu.Unlock()

	var embeddings [][]float64
	if mode == ModeEmbedding {
		texts := make([]string, len(corpus.Passages))
		for i, p := range corpus.Passages {
			texts[i] = p.Text
		}
		var err error
		embeddings, err = embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to embed reloaded corpus: %w", err)
		}
	}

	s.mu.Lock()
	s.corpus = corpus
	s.lexical = lexical
	if mode == ModeEmbedding {
		s.passageEmbeddings = embeddings
	}
	s.mu.Unlock()

	s.tracer.Event(ctx, "corpus_reloaded", map[string]any{"passages": len(corpus.Passages)})
	return nil
}

// WatchCorpus hot-reloads the corpus file on change until ctx is
// cancelled. Invalid updates are rejected and the last good snapshot
// stays live; the external content collaborator can ship fixes without a
// restart.
func (s *Service) WatchCorpus(ctx context.Context, path string, validate bool) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create corpus watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch corpus file: %w", err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				corpus, err := LoadCorpus(path, validate)
				if err != nil {
					s.tracer.Event(ctx, "corpus_reload_rejected", map[string]any{"error": err.Error()})
					continue
				}
				if err := s.ReloadCorpus(ctx, corpus); err != nil {
					s.tracer.Event(ctx, "corpus_reload_failed", map[string]any{"error": err.Error()})
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.tracer.Event(ctx, "corpus_watch_error", map[string]any{"error": err.Error()})
			}
		}
	}()
	return nil
}
