package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/CVMHW/roger-74-sub004/roger/config"
	"github.com/CVMHW/roger-74-sub004/roger/conversation"
	ports "github.com/CVMHW/roger-74-sub004/roger/pipeline/ports"
)

const initCooldownKey = "embedder_init"

// Service is the retrieval-augmentation engine. It is constructed once
// per process and injected into the pipeline; all initialization state
// lives here rather than in module-global flags. Two operating modes:
// embedding-backed cosine search, or a lexical fallback at fixed low
// confidence when no embedding backend is available.
type Service struct {
	cfg      config.RetrievalConfig
	tracer   ports.Tracer
	cache    ports.Cache
	cooldown ports.CooldownLimiter

	mu                sync.Mutex
	mode              Mode
	initInFlight      bool
	embedder          Embedder
	corpus            *Corpus
	lexical           *LexicalIndex
	passageEmbeddings [][]float64
}

// ServiceConfig holds dependencies for constructing the service.
type ServiceConfig struct {
	Config   config.RetrievalConfig
	Corpus   *Corpus
	Tracer   ports.Tracer
	Cache    ports.Cache
	Cooldown ports.CooldownLimiter

	// Optional override for testing/customization.
	Embedder Embedder
}

// NewService creates a retrieval service over a corpus snapshot. It
// starts in fallback mode; TryEnableEmbedding switches modes when an
// embedding backend can be constructed.
func NewService(ctx context.Context, cfg ServiceConfig) (*Service, error) {
	if cfg.Corpus == nil || len(cfg.Corpus.Passages) == 0 {
		return nil, fmt.Errorf("retrieval corpus is required")
	}
	if cfg.Tracer == nil {
		cfg.Tracer = ports.NopTracer{}
	}

	s := &Service{
		cfg:      cfg.Config,
		tracer:   cfg.Tracer,
		cache:    cfg.Cache,
		cooldown: cfg.Cooldown,
		mode:     ModeFallback,
		corpus:   cfg.Corpus,
		lexical:  BuildLexicalIndex(cfg.Corpus),
	}

	if cfg.Embedder != nil {
		if err := s.adoptEmbedder(ctx, cfg.Embedder); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Mode returns the current operating mode.
func (s *Service) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// TryEnableEmbedding attempts to switch from fallback to embedding mode.
// Idempotent: already-embedding is a no-op. Re-attempts are single-flight
// and rate-limited by the cooldown window so a broken backend is not
// hammered on every turn.
func (s *Service) TryEnableEmbedding(ctx context.Context) error {
	s.mu.Lock()
	if s.mode == ModeEmbedding {
		s.mu.Unlock()
		return nil
	}
	if s.initInFlight {
		s.mu.Unlock()
		return fmt.Errorf("embedder initialization already in flight")
	}
	if s.cooldown != nil {
		release, err := s.cooldown.Acquire(ctx, initCooldownKey)
		if err != nil {
			s.mu.Unlock()
			return fmt.Errorf("embedder init gated: %w", err)
		}
		defer release()
	}
	s.initInFlight = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.initInFlight = false
		s.mu.Unlock()
	}()

	embedder, err := newEmbedder(s.cfg)
	if err != nil {
		s.tracer.Event(ctx, "embedder_init_failed", map[string]any{"error": err.Error()})
		return err
	}
	return s.adoptEmbedder(ctx, embedder)
}

// adoptEmbedder embeds the corpus and flips the service into embedding mode.
func (s *Service) adoptEmbedder(ctx context.Context, embedder Embedder) error {
	texts := make([]string, len(s.corpus.Passages))
	for i, p := range s.corpus.Passages {
		texts[i] = p.Text
	}
	embeddings, err := embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed corpus: %w", err)
	}
	if len(embeddings) != len(texts) {
		return fmt.Errorf("embedder returned %d vectors for %d passages", len(embeddings), len(texts))
	}

	s.mu.Lock()
	s.embedder = embedder
	s.passageEmbeddings = embeddings
	s.mode = ModeEmbedding
	s.mu.Unlock()

	s.tracer.Event(ctx, "embedding_mode_enabled", map[string]any{"passages": len(texts)})
	return nil
}

// Retrieve converts the utterance into a query (expanded with terms from
// recent user turns) and returns the best candidate snippet with a
// confidence score. The wait is bounded: if the embedding path exceeds
// the latency budget the lexical fallback answers instead.
func (s *Service) Retrieve(ctx context.Context, query string, history *conversation.History) (Result, error) {
	if strings.TrimSpace(query) == "" {
		return Result{}, fmt.Errorf("query cannot be empty")
	}

	expanded := s.expandQuery(query, history)
	cacheKey := "retrieve:" + normalizeQuery(expanded)

	if s.cache != nil {
		if data, ok := s.cache.Get(ctx, cacheKey); ok {
			var cached Result
			if err := json.Unmarshal(data, &cached); err == nil {
				s.tracer.Event(ctx, "retrieval_cache_hit", map[string]any{"key": cacheKey})
				return cached, nil
			}
		}
	}

	result, err := s.retrieveWithBudget(ctx, expanded)
	if err != nil {
		return Result{}, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(result); err == nil {
			s.cache.Set(ctx, cacheKey, data, s.cfg.CacheTTLSeconds)
		}
	}
	return result, nil
}

// retrieveWithBudget runs the mode-appropriate search under the latency
// budget, degrading from embedding to lexical on timeout.
func (s *Service) retrieveWithBudget(ctx context.Context, query string) (Result, error) {
	s.mu.Lock()
	mode := s.mode
	s.mu.Unlock()

	if mode != ModeEmbedding {
		return s.lexicalResult(query), nil
	}

	budget := s.cfg.MaxLatency
	if budget <= 0 {
		return s.embeddingResult(ctx, query)
	}

	budgetCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	type outcome struct {
		result Result
		err    error
	}
	ch := make(chan outcome, 1)
	go func() {
		r, err := s.embeddingResult(budgetCtx, query)
		ch <- outcome{result: r, err: err}
	}()

	select {
	case out := <-ch:
		if out.err != nil {
			s.tracer.Event(ctx, "embedding_retrieval_failed", map[string]any{"error": out.err.Error()})
			return s.lexicalResult(query), nil
		}
		return out.result, nil
	case <-budgetCtx.Done():
		s.tracer.Event(ctx, "retrieval_budget_exceeded", map[string]any{"budget": budget.String()})
		return s.lexicalResult(query), nil
	}
}

// embeddingResult answers by cosine similarity over passage embeddings.
func (s *Service) embeddingResult(ctx context.Context, query string) (Result, error) {
	s.mu.Lock()
	embedder := s.embedder
	embeddings := s.passageEmbeddings
	s.mu.Unlock()

	vectors, err := embedder.Embed(ctx, []string{query})
	if err != nil || len(vectors) != 1 {
		return Result{}, fmt.Errorf("query embedding failed: %w", err)
	}
	queryVec := vectors[0]

	bestRow := -1
	bestCos := -2.0
	for row, vec := range embeddings {
		cos := cosineSimilarity(queryVec, vec)
		if cos > bestCos {
			bestCos = cos
			bestRow = row
		}
	}
	if bestRow < 0 {
		return Result{}, fmt.Errorf("no passages to search")
	}

	p := s.corpus.Passages[bestRow]
	return Result{Content: p.Text, Confidence: cosineConfidence(bestCos), SourceID: p.ID}, nil
}

// lexicalResult answers from the inverted index at fixed low confidence.
func (s *Service) lexicalResult(query string) Result {
	hits := s.lexical.Search(query, s.cfg.K)
	if len(hits) == 0 {
		return Result{Confidence: 0}
	}
	best := hits[0]
	best.Confidence = s.cfg.FallbackConfidence
	return best
}

// expandQuery appends topical terms from the two most recent user turns
// so retrieval sees conversational context, not just the utterance.
func (s *Service) expandQuery(query string, history *conversation.History) string {
	if history == nil {
		return query
	}
	var extra []string
	for _, turn := range history.LastUserTurns(2) {
		tokens := indexTokens(turn.Text)
		if len(tokens) > 6 {
			tokens = tokens[:6]
		}
		extra = append(extra, tokens...)
	}
	if len(extra) == 0 {
		return query
	}
	return query + " " + strings.Join(extra, " ")
}

// Usable reports whether a result clears the direct-insertion threshold.
func (s *Service) Usable(r Result) bool {
	return r.Content != "" && r.Confidence >= s.cfg.ConfidenceThreshold
}

// Integrate inserts retrieved content into a draft. Insertion point is
// chosen by draft length: append when the draft is at most one sentence,
// otherwise insert at roughly the two-thirds position.
func Integrate(draft, content string) string {
	content = strings.TrimSpace(content)
	if content == "" {
		return draft
	}
	sentences := splitSentences(draft)
	if len(sentences) <= 1 {
		return strings.TrimSpace(draft) + " " + content
	}

	insertAt := (len(sentences)*2 + 2) / 3
	if insertAt >= len(sentences) {
		insertAt = len(sentences) - 1
	}
	out := make([]string, 0, len(sentences)+1)
	out = append(out, sentences[:insertAt]...)
	out = append(out, content)
	out = append(out, sentences[insertAt:]...)
	return strings.Join(out, " ")
}

// Rerank is the fallback augmentation path: instead of inserting
// low-confidence content, it boosts topic overlap between the candidate
// and the query by echoing the query's salient term when the candidate
// never engages with it.
func (s *Service) Rerank(candidateText, query string) string {
	queryTokens := indexTokens(query)
	if len(queryTokens) == 0 {
		return candidateText
	}

	candidateLower := strings.ToLower(candidateText)
	for _, token := range queryTokens {
		if strings.Contains(candidateLower, token) {
			return candidateText
		}
	}

	salient := salientTerm(queryTokens)
	if salient == "" {
		return candidateText
	}
	return strings.TrimSpace(candidateText) + fmt.Sprintf(" Staying with %s for a moment feels important.", salient)
}

// salientTerm picks the longest query token as the anchor term.
func salientTerm(tokens []string) string {
	best := ""
	for _, t := range tokens {
		if len(t) > len(best) {
			best = t
		}
	}
	if len(best) < 4 {
		return ""
	}
	return best
}

var sentenceEnd = regexp.MustCompile(`([.!?]+)\s+`)

// splitSentences splits a draft into sentences, keeping terminators.
func splitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	marked := sentenceEnd.ReplaceAllString(text, "$1\x00")
	parts := strings.Split(marked, "\x00")
	sentences := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			sentences = append(sentences, p)
		}
	}
	return sentences
}

var querySpace = regexp.MustCompile(`\s+`)

func normalizeQuery(q string) string {
	return querySpace.ReplaceAllString(strings.ToLower(strings.TrimSpace(q)), " ")
}
