package consistency

import (
	"regexp"
	"strings"

	"github.com/CVMHW/roger-74-sub004/roger/conversation"
	"github.com/CVMHW/roger-74-sub004/roger/memory"
)

// Finding is the result of a consistency check.
type Finding struct {
	IsHallucination bool
	// Corrected is the minimally-edited candidate. When no correction is
	// computable the original text is returned unmodified: this stage
	// fails open, never closed.
	Corrected string
}

// Guard flags claims in a candidate reply that assert facts about the
// user not present anywhere in history, or that contradict the derived
// memory record. Corrections are local: the offending clause is softened
// or removed, never the whole reply.
type Guard struct {
	store *memory.Store
}

// NewGuard creates a guard backed by the given memory store.
func NewGuard(store *memory.Store) *Guard {
	return &Guard{store: store}
}

// claimPatterns match assertions about the user. Group 1 captures the
// asserted content whose support is checked against history.
var claimPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)you (?:said|told me|mentioned)(?: that)? ([^.!?]+)`),
	regexp.MustCompile(`(?i)you(?:'re| are) (?:clearly |obviously )?(?:a |an )?([^.!?,]+)`),
	regexp.MustCompile(`(?i)your ([a-z]+ ?[a-z]*) (?:situation|problem|issue|struggles?)`),
	regexp.MustCompile(`(?i)you (?:always|never|often) ([^.!?]+)`),
}

// softenerReplacements rewrite an assertive lead-in to a tentative one.
var softenerReplacements = []struct {
	pattern     *regexp.Regexp
	replacement string
}{
	{regexp.MustCompile(`(?i)\byou said(?: that)?\b`), "it sounds like"},
	{regexp.MustCompile(`(?i)\byou told me(?: that)?\b`), "it sounds like"},
	{regexp.MustCompile(`(?i)\byou mentioned(?: that)?\b`), "it seems"},
	{regexp.MustCompile(`(?i)\byou always\b`), "sometimes you"},
	{regexp.MustCompile(`(?i)\byou never\b`), "maybe you don't"},
}

// Check inspects the candidate against the utterance and history.
func (g *Guard) Check(candidateText, utterance string, history *conversation.History) Finding {
	if strings.TrimSpace(candidateText) == "" {
		return Finding{Corrected: candidateText}
	}

	support := g.buildSupport(utterance, history)

	sentences := splitSentences(candidateText)
	var kept []string
	flagged := false

	for _, sentence := range sentences {
		claim, ok := extractClaim(sentence)
		if !ok || supported(claim, support) {
			kept = append(kept, sentence)
			continue
		}

		flagged = true
		softened, changed := soften(sentence)
		if changed {
			kept = append(kept, softened)
		}
		// An unsupported claim with no computable softening is dropped,
		// unless dropping would empty the reply.
	}

	if !flagged {
		return Finding{Corrected: candidateText}
	}
	if len(kept) == 0 {
		// Never produce an empty reply; fail open with the original.
		return Finding{IsHallucination: true, Corrected: candidateText}
	}
	return Finding{IsHallucination: true, Corrected: strings.Join(kept, " ")}
}

// buildSupport collects every word the conversation actually contains,
// plus derived topics and emotions from the memory record.
func (g *Guard) buildSupport(utterance string, history *conversation.History) map[string]bool {
	support := map[string]bool{}
	addWords(support, utterance)
	if history != nil {
		for _, turn := range history.Turns() {
			addWords(support, turn.Text)
		}
	}
	if g.store != nil && history != nil {
		record := g.store.Read(history)
		for _, topic := range record.DominantTopics {
			support[topic] = true
		}
		for emotion := range record.TrackedEmotions {
			support[emotion] = true
		}
	}
	return support
}

// extractClaim pulls the asserted content from a sentence, if any.
func extractClaim(sentence string) (string, bool) {
	for _, pattern := range claimPatterns {
		if m := pattern.FindStringSubmatch(sentence); len(m) > 1 {
			return m[1], true
		}
	}
	return "", false
}

// supported reports whether enough of the claim's content words appear in
// the conversation. Short function words are ignored; at least half of
// the remaining words must be grounded.
func supported(claim string, support map[string]bool) bool {
	words := contentWords(claim)
	if len(words) == 0 {
		return true
	}
	grounded := 0
	for _, w := range words {
		if support[w] {
			grounded++
		}
	}
	return grounded*2 >= len(words)
}

// soften rewrites an assertive lead-in to a tentative one.
func soften(sentence string) (string, bool) {
	for _, s := range softenerReplacements {
		if s.pattern.MatchString(sentence) {
			return s.pattern.ReplaceAllString(sentence, s.replacement), true
		}
	}
	return sentence, false
}

var wordSplit = regexp.MustCompile(`[^a-z']+`)

var functionWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "that": true,
	"this": true, "is": true, "was": true, "are": true, "were": true, "be": true,
	"being": true, "been": true, "feel": true, "feeling": true, "really": true,
	"very": true, "so": true, "to": true, "of": true, "in": true, "with": true,
	"about": true, "it": true, "you": true, "your": true, "for": true,
}

func contentWords(text string) []string {
	raw := wordSplit.Split(strings.ToLower(text), -1)
	var words []string
	for _, w := range raw {
		w = strings.Trim(w, "'")
		if len(w) < 3 || functionWords[w] {
			continue
		}
		words = append(words, w)
	}
	return words
}

func addWords(support map[string]bool, text string) {
	for _, w := range contentWords(text) {
		support[w] = true
	}
}

var sentenceEnd = regexp.MustCompile(`([.!?]+)\s+`)

func splitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	marked := sentenceEnd.ReplaceAllString(text, "$1\x00")
	parts := strings.Split(marked, "\x00")
	var sentences []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			sentences = append(sentences, p)
		}
	}
	return sentences
}
