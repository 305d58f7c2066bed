package repetition

import (
	"regexp"
	"strings"

	"github.com/CVMHW/roger-74-sub004/roger/config"
)

// Recommendation tells the orchestrator how strongly to vary the reply.
type Recommendation string

const (
	// RecommendSpontaneity nudges the personality stage to raise variation.
	RecommendSpontaneity Recommendation = "increase_spontaneity"
	// RecommendChangeApproach asks for a different framing of the reply.
	RecommendChangeApproach Recommendation = "change_approach"
	// RecommendPerspectiveShift forces full regeneration from templates
	// rather than an incremental edit.
	RecommendPerspectiveShift Recommendation = "forced_perspective_shift"
)

// Analysis is the scored result of a repetition check. Score accumulates
// monotonically across matched signals; 1.0 marks the reply repetitive.
type Analysis struct {
	IsRepetitive    bool
	Score           float64
	Recommendations []Recommendation
}

// weightedPattern is a known formulaic phrase with its score weight.
type weightedPattern struct {
	re     *regexp.Regexp
	phrase string
	weight float64
}

// Detector compares a candidate reply against recent prior replies for
// lexical, structural, and topical repetition.
type Detector struct {
	cfg      config.RepetitionConfig
	patterns []weightedPattern
}

// NewDetector creates a detector with the default formulaic phrase set.
func NewDetector(cfg config.RepetitionConfig) *Detector {
	if cfg.StructureThreshold <= 0 {
		cfg.StructureThreshold = 0.6
	}
	if cfg.QuestionThreshold <= 0 {
		cfg.QuestionThreshold = 0.7
	}
	if cfg.ReplyWindow <= 0 {
		cfg.ReplyWindow = 5
	}
	return &Detector{cfg: cfg, patterns: defaultPatterns()}
}

// defaultPatterns is the known formulaic-phrase inventory.
func defaultPatterns() []weightedPattern {
	entries := []struct {
		expr   string
		weight float64
	}{
		{`(?i)\bi hear (?:you|what you're saying)\b`, 0.5},
		{`(?i)\bthat sounds (?:really |very )?(?:hard|difficult|tough|challenging)\b`, 0.5},
		{`(?i)\bthank you for sharing\b`, 0.6},
		{`(?i)\bit sounds like\b`, 0.4},
		{`(?i)\bhow does that make you feel\b`, 0.7},
		{`(?i)\bi understand\b`, 0.4},
		{`(?i)\bi'm here for you\b`, 0.5},
		{`(?i)\btell me more\b`, 0.4},
	}
	patterns := make([]weightedPattern, len(entries))
	for i, e := range entries {
		patterns[i] = weightedPattern{re: regexp.MustCompile(e.expr), phrase: e.expr, weight: e.weight}
	}
	return patterns
}

// Score runs the three similarity signals and sums them.
func (d *Detector) Score(candidateText string, recentReplies, recentUserTurns []string) Analysis {
	if len(recentReplies) > d.cfg.ReplyWindow {
		recentReplies = recentReplies[len(recentReplies)-d.cfg.ReplyWindow:]
	}

	score := d.scorePhrases(candidateText, recentReplies)
	score += d.scoreStructure(candidateText, recentReplies)
	score += d.scoreQuestions(candidateText, recentReplies)

	analysis := Analysis{Score: score}
	if score >= 1.0 {
		analysis.IsRepetitive = true
		analysis.Recommendations = append(analysis.Recommendations, RecommendSpontaneity)
	}
	if score >= 1.5 {
		analysis.Recommendations = append(analysis.Recommendations, RecommendChangeApproach)
	}
	if score >= 2.0 {
		analysis.Recommendations = append(analysis.Recommendations, RecommendPerspectiveShift)
	}
	return analysis
}

// scorePhrases is signal 1: weighted formulaic phrase hits, doubled when
// the same phrase also appears in a recent reply.
func (d *Detector) scorePhrases(candidate string, recentReplies []string) float64 {
	score := 0.0
	for _, p := range d.patterns {
		if !p.re.MatchString(candidate) {
			continue
		}
		weight := p.weight
		for _, prior := range recentReplies {
			if p.re.MatchString(prior) {
				weight *= 2
				break
			}
		}
		score += weight
	}
	return score
}

// scoreStructure is signal 2: coarse sentence-structure fingerprints
// (first word + length bucket + last two words) compared against recent
// replies.
func (d *Detector) scoreStructure(candidate string, recentReplies []string) float64 {
	candFP := fingerprints(candidate)
	if len(candFP) == 0 {
		return 0
	}
	best := 0.0
	for _, prior := range recentReplies {
		sim := fingerprintSimilarity(candFP, fingerprints(prior))
		if sim > best {
			best = sim
		}
	}
	if best >= d.cfg.StructureThreshold {
		return best
	}
	return 0
}

// scoreQuestions is signal 3: direct question-text similarity against
// questions asked in recent replies.
func (d *Detector) scoreQuestions(candidate string, recentReplies []string) float64 {
	candQuestions := questions(candidate)
	if len(candQuestions) == 0 {
		return 0
	}
	best := 0.0
	for _, prior := range recentReplies {
		for _, pq := range questions(prior) {
			for _, cq := range candQuestions {
				sim := tokenJaccard(cq, pq)
				if sim > best {
					best = sim
				}
			}
		}
	}
	if best >= d.cfg.QuestionThreshold {
		return best
	}
	return 0
}

// fingerprints builds a structure fingerprint per sentence.
func fingerprints(text string) []string {
	var fps []string
	for _, sentence := range splitSentences(text) {
		words := strings.Fields(strings.ToLower(strings.Trim(sentence, ".!?")))
		if len(words) == 0 {
			continue
		}
		first := words[0]
		bucket := len(words) / 5 // 0-4, 5-9, 10-14 word buckets
		tail := words[len(words)-1]
		if len(words) > 1 {
			tail = words[len(words)-2] + " " + tail
		}
		fps = append(fps, first+"|"+strings.Repeat("#", bucket)+"|"+tail)
	}
	return fps
}

// fingerprintSimilarity is the fraction of candidate fingerprints that
// also occur in the prior reply.
func fingerprintSimilarity(cand, prior []string) float64 {
	if len(cand) == 0 || len(prior) == 0 {
		return 0
	}
	priorSet := map[string]bool{}
	for _, fp := range prior {
		priorSet[fp] = true
	}
	matched := 0
	for _, fp := range cand {
		if priorSet[fp] {
			matched++
		}
	}
	return float64(matched) / float64(len(cand))
}

// questions extracts the question sentences of a reply.
func questions(text string) []string {
	var qs []string
	for _, sentence := range splitSentences(text) {
		if strings.HasSuffix(sentence, "?") {
			qs = append(qs, strings.ToLower(sentence))
		}
	}
	return qs
}

// tokenJaccard is token-set Jaccard similarity between two questions.
func tokenJaccard(a, b string) float64 {
	as := tokenSet(a)
	bs := tokenSet(b)
	if len(as) == 0 || len(bs) == 0 {
		return 0
	}
	inter := 0
	for t := range as {
		if bs[t] {
			inter++
		}
	}
	union := len(as) + len(bs) - inter
	return float64(inter) / float64(union)
}

var tokenPattern = regexp.MustCompile(`[a-z']+`)

func tokenSet(s string) map[string]bool {
	set := map[string]bool{}
	for _, t := range tokenPattern.FindAllString(strings.ToLower(s), -1) {
		set[t] = true
	}
	return set
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
