package safety

import (
	"regexp"
	"strings"

	radix "github.com/armon/go-radix"

	"github.com/CVMHW/roger-74-sub004/roger/conversation"
)

// CrisisDetector runs a layered classification over a single utterance:
// an exact/near-exact phrase pass against a curated high-severity phrase
// set first, then a broader negation-aware heuristic pass at moderate
// severity. Ties across categories resolve to the most severe.
type CrisisDetector struct {
	phrases          *radix.Tree // normalized phrase -> Category
	heuristics       map[Category][]string
	heuristicEnabled bool
}

// NewCrisisDetector creates a detector with the curated default phrase
// set. Additional phrases can be layered on with AddPhrase.
func NewCrisisDetector(heuristicEnabled bool) *CrisisDetector {
	d := &CrisisDetector{
		phrases:          radix.New(),
		heuristics:       defaultHeuristicKeywords(),
		heuristicEnabled: heuristicEnabled,
	}
	for category, phrases := range defaultCrisisPhrases() {
		for _, p := range phrases {
			d.AddPhrase(p, category)
		}
	}
	return d
}

// AddPhrase registers a high-severity phrase for a category.
func (d *CrisisDetector) AddPhrase(phrase string, category Category) {
	normalized := normalize(phrase)
	if normalized == "" {
		return
	}
	// Keep the most severe category when phrase sets overlap.
	if existing, ok := d.phrases.Get(normalized); ok {
		if existing.(Category).MoreSevere(category) {
			return
		}
	}
	d.phrases.Insert(normalized, category)
}

// Assess classifies the utterance. History is consulted only to sustain a
// crisis classification across immediately adjacent turns; the detector
// itself is otherwise stateless.
func (d *CrisisDetector) Assess(utterance string, history *conversation.History) Assessment {
	normalized := normalize(utterance)
	if normalized == "" {
		return Assessment{Category: CategoryNone}
	}

	// Layer 1: exact/near-exact phrase match, high severity.
	if category, phrase, ok := d.matchPhrase(normalized); ok {
		return Assessment{
			IsCrisis:      true,
			Category:      category,
			Severity:      SeverityHigh,
			MatchedPhrase: phrase,
		}
	}

	// Layer 2: broader heuristic pass, negation-aware, moderate severity.
	if d.heuristicEnabled {
		if category, keyword, ok := d.matchHeuristic(normalized); ok {
			return Assessment{
				IsCrisis:      true,
				Category:      category,
				Severity:      SeverityModerate,
				MatchedPhrase: keyword,
			}
		}
	}

	// A crisis disclosed on the immediately preceding user turn keeps the
	// conversation in crisis handling even when the follow-up is short
	// ("yes", "i do"). Biased toward over-triggering.
	if history != nil && len(normalized) <= 12 {
		if prior := history.LastUserTurns(1); len(prior) == 1 {
			if cat := categoryForTag(prior[0].ConcernTag); cat != CategoryNone {
				return Assessment{
					IsCrisis: true,
					Category: cat,
					Severity: SeverityModerate,
				}
			}
		}
	}

	return Assessment{Category: CategoryNone}
}

// matchPhrase scans every token offset of the utterance for a registered
// phrase via longest-prefix lookup in the radix tree. The most severe
// matching category wins.
func (d *CrisisDetector) matchPhrase(normalized string) (Category, string, bool) {
	best := CategoryNone
	bestPhrase := ""
	for _, offset := range tokenOffsets(normalized) {
		suffix := normalized[offset:]
		prefix, value, ok := d.phrases.LongestPrefix(suffix)
		if !ok {
			continue
		}
		// The match must end on a word boundary.
		if len(prefix) < len(suffix) && suffix[len(prefix)] != ' ' {
			continue
		}
		if category := value.(Category); category.MoreSevere(best) {
			best = category
			bestPhrase = prefix
		}
	}
	return best, bestPhrase, best != CategoryNone
}

// matchHeuristic looks for category keywords that are not negated in the
// surrounding clause.
func (d *CrisisDetector) matchHeuristic(normalized string) (Category, string, bool) {
	best := CategoryNone
	bestKeyword := ""
	for category, keywords := range d.heuristics {
		for _, kw := range keywords {
			idx := indexWord(normalized, kw)
			if idx < 0 {
				continue
			}
			if isNegated(normalized, idx) {
				continue
			}
			if category.MoreSevere(best) {
				best = category
				bestKeyword = kw
			}
		}
	}
	return best, bestKeyword, best != CategoryNone
}

var nonWord = regexp.MustCompile(`[^a-z0-9' ]+`)
var multiSpace = regexp.MustCompile(`\s+`)

// normalize lowercases, strips punctuation and collapses whitespace.
func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = nonWord.ReplaceAllString(s, " ")
	return multiSpace.ReplaceAllString(strings.TrimSpace(s), " ")
}

// tokenOffsets returns the byte offset of every token start.
func tokenOffsets(s string) []int {
	offsets := []int{0}
	for i := 0; i < len(s); i++ {
		if s[i] == ' ' && i+1 < len(s) {
			offsets = append(offsets, i+1)
		}
	}
	return offsets
}

// indexWord finds kw in s on word boundaries, returning the byte offset
// or -1.
func indexWord(s, kw string) int {
	start := 0
	for {
		idx := strings.Index(s[start:], kw)
		if idx < 0 {
			return -1
		}
		idx += start
		before := idx == 0 || s[idx-1] == ' '
		afterIdx := idx + len(kw)
		after := afterIdx == len(s) || s[afterIdx] == ' '
		if before && after {
			return idx
		}
		start = idx + 1
		if start >= len(s) {
			return -1
		}
	}
}

// negationMarkers cancel a heuristic keyword hit when found in the same
// clause immediately before it.
var negationMarkers = []string{
	"not", "no", "never", "dont", "don't", "wouldnt", "wouldn't",
	"wont", "won't", "used to", "no longer", "stopped",
}

// isNegated checks the few words preceding the keyword for a negation.
func isNegated(s string, idx int) bool {
	window := s[:idx]
	fields := strings.Fields(window)
	if len(fields) > 4 {
		fields = fields[len(fields)-4:]
	}
	clause := strings.Join(fields, " ")
	for _, neg := range negationMarkers {
		if strings.Contains(clause, neg) {
			return true
		}
	}
	return false
}

// categoryForTag maps a stored concern tag back to its category.
func categoryForTag(tag conversation.ConcernTag) Category {
	switch tag {
	case conversation.ConcernSuicide:
		return CategorySuicide
	case conversation.ConcernSelfHarm:
		return CategorySelfHarm
	case conversation.ConcernAbuse:
		return CategoryAbuse
	case conversation.ConcernMedical:
		return CategoryMedical
	default:
		return CategoryNone
	}
}

// Tag converts a category to the concern tag recorded on the turn.
func (c Category) Tag() conversation.ConcernTag {
	switch c {
	case CategorySuicide:
		return conversation.ConcernSuicide
	case CategorySelfHarm:
		return conversation.ConcernSelfHarm
	case CategoryAbuse:
		return conversation.ConcernAbuse
	case CategoryMedical:
		return conversation.ConcernMedical
	default:
		return conversation.ConcernNone
	}
}

// defaultCrisisPhrases is the curated high-severity phrase set.
func defaultCrisisPhrases() map[Category][]string {
	return map[Category][]string{
		CategorySuicide: {
			"i want to kill myself",
			"i want to die",
			"want to die",
			"i want to end my life",
			"kill myself",
			"end my life",
			"i'm going to kill myself",
			"im going to kill myself",
			"i don't want to be alive",
			"i dont want to be alive",
			"better off dead",
			"suicide",
			"suicidal",
		},
		CategorySelfHarm: {
			"hurt myself",
			"i want to hurt myself",
			"cutting myself",
			"cut myself",
			"harm myself",
			"self harm",
			"burning myself",
		},
		CategoryAbuse: {
			"he hits me",
			"she hits me",
			"my partner hits me",
			"i'm being abused",
			"im being abused",
			"he is hurting me",
			"she is hurting me",
			"afraid to go home",
			"touches me when i don't want",
		},
		CategoryMedical: {
			"chest pain",
			"can't breathe",
			"cant breathe",
			"i think i'm overdosing",
			"i think im overdosing",
			"took too many pills",
			"i'm having a heart attack",
			"im having a heart attack",
		},
	}
}

// defaultHeuristicKeywords powers the broader second pass.
func defaultHeuristicKeywords() map[Category][]string {
	return map[Category][]string{
		CategorySuicide:  {"die", "dead", "ending it", "no reason to live", "disappear forever"},
		CategorySelfHarm: {"cutting", "burn myself", "punish myself"},
		CategoryAbuse:    {"hits", "beats", "threatens me", "afraid of him", "afraid of her"},
		CategoryMedical:  {"overdose", "bleeding badly", "passing out", "seizure"},
	}
}
