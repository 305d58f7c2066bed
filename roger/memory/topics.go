package memory

import (
	"regexp"
	"strings"

	radix "github.com/armon/go-radix"
)

// topicLexicon maps surface keywords to the canonical topic they track.
// Categories mirror the concerns a support conversation actually returns
// to: work, relationships, health, money, loss. Tokens are matched by
// prefix so inflected mentions ("interviews", "working") still count.
var topicLexicon = map[string]string{
	"job": "job", "work": "job", "fired": "job", "career": "job",
	"boss": "job", "laid": "job", "unemployed": "job", "interview": "job",

	"family": "family", "mother": "family", "father": "family", "mom": "family",
	"dad": "family", "sister": "family", "brother": "family", "parents": "family",

	"partner": "relationship", "girlfriend": "relationship", "boyfriend": "relationship",
	"wife": "relationship", "husband": "relationship", "breakup": "relationship",
	"divorce": "relationship", "dating": "relationship",

	"health": "health", "doctor": "health", "sick": "health", "pain": "health",
	"sleep": "health", "insomnia": "health", "therapy": "health", "medication": "health",

	"money": "money", "rent": "money", "debt": "money", "bills": "money",
	"afford": "money", "paycheck": "money",

	"school": "school", "college": "school", "exam": "school", "grades": "school",

	"died": "loss", "funeral": "loss", "grief": "loss", "miscarriage": "loss",
	"passed": "loss",
}

// bigramTopics catches multiword mentions a single-token pass misses.
var bigramTopics = map[string]string{
	"lost my job":   "job",
	"losing a job":  "job",
	"losing my job": "job",
	"laid off":      "job",
	"broke up":      "relationship",
	"passed away":   "loss",
}

// emotionLexicon maps emotion words to the canonical emotion tracked in
// the memory record.
var emotionLexicon = map[string]string{
	"sad": "sadness", "crying": "sadness", "down": "sadness", "grief": "sadness",
	"angry": "anger", "furious": "anger", "mad": "anger", "frustrated": "anger",
	"anxious": "anxiety", "worried": "anxiety", "nervous": "anxiety", "panic": "anxiety",
	"scared": "fear", "afraid": "fear", "terrified": "fear",
	"lonely": "loneliness", "alone": "loneliness", "isolated": "loneliness",
	"hopeless": "hopelessness", "stuck": "hopelessness", "overwhelmed": "overwhelm",
	"ashamed": "shame", "embarrassed": "shame", "guilty": "shame",
}

// topicTree indexes the lexicon for longest-prefix lookup.
var topicTree = func() *radix.Tree {
	tree := radix.New()
	for keyword, topic := range topicLexicon {
		tree.Insert(keyword, topic)
	}
	return tree
}()

// inflectionSuffixes bound prefix matches to plain inflections, so "mad"
// never claims "made".
var inflectionSuffixes = map[string]bool{
	"": true, "s": true, "es": true, "d": true, "ed": true, "ing": true,
}

// lookupTopic resolves a token to its canonical topic. A lexicon keyword
// matches as a prefix when the leftover is an inflection suffix.
func lookupTopic(token string) (string, bool) {
	keyword, topic, ok := topicTree.LongestPrefix(token)
	if !ok || !inflectionSuffixes[token[len(keyword):]] {
		return "", false
	}
	return topic.(string), true
}

var tokenSplit = regexp.MustCompile(`[^a-z']+`)

// tokenize lowercases and splits the text into word tokens.
func tokenize(text string) []string {
	lower := strings.ToLower(text)
	raw := tokenSplit.Split(lower, -1)
	tokens := make([]string, 0, len(raw))
	for _, t := range raw {
		t = strings.Trim(t, "'")
		if t == "" {
			continue
		}
		tokens = append(tokens, t)
	}
	return tokens
}

// extractTopics returns the canonical topics mentioned in the text.
func extractTopics(text string) []string {
	lower := strings.ToLower(text)
	seen := map[string]bool{}
	var topics []string

	for phrase, topic := range bigramTopics {
		if strings.Contains(lower, phrase) && !seen[topic] {
			seen[topic] = true
			topics = append(topics, topic)
		}
	}
	for _, token := range tokenize(text) {
		topic, ok := lookupTopic(token)
		if !ok || seen[topic] {
			continue
		}
		seen[topic] = true
		topics = append(topics, topic)
	}
	return topics
}

// extractEmotions returns the canonical emotions named in the text.
func extractEmotions(text string) []string {
	seen := map[string]bool{}
	var emotions []string
	for _, token := range tokenize(text) {
		emotion, ok := emotionLexicon[token]
		if !ok || seen[emotion] {
			continue
		}
		seen[emotion] = true
		emotions = append(emotions, emotion)
	}
	return emotions
}
