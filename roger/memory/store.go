package memory

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/CVMHW/roger-74-sub004/roger/config"
	"github.com/CVMHW/roger-74-sub004/roger/conversation"
)

// Record is the derived conversational memory for a session. It is
// recomputable from history at any time; history is the source of truth
// and a cached Record must never diverge from it.
type Record struct {
	// DominantTopics is the full ranked topic list, most dominant first.
	// Older mentions decay in rank but are never discarded, so any earlier
	// stated concern remains recallable.
	DominantTopics []string
	// TrackedEmotions is the set of emotions named anywhere in history.
	TrackedEmotions map[string]bool
	// TurnCount is the number of user turns in history.
	TurnCount int
}

// HasTopic reports whether the topic was ever raised.
func (r Record) HasTopic(topic string) bool {
	for _, t := range r.DominantTopics {
		if t == topic {
			return true
		}
	}
	return false
}

// Store derives and enforces conversational memory. Read is a pure
// function of history: identical histories produce identical records.
type Store struct {
	cfg config.MemoryConfig
}

// NewStore creates a memory store.
func NewStore(cfg config.MemoryConfig) *Store {
	if cfg.TopicWindow <= 0 {
		cfg.TopicWindow = 4
	}
	if cfg.RecencyDecay <= 0 || cfg.RecencyDecay >= 1 {
		cfg.RecencyDecay = 0.85
	}
	return &Store{cfg: cfg}
}

// Read derives the memory record from history. Topic rank is a
// recency-weighted sum: a mention on the most recent user turn scores
// 1.0, each turn further back multiplies by the decay factor. Mentions
// inside the topic window get an additional dominance boost.
func (s *Store) Read(history *conversation.History) Record {
	record := Record{TrackedEmotions: map[string]bool{}}
	if history == nil {
		return record
	}

	userTurns := history.LastK(history.Len(), func(t conversation.Turn) bool {
		return t.Speaker == conversation.SpeakerUser
	})
	record.TurnCount = len(userTurns)

	scores := map[string]float64{}
	for i, turn := range userTurns {
		// age 0 is the most recent user turn.
		age := len(userTurns) - 1 - i
		weight := math.Pow(s.cfg.RecencyDecay, float64(age))
		if age < s.cfg.TopicWindow {
			weight *= 2
		}
		for _, topic := range extractTopics(turn.Text) {
			scores[topic] += weight
		}
		for _, emotion := range extractEmotions(turn.Text) {
			record.TrackedEmotions[emotion] = true
		}
	}

	record.DominantTopics = rankTopics(scores)
	return record
}

// rankTopics orders topics by score descending, name ascending on ties,
// so Read stays deterministic.
func rankTopics(scores map[string]float64) []string {
	topics := make([]string, 0, len(scores))
	for topic := range scores {
		topics = append(topics, topic)
	}
	sort.Slice(topics, func(i, j int) bool {
		if scores[topics[i]] != scores[topics[j]] {
			return scores[topics[i]] > scores[topics[j]]
		}
		return topics[i] < topics[j]
	})
	return topics
}

// referenceTemplates are rotated deterministically by turn count so the
// prepended clause never repeats verbatim on consecutive enforcement.
var referenceTemplates = []string{
	"Earlier you mentioned %s, and that's still on my mind. ",
	"I keep thinking about what you said about %s. ",
	"Coming back to %s for a moment. ",
	"You brought up %s before, and I haven't forgotten. ",
}

// EnsureReference enforces memory continuity: for turn counts past the
// configured minimum, a draft that references no record element gets a
// memory-referencing clause prepended, rotated by turnCount mod N.
// Returns the (possibly rewritten) draft and whether it was rewritten.
func (s *Store) EnsureReference(draft string, record Record, turnCount int) (string, bool) {
	if turnCount <= s.cfg.ReferenceMinTurn {
		return draft, false
	}
	if len(record.DominantTopics) == 0 {
		return draft, false
	}
	if s.references(draft, record) {
		return draft, false
	}

	template := referenceTemplates[turnCount%len(referenceTemplates)]
	clause := fmt.Sprintf(template, topicPhrase(record.DominantTopics[0]))
	return clause + draft, true
}

// references reports whether the draft already mentions a tracked topic
// or emotion.
func (s *Store) references(draft string, record Record) bool {
	lower := strings.ToLower(draft)
	for _, topic := range record.DominantTopics {
		if strings.Contains(lower, topic) || strings.Contains(lower, topicPhrase(topic)) {
			return true
		}
	}
	for emotion := range record.TrackedEmotions {
		if strings.Contains(lower, emotion) {
			return true
		}
	}
	return false
}

// topicPhrase renders a canonical topic as natural language.
func topicPhrase(topic string) string {
	switch topic {
	case "job":
		return "your job situation"
	case "family":
		return "your family"
	case "relationship":
		return "your relationship"
	case "health":
		return "your health"
	case "money":
		return "the financial pressure"
	case "school":
		return "school"
	case "loss":
		return "your loss"
	default:
		return topic
	}
}
