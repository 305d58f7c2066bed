package conversation

import (
	"time"

	"github.com/google/uuid"
)

// Speaker identifies who produced a turn.
type Speaker string

const (
	SpeakerUser  Speaker = "user"
	SpeakerAgent Speaker = "agent"
)

// ConcernTag marks a turn with a safety-relevant classification.
// Empty means no concern was detected for the turn.
type ConcernTag string

const (
	ConcernNone     ConcernTag = ""
	ConcernSuicide  ConcernTag = "suicide"
	ConcernSelfHarm ConcernTag = "self-harm"
	ConcernAbuse    ConcernTag = "abuse"
	ConcernMedical  ConcernTag = "medical"
	// Specialized, non-crisis concerns surfaced by the lexical detectors.
	ConcernGambling  ConcernTag = "gambling"
	ConcernSubstance ConcernTag = "substance-use"
	ConcernEating    ConcernTag = "eating-disorder"
)

// Turn is a single conversational exchange. Immutable once created;
// the orchestrator appends it to history exactly once per completed turn.
type Turn struct {
	ID         string
	Text       string
	Speaker    Speaker
	Timestamp  time.Time
	ConcernTag ConcernTag
}

// NewTurn creates a turn with a fresh ID and server-side timestamp.
func NewTurn(text string, speaker Speaker) Turn {
	return Turn{
		ID:        uuid.NewString(),
		Text:      text,
		Speaker:   speaker,
		Timestamp: time.Now(),
	}
}

// History is the ordered sequence of turns for one session,
// most-recent-last. Insertion order is significant.
type History struct {
	turns []Turn
}

// NewHistory creates an empty history.
func NewHistory() *History {
	return &History{}
}

// HistoryFrom builds a history from existing turns, oldest first.
func HistoryFrom(turns ...Turn) *History {
	h := &History{turns: make([]Turn, len(turns))}
	copy(h.turns, turns)
	return h
}

// Append adds a completed turn to the end of the history.
func (h *History) Append(t Turn) {
	h.turns = append(h.turns, t)
}

// Len returns the number of turns recorded.
func (h *History) Len() int {
	return len(h.turns)
}

// Turns returns a copy of all turns, oldest first.
func (h *History) Turns() []Turn {
	out := make([]Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

// LastK returns up to k most recent turns matching the speaker filter,
// oldest first. A nil filter matches every speaker.
func (h *History) LastK(k int, filter func(Turn) bool) []Turn {
	if k <= 0 {
		return nil
	}
	var out []Turn
	for i := len(h.turns) - 1; i >= 0 && len(out) < k; i-- {
		if filter == nil || filter(h.turns[i]) {
			out = append(out, h.turns[i])
		}
	}
	// Reverse back to oldest-first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// LastUserTurns returns up to k most recent user turns, oldest first.
func (h *History) LastUserTurns(k int) []Turn {
	return h.LastK(k, func(t Turn) bool { return t.Speaker == SpeakerUser })
}

// LastAgentTurns returns up to k most recent agent turns, oldest first.
func (h *History) LastAgentTurns(k int) []Turn {
	return h.LastK(k, func(t Turn) bool { return t.Speaker == SpeakerAgent })
}

// Clone returns an independent copy of the history.
func (h *History) Clone() *History {
	return HistoryFrom(h.turns...)
}
