package consistency

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CVMHW/roger-74-sub004/roger/config"
	"github.com/CVMHW/roger-74-sub004/roger/conversation"
	"github.com/CVMHW/roger-74-sub004/roger/memory"
)

func newTestGuard() *Guard {
	store := memory.NewStore(config.MemoryConfig{TopicWindow: 4, RecencyDecay: 0.85, ReferenceMinTurn: 3})
	return NewGuard(store)
}

func historyWith(texts ...string) *conversation.History {
	h := conversation.NewHistory()
	for _, text := range texts {
		h.Append(conversation.NewTurn(text, conversation.SpeakerUser))
	}
	return h
}

func TestCheck_SupportedClaimPassesThrough(t *testing.T) {
	guard := newTestGuard()
	history := historyWith("I lost my job and my manager never warned me")

	candidate := "You mentioned that you lost your job. That is a lot to absorb."
	finding := guard.Check(candidate, "still thinking about the job", history)

	assert.False(t, finding.IsHallucination)
	assert.Equal(t, candidate, finding.Corrected)
}

func TestCheck_UnsupportedClaimIsSoftened(t *testing.T) {
	guard := newTestGuard()
	history := historyWith("I had a rough week")

	candidate := "You said that your sister moved overseas. That must be hard."
	finding := guard.Check(candidate, "just tired", history)

	require.True(t, finding.IsHallucination)
	assert.NotEqual(t, candidate, finding.Corrected)
	assert.NotEmpty(t, finding.Corrected)
	assert.Contains(t, finding.Corrected, "That must be hard.")
	assert.NotContains(t, finding.Corrected, "You said")
}

func TestCheck_NeverProducesEmptyReply(t *testing.T) {
	guard := newTestGuard()
	history := historyWith("hello")

	// A single-sentence fabrication with no computable softening would
	// otherwise empty the reply; the guard fails open instead.
	candidate := "You often visit your cabin in the mountains"
	finding := guard.Check(candidate, "hi", history)

	assert.NotEmpty(t, finding.Corrected)
}

func TestCheck_NoClaimsNoChanges(t *testing.T) {
	guard := newTestGuard()
	history := historyWith("work is stressful")

	candidate := "That sounds stressful. What part weighs on you most?"
	finding := guard.Check(candidate, "work again", history)

	assert.False(t, finding.IsHallucination)
	assert.Equal(t, candidate, finding.Corrected)
}

func TestCheck_DerivedTopicsCountAsSupport(t *testing.T) {
	guard := newTestGuard()
	history := historyWith("I got laid off last week")

	// "job" never appears verbatim; it is derived by the memory store.
	candidate := "Your job situation sounds overwhelming."
	finding := guard.Check(candidate, "yeah", history)

	assert.False(t, finding.IsHallucination)
	assert.Equal(t, candidate, finding.Corrected)
}
