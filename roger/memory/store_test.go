package memory

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CVMHW/roger-74-sub004/roger/config"
	"github.com/CVMHW/roger-74-sub004/roger/conversation"
)

func testConfig() config.MemoryConfig {
	return config.MemoryConfig{TopicWindow: 4, RecencyDecay: 0.85, ReferenceMinTurn: 3}
}

func historyOf(userTexts ...string) *conversation.History {
	h := conversation.NewHistory()
	for _, text := range userTexts {
		h.Append(conversation.NewTurn(text, conversation.SpeakerUser))
		h.Append(conversation.NewTurn("I hear you.", conversation.SpeakerAgent))
	}
	return h
}

func TestRead_Idempotent(t *testing.T) {
	store := NewStore(testConfig())
	history := historyOf(
		"I lost my job last month",
		"my girlfriend and I broke up",
		"I feel so anxious all the time",
	)

	first := store.Read(history)
	second := store.Read(history)

	assert.Equal(t, first, second, "Read must be a pure function of history")
}

func TestRead_DominantTopicsWithRecencyWeighting(t *testing.T) {
	store := NewStore(testConfig())
	history := historyOf(
		"I lost my job and I can't stop thinking about it",
		"work is all I think about",
		"my mother called yesterday",
	)

	record := store.Read(history)

	require.NotEmpty(t, record.DominantTopics)
	assert.Equal(t, "job", record.DominantTopics[0], "two job mentions outrank one family mention")
	assert.True(t, record.HasTopic("family"), "older topics decay but are never discarded")
	assert.Equal(t, 3, record.TurnCount)
}

func TestRead_InflectedMentionsCountTowardTopic(t *testing.T) {
	store := NewStore(testConfig())
	history := historyOf(
		"the interviews keep going badly",
		"working again feels far away",
	)

	record := store.Read(history)

	require.NotEmpty(t, record.DominantTopics)
	assert.Equal(t, "job", record.DominantTopics[0],
		"plural and gerund forms credit the same topic as the base word")
}

func TestRead_PrefixMatchStopsAtInflections(t *testing.T) {
	store := NewStore(testConfig())
	record := store.Read(historyOf("that was a nice moment at least"))

	assert.False(t, record.HasTopic("family"), "a shared stem is not a mention")
	assert.Empty(t, record.DominantTopics)
}

func TestRead_TracksEmotions(t *testing.T) {
	store := NewStore(testConfig())
	history := historyOf("I have been so anxious and lonely lately")

	record := store.Read(history)

	assert.True(t, record.TrackedEmotions["anxiety"])
	assert.True(t, record.TrackedEmotions["loneliness"])
}

func TestRead_OldTopicStillRecallable(t *testing.T) {
	store := NewStore(testConfig())
	texts := []string{"my father passed away last year"}
	for i := 0; i < 10; i++ {
		texts = append(texts, "tell me something about the weather")
	}
	record := store.Read(historyOf(texts...))

	assert.True(t, record.HasTopic("loss"), "a concern stated long ago must remain recallable")
}

func TestEnsureReference_PrependsClauseAfterMinTurn(t *testing.T) {
	store := NewStore(testConfig())
	history := historyOf(
		"I lost my job",
		"still no interviews",
		"money is getting tight",
		"I barely slept",
		"what should I do",
	)
	record := store.Read(history)
	require.True(t, record.HasTopic("job"))

	draft := "That sounds like a lot to carry."
	rewritten, changed := store.EnsureReference(draft, record, 5)

	assert.True(t, changed)
	assert.True(t, strings.HasSuffix(rewritten, draft), "original draft must be preserved")
	assert.Contains(t, strings.ToLower(rewritten), "job")
}

func TestEnsureReference_NoRewriteWhenDraftAlreadyReferences(t *testing.T) {
	store := NewStore(testConfig())
	record := Record{DominantTopics: []string{"job"}, TrackedEmotions: map[string]bool{}}

	draft := "Losing a job can shake your whole sense of stability."
	rewritten, changed := store.EnsureReference(draft, record, 6)

	assert.False(t, changed)
	assert.Equal(t, draft, rewritten)
}

func TestEnsureReference_SkippedEarlyInConversation(t *testing.T) {
	store := NewStore(testConfig())
	record := Record{DominantTopics: []string{"job"}, TrackedEmotions: map[string]bool{}}

	draft := "Nice to meet you."
	rewritten, changed := store.EnsureReference(draft, record, 1)

	assert.False(t, changed, "turnCount not past minimum")
	assert.Equal(t, draft, rewritten)
}

func TestEnsureReference_RotatesTemplates(t *testing.T) {
	store := NewStore(testConfig())
	record := Record{DominantTopics: []string{"job"}, TrackedEmotions: map[string]bool{}}

	a, changedA := store.EnsureReference("Okay.", record, 4)
	b, changedB := store.EnsureReference("Okay.", record, 5)

	require.True(t, changedA)
	require.True(t, changedB)
	assert.NotEqual(t, a, b, "consecutive turn counts rotate the reference clause")
}
