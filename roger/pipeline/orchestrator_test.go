package pipeline

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CVMHW/roger-74-sub004/roger/config"
	"github.com/CVMHW/roger-74-sub004/roger/conversation"
	"github.com/CVMHW/roger-74-sub004/roger/personality"
	"github.com/CVMHW/roger-74-sub004/roger/retrieval"
	"github.com/CVMHW/roger-74-sub004/roger/safety"
)

func testConfig() *config.Config {
	return &config.Config{
		Pipeline: config.PipelineConfig{
			TurnTimeout:  2 * time.Second,
			StageTimeout: 250 * time.Millisecond,
		},
		Safety: config.SafetyConfig{HeuristicEnable: true},
		Memory: config.MemoryConfig{
			TopicWindow:      4,
			RecencyDecay:     0.85,
			ReferenceMinTurn: 3,
		},
		Retrieval: config.RetrievalConfig{
			ConfidenceThreshold: 0.3,
			FallbackConfidence:  0.2,
			K:                   4,
		},
		Repetition: config.RepetitionConfig{
			ReplyWindow:        5,
			StructureThreshold: 0.6,
			QuestionThreshold:  0.7,
		},
		Personality: config.PersonalityConfig{
			SpontaneityThreshold: 80,
			MeaningMinTurn:       3,
			Seed:                 42,
		},
	}
}

func newTestOrchestrator(t *testing.T, opts Options) *Orchestrator {
	t.Helper()
	if opts.Config == nil {
		opts.Config = testConfig()
	}
	orch, err := NewOrchestrator(opts)
	require.NoError(t, err)
	return orch
}

func TestProcess_CrisisShortCircuits(t *testing.T) {
	orch := newTestOrchestrator(t, Options{})
	history := conversation.NewHistory()

	reply := orch.Process(context.Background(), "I want to kill myself", history, 1)

	require.True(t, reply.Crisis)
	assert.Equal(t, conversation.ConcernSuicide, reply.ConcernTag)
	assert.Contains(t, reply.Text, "988")

	// No downstream stage ran: only the safety rule was evaluated, no
	// personality mode was selected, and no memory clause was prepended.
	require.Len(t, reply.Violations, 1)
	assert.Equal(t, "safety", reply.Violations[0].RuleName)
	assert.True(t, reply.Violations[0].Detected)
	assert.Empty(t, reply.Mode)

	// The turn was still committed: user turn tagged, agent turn appended.
	require.Equal(t, 2, history.Len())
	turns := history.Turns()
	assert.Equal(t, conversation.ConcernSuicide, turns[0].ConcernTag)
	assert.Equal(t, conversation.SpeakerAgent, turns[1].Speaker)
	assert.Equal(t, reply.Text, turns[1].Text)
}

func TestProcess_CrisisReplyIsDeterministic(t *testing.T) {
	orch := newTestOrchestrator(t, Options{})

	first := orch.Process(context.Background(), "I want to kill myself", conversation.NewHistory(), 1)
	second := orch.Process(context.Background(), "I want to kill myself", conversation.NewHistory(), 7)

	assert.Equal(t, first.Text, second.Text, "crisis replies carry no randomness and no turn-dependent variation")
}

func TestProcess_GreetingFastPath(t *testing.T) {
	orch := newTestOrchestrator(t, Options{})
	history := conversation.NewHistory()

	reply := orch.Process(context.Background(), "hi", history, 1)

	assert.False(t, reply.Crisis)
	assert.Equal(t, conversation.ConcernNone, reply.ConcernTag)
	assert.Equal(t, personality.ModeWarmSocial, reply.Mode)
	assert.NotContains(t, reply.Text, "you mentioned", "no memory-reference clause before turn four")
	assert.LessOrEqual(t, len(strings.Fields(reply.Text)), 12, "greeting stays short")
	assert.Equal(t, 2, history.Len())
}

func TestProcess_RepeatedDraftGetsRegenerated(t *testing.T) {
	orch := newTestOrchestrator(t, Options{})
	history := conversation.NewHistory()
	utterance := "I've been so sad since the layoff"

	first := orch.Process(context.Background(), utterance, history, 2)
	second := orch.Process(context.Background(), utterance, history, 2)

	assert.False(t, first.Repetition.IsRepetitive)
	require.True(t, second.Repetition.IsRepetitive)
	assert.GreaterOrEqual(t, second.Repetition.Score, 1.0)
	assert.NotEqual(t, first.Text, second.Text, "the regenerated reply must differ from the first")
	assert.NotEqual(t, strings.Split(first.Text, ".")[0], strings.Split(second.Text, ".")[0],
		"the opening sentence changes, not just trailing punctuation")
}

func TestProcess_ConsecutiveRebuildsNeverRepeatVerbatim(t *testing.T) {
	orch := newTestOrchestrator(t, Options{})
	history := conversation.NewHistory()
	utterance := "I've been so sad since the layoff"

	previous := orch.Process(context.Background(), utterance, history, 2)
	for i := 0; i < 4; i++ {
		current := orch.Process(context.Background(), utterance, history, 2)
		require.True(t, current.Repetition.IsRepetitive)
		assert.NotEqual(t, previous.Text, current.Text,
			"a rebuilt reply must differ from the reply it replaces")
		previous = current
	}
}

func TestProcess_LowConfidenceRetrievalNeverInserted(t *testing.T) {
	corpus := &retrieval.Corpus{Passages: []retrieval.Passage{
		{ID: "p1", Text: "Losing a job often brings grief as well as financial stress.", Topics: []string{"job"}},
	}}
	svc, err := retrieval.NewService(context.Background(), retrieval.ServiceConfig{
		Config: testConfig().Retrieval,
		Corpus: corpus,
	})
	require.NoError(t, err)
	require.Equal(t, retrieval.ModeFallback, svc.Mode())

	orch := newTestOrchestrator(t, Options{Retrieval: svc})
	reply := orch.Process(context.Background(), "what helps after losing work", conversation.NewHistory(), 2)

	assert.NotContains(t, reply.Text, "often brings grief",
		"fallback confidence sits below the insertion threshold, so the snippet is never inserted")
	assert.NotEmpty(t, reply.Text)
}

func TestProcess_MemoryReferenceEnforcedOnLaterTurns(t *testing.T) {
	orch := newTestOrchestrator(t, Options{})

	history := conversation.NewHistory()
	history.Append(conversation.NewTurn("I'm losing my job next month", conversation.SpeakerUser))
	history.Append(conversation.NewTurn("Thanks for telling me.", conversation.SpeakerAgent))
	history.Append(conversation.NewTurn("The whole thing keeps me up at night", conversation.SpeakerUser))
	history.Append(conversation.NewTurn("Let's unpack it together.", conversation.SpeakerAgent))

	reply := orch.Process(context.Background(), "I don't know what I'll do next", history, 5)

	assert.Contains(t, reply.Text, "your job situation",
		"a draft that ignores the dominant topic gets a memory-reference clause")
	var memoryViolation *RuleViolation
	for i := range reply.Violations {
		if reply.Violations[i].RuleName == "memory_retention" {
			memoryViolation = &reply.Violations[i]
		}
	}
	require.NotNil(t, memoryViolation)
	assert.True(t, memoryViolation.Detected)
}

func TestProcess_NoMeaningLayerOnCasualEarlyTurns(t *testing.T) {
	orch := newTestOrchestrator(t, Options{})

	reply := orch.Process(context.Background(), "ugh I just spilled my coffee everywhere", conversation.NewHistory(), 2)

	assert.False(t, reply.Crisis)
	assert.Equal(t, personality.ModeWarmSocial, reply.Mode)
	for _, v := range reply.Violations {
		if v.RuleName == "meaning_integration" {
			assert.False(t, v.Detected, "meaning layer never fires on casual talk")
		}
	}
}

type panickyAssessor struct{}

func (panickyAssessor) Assess(string, *conversation.History) safety.Assessment {
	panic("phrase set corrupted")
}

func TestProcess_DetectorFailureYieldsSafetyFallback(t *testing.T) {
	orch := newTestOrchestrator(t, Options{Crisis: panickyAssessor{}})
	history := conversation.NewHistory()

	reply := orch.Process(context.Background(), "I had a rough day", history, 1)

	assert.Equal(t, safety.FallbackReply(), reply.Text)
	assert.Contains(t, reply.Text, "988")
	assert.Equal(t, 2, history.Len(), "the turn is committed even on detector failure")
}

func TestProcess_SpentBudgetStillDeliversADraft(t *testing.T) {
	orch := newTestOrchestrator(t, Options{})
	history := conversation.NewHistory()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reply := orch.Process(ctx, "I feel pretty sad today", history, 1)

	assert.NotEmpty(t, reply.Text, "an exhausted budget degrades to the base draft, never to silence")
	assert.Equal(t, 2, history.Len())
}

func TestProcess_SpecializedConcernTagsTheTurn(t *testing.T) {
	orch := newTestOrchestrator(t, Options{})
	history := conversation.NewHistory()

	reply := orch.Process(context.Background(), "I've been gambling too much lately", history, 1)

	assert.False(t, reply.Crisis)
	assert.Equal(t, conversation.ConcernGambling, reply.ConcernTag)
	assert.Equal(t, conversation.ConcernGambling, history.Turns()[0].ConcernTag)
}

func TestProcess_RuleTableOrder(t *testing.T) {
	orch := newTestOrchestrator(t, Options{})

	reply := orch.Process(context.Background(), "work has been relentless for weeks now", conversation.NewHistory(), 2)

	require.Len(t, reply.Violations, 4)
	assert.Equal(t, "safety", reply.Violations[0].RuleName)
	assert.Equal(t, "memory_retention", reply.Violations[1].RuleName)
	assert.Equal(t, "meaning_integration", reply.Violations[2].RuleName)
	assert.Equal(t, "spontaneity_variation", reply.Violations[3].RuleName)
}

func TestSession_TurnsAccumulateInOrder(t *testing.T) {
	store := conversation.NewInMemoryStore()
	orch := newTestOrchestrator(t, Options{})
	session := NewSession("s1", store, orch)

	first, err := session.HandleTurn(context.Background(), "I lost my job last week")
	require.NoError(t, err)
	assert.NotEmpty(t, first.Text)

	second, err := session.HandleTurn(context.Background(), "I keep replaying the conversation")
	require.NoError(t, err)
	assert.NotEmpty(t, second.Text)

	count, err := store.TurnCount(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	history, err := store.LoadHistory(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 4, history.Len())
}

func TestSession_Isolation(t *testing.T) {
	store := conversation.NewInMemoryStore()
	orch := newTestOrchestrator(t, Options{})

	a := NewSession("a", store, orch)
	b := NewSession("b", store, orch)

	_, err := a.HandleTurn(context.Background(), "my landlord is raising the rent")
	require.NoError(t, err)
	_, err = b.HandleTurn(context.Background(), "thinking about going back to school")
	require.NoError(t, err)

	historyB, err := store.LoadHistory(context.Background(), "b")
	require.NoError(t, err)
	require.Equal(t, 2, historyB.Len())
	assert.NotContains(t, historyB.Turns()[0].Text, "landlord", "sessions never see each other's turns")
}
