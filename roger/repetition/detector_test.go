package repetition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CVMHW/roger-74-sub004/roger/config"
)

func newTestDetector() *Detector {
	return NewDetector(config.RepetitionConfig{
		ReplyWindow:        5,
		StructureThreshold: 0.6,
		QuestionThreshold:  0.7,
	})
}

func TestScore_FreshReplyIsNotRepetitive(t *testing.T) {
	d := newTestDetector()

	analysis := d.Score(
		"Losing steady work shakes more than your budget. What felt hardest today?",
		[]string{"Let's stay with that feeling for a moment."},
		nil,
	)

	assert.False(t, analysis.IsRepetitive)
	assert.Zero(t, analysis.Score)
	assert.Empty(t, analysis.Recommendations)
}

func TestScore_PhraseWeightDoublesWhenRecentlyUsed(t *testing.T) {
	d := newTestDetector()
	candidate := "I hear you, and thank you for sharing that with me."

	fresh := d.Score(candidate, []string{"Work stress builds up over time."}, nil)
	repeated := d.Score(candidate, []string{"I hear you. Thank you for sharing so openly."}, nil)

	assert.InDelta(t, 2*fresh.Score, repeated.Score, 1e-9)
	assert.Greater(t, repeated.Score, fresh.Score)
}

func TestScore_StructuralEchoFlagsRepetition(t *testing.T) {
	d := newTestDetector()

	analysis := d.Score(
		"Work keeps pulling you under.",
		[]string{"Work keeps dragging you under."},
		nil,
	)

	require.True(t, analysis.IsRepetitive)
	assert.InDelta(t, 1.0, analysis.Score, 1e-9)
	assert.Equal(t, []Recommendation{RecommendSpontaneity}, analysis.Recommendations)
}

func TestScore_IdenticalQuestionTriggersAllRecommendations(t *testing.T) {
	d := newTestDetector()

	analysis := d.Score(
		"How does that make you feel?",
		[]string{"I see. How does that make you feel?"},
		nil,
	)

	require.True(t, analysis.IsRepetitive)
	assert.GreaterOrEqual(t, analysis.Score, 2.0)
	assert.Contains(t, analysis.Recommendations, RecommendSpontaneity)
	assert.Contains(t, analysis.Recommendations, RecommendChangeApproach)
	assert.Contains(t, analysis.Recommendations, RecommendPerspectiveShift)
}

func TestScore_RepliesOutsideWindowAreIgnored(t *testing.T) {
	d := NewDetector(config.RepetitionConfig{
		ReplyWindow:        2,
		StructureThreshold: 0.6,
		QuestionThreshold:  0.7,
	})

	analysis := d.Score(
		"I understand.",
		[]string{"I understand completely.", "Let's slow down.", "Take a breath first."},
		nil,
	)

	// The matching reply fell out of the two-reply window, so the phrase
	// hit keeps its single weight.
	assert.InDelta(t, 0.4, analysis.Score, 1e-9)
	assert.False(t, analysis.IsRepetitive)
}
