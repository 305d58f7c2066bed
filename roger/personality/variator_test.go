package personality

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CVMHW/roger-74-sub004/roger/config"
	"github.com/CVMHW/roger-74-sub004/roger/repetition"
	"github.com/CVMHW/roger-74-sub004/roger/safety"
)

func newTestVariator(t *testing.T) *Variator {
	t.Helper()
	v, err := NewVariator(config.PersonalityConfig{
		SpontaneityThreshold: 80,
		MeaningMinTurn:       3,
		Seed:                 42,
	})
	require.NoError(t, err)
	return v
}

func TestSelectMode_RegisterBiasIsAbsolute(t *testing.T) {
	v := newTestVariator(t)

	assert.Equal(t, ModeWarmSocial, v.SelectMode(safety.RegisterCasual))
	assert.Equal(t, ModeEmpathetic, v.SelectMode(safety.RegisterEmotional))
	assert.Equal(t, ModeMeaningFocus, v.SelectMode(safety.RegisterExistential))
}

func TestSelectMode_NeutralNeverRepeatsImmediately(t *testing.T) {
	v := newTestVariator(t)

	previous := v.SelectMode(safety.RegisterNeutral)
	for i := 0; i < 20; i++ {
		current := v.SelectMode(safety.RegisterNeutral)
		assert.NotEqual(t, previous, current, "consecutive turns must not share a voice")
		previous = current
	}
}

func TestVary_CleanTurnLeavesDraftAlone(t *testing.T) {
	v := newTestVariator(t)
	draft := "That job loss sounds destabilizing. What part weighs on you most?"

	out := v.Vary(draft, ModeEmpathetic, repetition.Analysis{})

	assert.Equal(t, draft, out)
	assert.Zero(t, v.Spontaneity())
}

func shiftAnalysis() repetition.Analysis {
	return repetition.Analysis{
		IsRepetitive: true,
		Score:        2.1,
		Recommendations: []repetition.Recommendation{
			repetition.RecommendSpontaneity,
			repetition.RecommendChangeApproach,
			repetition.RecommendPerspectiveShift,
		},
	}
}

func TestVary_PerspectiveShiftRebuildsWholeReply(t *testing.T) {
	v := newTestVariator(t)
	draft := "That sounds hard. What happened at work?"

	out := v.Vary(draft, ModeDirect, shiftAnalysis())

	assert.NotEqual(t, draft, out)
	assert.NotContains(t, out, "That sounds hard.")
	assert.NotContains(t, out, "What happened at work?",
		"the old closing question is discarded with the rest of the draft")
	assert.True(t, strings.HasSuffix(out, "?"), "a rebuilt reply still closes with an invitation")
}

func TestVary_ConsecutiveRebuildsNeverRepeat(t *testing.T) {
	v := newTestVariator(t)
	closing := func(s string) string {
		sentences := splitSentences(s)
		return sentences[len(sentences)-1]
	}

	previous := v.Vary("That sounds hard. What happened at work?", ModeEmpathetic, shiftAnalysis())
	for i := 0; i < 10; i++ {
		current := v.Vary(previous, ModeEmpathetic, shiftAnalysis())
		require.NotEqual(t, previous, current, "back-to-back rebuilds must not produce the same reply")
		assert.NotEqual(t, closing(previous), closing(current), "the closing question is rebuilt too")
		previous = current
	}
}

func TestOpenerPool_HighCreativityBorrowsAcrossModes(t *testing.T) {
	low, err := NewVariator(config.PersonalityConfig{Seed: 42, Creativity: 30})
	require.NoError(t, err)
	high, err := NewVariator(config.PersonalityConfig{Seed: 42, Creativity: 90})
	require.NoError(t, err)

	assert.Equal(t, defaultTemplates[ModeDirect], low.openerPool(ModeDirect))
	assert.Greater(t, len(high.openerPool(ModeDirect)), len(defaultTemplates[ModeDirect]),
		"high creativity widens the opener palette beyond the selected mode")
}

func TestVary_SpontaneityAccumulatesThenDecays(t *testing.T) {
	v := newTestVariator(t)
	draft := "I hear you."
	repetitive := repetition.Analysis{
		IsRepetitive:    true,
		Score:           1.0,
		Recommendations: []repetition.Recommendation{repetition.RecommendSpontaneity},
	}

	for i := 0; i < 3; i++ {
		out := v.Vary(draft, ModeWarm, repetitive)
		assert.Equal(t, draft, out, "below threshold the draft passes through")
	}
	assert.Equal(t, 75, v.Spontaneity())

	out := v.Vary(draft, ModeWarm, repetitive)
	assert.NotEqual(t, draft, out, "crossing the threshold regenerates the draft")
	assert.Equal(t, 100, v.Spontaneity())

	v.Vary("Something fresh this time.", ModeWarm, repetition.Analysis{})
	assert.Equal(t, 90, v.Spontaneity(), "clean turns decay spontaneity")
}

func TestMeaningLayer_Gates(t *testing.T) {
	v := newTestVariator(t)
	draft := "That loss has been with you for a while."

	assert.Equal(t, draft, v.MeaningLayer(draft, safety.RegisterCasual, 10), "never on casual talk")
	assert.Equal(t, draft, v.MeaningLayer(draft, safety.RegisterEmotional, 2), "never in opening turns")

	asking := "That loss has been with you for a while. What helps on the worst days?"
	assert.Equal(t, asking, v.MeaningLayer(asking, safety.RegisterEmotional, 10), "never doubles a question")

	out := v.MeaningLayer(draft, safety.RegisterEmotional, 10)
	assert.NotEqual(t, draft, out)
	assert.Contains(t, out, "?")
	assert.True(t, strings.HasPrefix(out, draft))
}

func TestParseTemplates_MergesOverDefaults(t *testing.T) {
	bank := []byte(`{"modes":{"direct":["Plainly, here it is."]}}`)
	templates, err := ParseTemplates(bank)
	require.NoError(t, err)

	assert.Equal(t, []string{"Plainly, here it is."}, templates[ModeDirect])
	assert.NotEmpty(t, templates[ModeCurious], "unlisted modes keep built-ins")
}

func TestParseTemplates_RejectsInvalidBank(t *testing.T) {
	_, err := ParseTemplates([]byte(`{"modes":{"direct":[]}}`))
	assert.Error(t, err, "empty pools are invalid")

	_, err = ParseTemplates([]byte(`{"modes":{"direct":[42]}}`))
	assert.Error(t, err, "non-string templates are invalid")
}
