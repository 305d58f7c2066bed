package pipeline

import (
	"strings"

	"github.com/CVMHW/roger-74-sub004/roger/safety"
)

// Base drafts are the rule-selected starting replies, keyed by register
// and rotated deterministically by turn count. Later stages ground,
// correct, and vary them; none of this text is final.

var greetingDrafts = []string{
	"Hi, I'm glad you're here. What's on your mind today?",
	"Hey, good to have you here. How's your day going?",
}

var casualDrafts = []string{
	"Ha, those days happen. What else is going on?",
	"One of those moments, huh? How's the rest of your day been?",
}

var emotionalDrafts = []string{
	"That sounds like a lot to carry. What part of it hit hardest today?",
	"I can tell this has been weighing on you. Where does it sit right now?",
	"Anyone would feel shaken by that. What's been going through your mind?",
}

var existentialDrafts = []string{
	"Those are big questions, and they deserve room.",
	"It takes honesty to sit with questions like that.",
}

var neutralDrafts = []string{
	"I'm listening. What feels most important to talk through right now?",
	"Let's take that one piece at a time.",
	"There's a lot in what you just shared. Where would you like to start?",
}

// composeBaseDraft picks the starting reply for the turn. Opening turns
// with near-empty utterances get a plain greeting; everything else draws
// from the register's pool, rotated by turn count so consecutive turns
// never start from the same text.
func composeBaseDraft(utterance string, register safety.Register, turnCount int) string {
	if turnCount <= 1 && len(strings.Fields(utterance)) <= 3 {
		return rotate(greetingDrafts, turnCount)
	}
	switch register {
	case safety.RegisterCasual:
		return rotate(casualDrafts, turnCount)
	case safety.RegisterEmotional:
		return rotate(emotionalDrafts, turnCount)
	case safety.RegisterExistential:
		return rotate(existentialDrafts, turnCount)
	default:
		return rotate(neutralDrafts, turnCount)
	}
}

func rotate(pool []string, turnCount int) string {
	if turnCount < 0 {
		turnCount = 0
	}
	return pool[turnCount%len(pool)]
}
