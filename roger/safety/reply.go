package safety

import (
	"fmt"
	"strings"
)

// ReplyComposer produces crisis replies from a small fixed template set
// keyed by category. No randomness: crisis replies must be auditable and
// reproducible.
type ReplyComposer struct {
	directory *ResourceDirectory
	templates map[Category]string
}

// NewReplyComposer creates a composer over the given resource directory.
func NewReplyComposer(directory *ResourceDirectory) *ReplyComposer {
	return &ReplyComposer{
		directory: directory,
		templates: map[Category]string{
			CategorySuicide:  "I'm really glad you told me. What you're feeling matters, and you don't have to face it alone. Please reach out right now: %s. I'm here with you.",
			CategorySelfHarm: "Thank you for trusting me with this. You deserve support, not judgment. Please connect with someone who can help right now: %s.",
			CategoryAbuse:    "I'm so sorry this is happening to you. You deserve to be safe. There are people ready to help: %s.",
			CategoryMedical:  "This sounds like it could be a medical emergency. Please get help immediately: %s.",
		},
	}
}

// Compose builds the deterministic crisis reply for an assessment. The
// reply names every resource for the category and is terminal output for
// the turn; no downstream stage may alter it.
func (rc *ReplyComposer) Compose(assessment Assessment) string {
	template, ok := rc.templates[assessment.Category]
	if !ok {
		return FallbackReply()
	}
	resources := rc.directory.Lookup(assessment.Category)
	lines := make([]string, len(resources))
	for i, r := range resources {
		lines[i] = fmt.Sprintf("%s (%s)", r.Name, r.Contact)
	}
	return fmt.Sprintf(template, strings.Join(lines, "; "))
}

// FallbackReply is the hard-coded safety-oriented message used when the
// detector itself errors. It is the sole path allowed to override
// "always return something" with "always return something safety-oriented".
func FallbackReply() string {
	return "I want to make sure you're safe. If you're in crisis, please call or text 988 " +
		"(Suicide & Crisis Lifeline) or call 911 for an emergency. I'm here to listen."
}
