package safety

import (
	"strings"

	"github.com/CVMHW/roger-74-sub004/roger/conversation"
)

// ConcernDetector flags specialized, non-crisis concerns (gambling,
// substance use, disordered eating). These tag the turn for the UI layer
// and enrich topic tracking; they never short-circuit the pipeline.
type ConcernDetector struct {
	markers map[conversation.ConcernTag][]string
}

// NewConcernDetector creates a detector with the default marker sets.
func NewConcernDetector() *ConcernDetector {
	return &ConcernDetector{markers: map[conversation.ConcernTag][]string{
		conversation.ConcernGambling: {
			"gambling", "casino", "sports betting", "lost it all betting",
			"slot machines", "poker debt",
		},
		conversation.ConcernSubstance: {
			"drinking too much", "blackout drunk", "using again", "relapsed",
			"can't stop drinking", "cant stop drinking", "getting high every",
		},
		conversation.ConcernEating: {
			"haven't eaten", "havent eaten", "purging", "binge eating",
			"hate my body", "skipping meals",
		},
	}}
}

// concernOrder fixes the evaluation order so overlapping marker hits
// resolve deterministically.
var concernOrder = []conversation.ConcernTag{
	conversation.ConcernSubstance,
	conversation.ConcernGambling,
	conversation.ConcernEating,
}

// Detect returns the first specialized concern found, or ConcernNone.
// Crisis categories always outrank these; the orchestrator only records a
// specialized concern when the crisis detector reported none.
func (cd *ConcernDetector) Detect(utterance string) conversation.ConcernTag {
	normalized := normalize(utterance)
	for _, tag := range concernOrder {
		markers := cd.markers[tag]
		for _, m := range markers {
			if strings.Contains(normalized, m) {
				return tag
			}
		}
	}
	return conversation.ConcernNone
}
