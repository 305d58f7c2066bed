package safety

import "strings"

// Register is a coarse classification of the utterance's speech register,
// used to bias personality mode selection and to gate the meaning layer.
type Register int

const (
	RegisterNeutral Register = iota
	RegisterCasual           // small talk, filler, minor-incident disclosures
	RegisterEmotional
	RegisterExistential
)

// RegisterClassifier detects casual/filler speech, emotional language and
// existential language with keyword heuristics over the normalized
// utterance. Stateless.
type RegisterClassifier struct{}

// NewRegisterClassifier creates a register classifier.
func NewRegisterClassifier() *RegisterClassifier {
	return &RegisterClassifier{}
}

var casualMarkers = []string{
	"lol", "haha", "hey", "hi", "hello", "sup", "whats up", "what's up",
	"spilled", "dropped", "oops", "my bad", "anyway", "nothing much",
	"just chilling", "bored",
}

var emotionalMarkers = []string{
	"sad", "angry", "anxious", "scared", "lonely", "depressed", "overwhelmed",
	"frustrated", "hopeless", "worried", "stressed", "hurt", "grief", "crying",
}

var existentialMarkers = []string{
	"meaning", "purpose", "point of", "why am i here", "what's the point",
	"whats the point", "existence", "mortality", "legacy", "values",
}

// Classify returns the dominant register of the utterance. Emotional and
// existential markers outrank casual ones so that a painful disclosure
// phrased casually is not dismissed as small talk.
func (rc *RegisterClassifier) Classify(utterance string) Register {
	normalized := normalize(utterance)
	if normalized == "" {
		return RegisterNeutral
	}

	if containsAny(normalized, existentialMarkers) {
		return RegisterExistential
	}
	if containsAny(normalized, emotionalMarkers) {
		return RegisterEmotional
	}
	if containsAny(normalized, casualMarkers) {
		return RegisterCasual
	}
	// Very short utterances with no emotional load read as casual.
	if len(strings.Fields(normalized)) <= 3 {
		return RegisterCasual
	}
	return RegisterNeutral
}

// IsCasual reports whether the utterance is casual/filler speech or a
// minor-incident disclosure (spilled drink, stubbed toe). The meaning
// layer must never fire on these.
func (rc *RegisterClassifier) IsCasual(utterance string) bool {
	return rc.Classify(utterance) == RegisterCasual
}

// SocioeconomicCue captures hints of financial strain in the utterance.
// It feeds topic tracking and keeps the reply register grounded; it never
// changes safety behavior.
type SocioeconomicCue struct {
	Detected bool
	Marker   string
}

var socioeconomicMarkers = []string{
	"lost my job", "laid off", "can't afford", "cant afford", "evicted",
	"behind on rent", "food stamps", "paycheck to paycheck", "unemployed",
	"medical bills", "debt",
}

// DetectSocioeconomic scans for socioeconomic stress markers.
func (rc *RegisterClassifier) DetectSocioeconomic(utterance string) SocioeconomicCue {
	normalized := normalize(utterance)
	for _, m := range socioeconomicMarkers {
		if strings.Contains(normalized, m) {
			return SocioeconomicCue{Detected: true, Marker: m}
		}
	}
	return SocioeconomicCue{}
}

// containsAny matches single-word markers on word boundaries so "hi"
// never fires inside "thing"; multi-word markers match as substrings.
func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(m, " ") {
			if strings.Contains(s, m) {
				return true
			}
			continue
		}
		if indexWord(s, m) >= 0 {
			return true
		}
	}
	return false
}
