package personality

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xeipuuv/gojsonschema"
)

// Mode is a reply voice. Selection is biased by the speech register and
// otherwise randomized so consecutive replies do not share a voice.
type Mode string

const (
	ModeCurious       Mode = "curious"
	ModeEmpathetic    Mode = "empathetic"
	ModeReflective    Mode = "reflective"
	ModeDirect        Mode = "direct"
	ModeAnalytical    Mode = "analytical"
	ModeWarm          Mode = "warm"
	ModeGentle        Mode = "gentle"
	ModeExistential   Mode = "existential"
	ModeMeaningFocus  Mode = "meaning_focused"
	ModeWarmSocial    Mode = "warm_social"
)

// rotationModes are eligible for random selection when no register bias
// applies. Register-bound modes are excluded so they only appear when
// earned.
var rotationModes = []Mode{
	ModeCurious, ModeEmpathetic, ModeReflective, ModeDirect,
	ModeAnalytical, ModeWarm, ModeGentle,
}

// defaultTemplates are the reply openers used when regeneration fires.
var defaultTemplates = map[Mode][]string{
	ModeCurious: {
		"I'm curious what part of this sits with you most.",
		"Something in what you said makes me want to ask more.",
	},
	ModeEmpathetic: {
		"That carries real weight, and I don't want to rush past it.",
		"I can feel how much this matters to you.",
	},
	ModeReflective: {
		"Let me sit with what you just shared for a moment.",
		"Stepping back, there's a thread running through what you've said.",
	},
	ModeDirect: {
		"Let me be straightforward with you.",
		"Here's what stands out to me.",
	},
	ModeAnalytical: {
		"Breaking this down, a few pieces seem connected.",
		"Looking at the parts of this separately might help.",
	},
	ModeWarm: {
		"I'm glad you brought this here.",
		"You don't have to carry this alone right now.",
	},
	ModeGentle: {
		"There's no hurry with any of this.",
		"We can take this at whatever pace feels right.",
	},
	ModeExistential: {
		"Questions like this touch on what a life is for.",
		"It makes sense to pause on something this fundamental.",
	},
	ModeMeaningFocus: {
		"Even in hard stretches, people often find something worth holding onto.",
		"What gives a day its weight can shift, and that's worth noticing.",
	},
	ModeWarmSocial: {
		"Ha, that's the kind of day that tests anyone's patience.",
		"Those small annoyances add up, don't they?",
	},
}

// followUpQuestions close out a rebuilt reply. Kept deliberately varied
// in wording and length so consecutive rebuilds never share a question.
var followUpQuestions = map[Mode][]string{
	ModeCurious: {
		"What part of it keeps pulling your attention?",
		"Where does your mind go when it comes up?",
	},
	ModeEmpathetic: {
		"What's been the heaviest piece to carry?",
		"Who else knows what you're going through?",
	},
	ModeReflective: {
		"Looking back over the week, what's shifted?",
		"What would you say to a friend in the same spot?",
	},
	ModeDirect: {
		"What would need to change for next week to feel different?",
		"What's the one thing you keep putting off?",
	},
	ModeAnalytical: {
		"Which piece of this feels most in your control?",
		"When did you first notice the pattern?",
	},
	ModeWarm: {
		"What's one thing that went okay today?",
		"What usually helps, even a little?",
	},
	ModeGentle: {
		"Would it help to stay with this a bit longer?",
		"What feels manageable right now?",
	},
	ModeExistential: {
		"What does this stretch say about what matters to you?",
		"If nothing changed, what would you miss most?",
	},
	ModeMeaningFocus: {
		"What still feels worth showing up for?",
		"Which part of your life still feels like yours?",
	},
	ModeWarmSocial: {
		"So what does the rest of the day look like?",
		"Did anything else happen after that?",
	},
}

// meaningLines close out a reply with a purpose-oriented prompt. Gated to
// non-casual registers and later turns.
var meaningLines = []string{
	"When you look past this stretch, what still feels worth working toward?",
	"Is there something in your day, however small, that still feels meaningful?",
	"What would feeling settled about this look like for you?",
}

// templateSchema validates an external template bank: every mode maps to
// a non-empty list of non-empty strings.
const templateSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["modes"],
	"properties": {
		"modes": {
			"type": "object",
			"minProperties": 1,
			"additionalProperties": {
				"type": "array",
				"minItems": 1,
				"items": {"type": "string", "minLength": 1}
			}
		}
	}
}`

type templateBank struct {
	Modes map[string][]string `json:"modes"`
}

// LoadTemplates reads an external template bank, schema-validated.
// Modes absent from the bank keep their built-in templates.
func LoadTemplates(path string) (map[Mode][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template bank: %w", err)
	}
	return ParseTemplates(data)
}

// ParseTemplates validates and merges a template bank over the defaults.
func ParseTemplates(data []byte) (map[Mode][]string, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(templateSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return nil, fmt.Errorf("template bank validation failed: %w", err)
	}
	if !result.Valid() {
		return nil, fmt.Errorf("template bank is invalid: %v", result.Errors())
	}

	var bank templateBank
	if err := json.Unmarshal(data, &bank); err != nil {
		return nil, fmt.Errorf("failed to decode template bank: %w", err)
	}

	merged := make(map[Mode][]string, len(defaultTemplates))
	for mode, templates := range defaultTemplates {
		merged[mode] = templates
	}
	for name, templates := range bank.Modes {
		merged[Mode(name)] = templates
	}
	return merged, nil
}
