package personality

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/CVMHW/roger-74-sub004/roger/config"
	"github.com/CVMHW/roger-74-sub004/roger/repetition"
	"github.com/CVMHW/roger-74-sub004/roger/safety"
)

// Variator selects a reply voice per turn and rewrites drafts that have
// grown repetitive. Spontaneity accumulates while repetition persists and
// decays once replies vary again; above the configured threshold the
// incremental draft is discarded and the reply is rebuilt from the mode's
// template pool.
type Variator struct {
	cfg       config.PersonalityConfig
	templates map[Mode][]string

	mu           sync.Mutex
	rng          *rand.Rand
	lastMode     Mode
	lastOpener   string
	lastQuestion string
	spontaneity  int
}

// NewVariator creates a variator. A zero seed falls back to the clock, so
// tests pass an explicit seed for reproducible selection.
func NewVariator(cfg config.PersonalityConfig) (*Variator, error) {
	if cfg.SpontaneityThreshold <= 0 {
		cfg.SpontaneityThreshold = 80
	}
	if cfg.MeaningMinTurn <= 0 {
		cfg.MeaningMinTurn = 3
	}
	if cfg.Creativity <= 0 {
		cfg.Creativity = 50
	}
	if cfg.Creativity > 100 {
		cfg.Creativity = 100
	}

	templates := defaultTemplates
	if cfg.TemplatePath != "" {
		loaded, err := LoadTemplates(cfg.TemplatePath)
		if err != nil {
			return nil, err
		}
		templates = loaded
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Variator{
		cfg:       cfg,
		templates: templates,
		rng:       rand.New(rand.NewSource(seed)),
	}, nil
}

// SelectMode picks the voice for this turn. Register bias is absolute:
// casual talk gets the social voice, emotional disclosures the empathetic
// one, existential questions the meaning-focused one. Everything else
// rotates through the general modes, avoiding an immediate repeat.
func (v *Variator) SelectMode(register safety.Register) Mode {
	v.mu.Lock()
	defer v.mu.Unlock()

	var mode Mode
	switch register {
	case safety.RegisterCasual:
		mode = ModeWarmSocial
	case safety.RegisterEmotional:
		mode = ModeEmpathetic
	case safety.RegisterExistential:
		mode = ModeMeaningFocus
	default:
		mode = rotationModes[v.rng.Intn(len(rotationModes))]
		if mode == v.lastMode {
			mode = rotationModes[(indexOfMode(mode)+1)%len(rotationModes)]
		}
	}
	v.lastMode = mode
	return mode
}

// Vary applies the repetition analysis to the draft. Recommendations
// raise spontaneity; a clean turn lets it decay. When spontaneity crosses
// the threshold, or a perspective shift is demanded outright, the draft is
// discarded and the reply rebuilt from the mode's template pool.
func (v *Variator) Vary(draft string, mode Mode, analysis repetition.Analysis) string {
	v.mu.Lock()
	defer v.mu.Unlock()

	forceShift := false
	for _, rec := range analysis.Recommendations {
		switch rec {
		case repetition.RecommendSpontaneity:
			v.spontaneity += 25
		case repetition.RecommendChangeApproach:
			v.spontaneity += 15
		case repetition.RecommendPerspectiveShift:
			forceShift = true
		}
	}
	if !analysis.IsRepetitive {
		v.spontaneity -= 10
	}
	if v.spontaneity < 0 {
		v.spontaneity = 0
	}
	if v.spontaneity > 100 {
		v.spontaneity = 100
	}

	if !forceShift && v.spontaneity <= v.cfg.SpontaneityThreshold {
		return draft
	}
	return v.regenerate(draft, mode)
}

// Spontaneity exposes the current level for tracing.
func (v *Variator) Spontaneity() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.spontaneity
}

// creativityBorrowLevel is the creativity level above which regeneration
// borrows openers from every rotation mode instead of the selected one.
const creativityBorrowLevel = 66

// regenerate discards the draft entirely and rebuilds the reply from
// templates: a fresh opener plus a fresh follow-up question, neither
// reusing what the previous rebuild produced. Nothing of the old draft
// survives, so a repeated closing question cannot ride through a
// perspective shift. Caller holds the lock.
func (v *Variator) regenerate(draft string, mode Mode) string {
	openers := v.openerPool(mode)
	questions := followUpQuestions[mode]
	if len(questions) == 0 {
		questions = followUpQuestions[ModeReflective]
	}
	if len(openers) == 0 && len(questions) == 0 {
		return draft
	}

	opener := v.pickAvoiding(openers, v.lastOpener)
	question := v.pickAvoiding(questions, v.lastQuestion)
	v.lastOpener = opener
	v.lastQuestion = question

	rebuilt := strings.TrimSpace(opener + " " + question)
	if rebuilt == "" {
		return draft
	}
	return rebuilt
}

// openerPool is the opener candidate set for a rebuild. High creativity
// borrows openers from the other rotation modes, widening the voice
// palette beyond the selected mode.
func (v *Variator) openerPool(mode Mode) []string {
	pool := v.templates[mode]
	if len(pool) == 0 {
		pool = v.templates[ModeReflective]
	}
	if v.cfg.Creativity <= creativityBorrowLevel {
		return pool
	}
	widened := append([]string(nil), pool...)
	for _, m := range rotationModes {
		if m == mode {
			continue
		}
		widened = append(widened, v.templates[m]...)
	}
	return widened
}

// pickAvoiding draws a random pool entry, shifting off last whenever the
// pool offers an alternative.
func (v *Variator) pickAvoiding(pool []string, last string) string {
	if len(pool) == 0 {
		return ""
	}
	pick := pool[v.rng.Intn(len(pool))]
	if pick != last || len(pool) == 1 {
		return pick
	}
	for i, s := range pool {
		if s == pick {
			return pool[(i+1)%len(pool)]
		}
	}
	return pick
}

// MeaningLayer appends a purpose-oriented prompt. It never fires on
// casual registers or in the opening turns, and it never doubles up on a
// draft that already asks a question.
func (v *Variator) MeaningLayer(draft string, register safety.Register, turnCount int) string {
	if register == safety.RegisterCasual {
		return draft
	}
	if turnCount <= v.cfg.MeaningMinTurn {
		return draft
	}
	if strings.Contains(draft, "?") {
		return draft
	}

	v.mu.Lock()
	line := meaningLines[v.rng.Intn(len(meaningLines))]
	v.mu.Unlock()

	return strings.TrimSpace(draft) + " " + line
}

func indexOfMode(mode Mode) int {
	for i, m := range rotationModes {
		if m == mode {
			return i
		}
	}
	return 0
}

func splitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	var sentences []string
	start := 0
	for i := 0; i < len(text); i++ {
		if text[i] != '.' && text[i] != '!' && text[i] != '?' {
			continue
		}
		for i+1 < len(text) && (text[i+1] == '.' || text[i+1] == '!' || text[i+1] == '?') {
			i++
		}
		if i+1 >= len(text) || text[i+1] == ' ' {
			if s := strings.TrimSpace(text[start : i+1]); s != "" {
				sentences = append(sentences, s)
			}
			start = i + 1
		}
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}
