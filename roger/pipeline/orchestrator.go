package pipeline

import (
	"context"
	"fmt"

	"github.com/CVMHW/roger-74-sub004/roger/config"
	"github.com/CVMHW/roger-74-sub004/roger/consistency"
	"github.com/CVMHW/roger-74-sub004/roger/conversation"
	"github.com/CVMHW/roger-74-sub004/roger/memory"
	"github.com/CVMHW/roger-74-sub004/roger/personality"
	pipelineports "github.com/CVMHW/roger-74-sub004/roger/pipeline/ports"
	"github.com/CVMHW/roger-74-sub004/roger/repetition"
	"github.com/CVMHW/roger-74-sub004/roger/retrieval"
	"github.com/CVMHW/roger-74-sub004/roger/safety"
)

// CrisisAssessor classifies an utterance for safety-critical content.
type CrisisAssessor interface {
	Assess(utterance string, history *conversation.History) safety.Assessment
}

// Reply is the completed output of one pipeline turn.
type Reply struct {
	Text       string
	ConcernTag conversation.ConcernTag
	Mode       personality.Mode
	Crisis     bool
	Repetition repetition.Analysis
	Violations []RuleViolation
}

// Options configures an orchestrator. Config is required; every other
// field has a working default. Retrieval may be nil, in which case the
// augmentation stage is skipped entirely.
type Options struct {
	Config    *config.Config
	Tracer    pipelineports.Tracer
	Crisis    CrisisAssessor
	Retrieval *retrieval.Service
	Resources *safety.ResourceDirectory
	Variator  *personality.Variator
}

// Orchestrator sequences one turn through the pipeline: safety gate,
// memory grounding, retrieval augmentation, consistency checking,
// repetition scoring, and personality variation, in that order, with a
// fixed priority rule table. It must always answer: stage failures
// degrade to the last good draft, never to an error.
type Orchestrator struct {
	cfg       *config.Config
	tracer    pipelineports.Tracer
	crisis    CrisisAssessor
	concerns  *safety.ConcernDetector
	registers *safety.RegisterClassifier
	composer  *safety.ReplyComposer
	memory    *memory.Store
	retrieval *retrieval.Service
	guard     *consistency.Guard
	detector  *repetition.Detector
	variator  *personality.Variator

	rules []ReplyRule
}

// turnState carries one turn's working data through the rule table.
type turnState struct {
	utterance string
	history   *conversation.History
	turnCount int

	register   safety.Register
	assessment safety.Assessment
	assessErr  error
	record     memory.Record
	analysis   repetition.Analysis

	draft      string
	mode       personality.Mode
	tag        conversation.ConcernTag
	terminal   bool
	violations []RuleViolation
}

// NewOrchestrator wires the pipeline stages behind the priority rule
// table: safety 10, memory retention 10 (checked second by table order),
// meaning integration 9.8, spontaneity variation 9.5.
func NewOrchestrator(opts Options) (*Orchestrator, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	tracer := opts.Tracer
	if tracer == nil {
		tracer = pipelineports.NopTracer{}
	}
	crisis := opts.Crisis
	if crisis == nil {
		crisis = safety.NewCrisisDetector(opts.Config.Safety.HeuristicEnable)
	}
	resources := opts.Resources
	if resources == nil {
		resources = safety.NewResourceDirectory()
	}
	variator := opts.Variator
	if variator == nil {
		var err error
		variator, err = personality.NewVariator(opts.Config.Personality)
		if err != nil {
			return nil, err
		}
	}

	store := memory.NewStore(opts.Config.Memory)
	o := &Orchestrator{
		cfg:       opts.Config,
		tracer:    tracer,
		crisis:    crisis,
		concerns:  safety.NewConcernDetector(),
		registers: safety.NewRegisterClassifier(),
		composer:  safety.NewReplyComposer(resources),
		memory:    store,
		retrieval: opts.Retrieval,
		guard:     consistency.NewGuard(store),
		detector:  repetition.NewDetector(opts.Config.Repetition),
		variator:  variator,
	}
	o.rules = sortRules([]ReplyRule{
		{Name: "safety", Priority: 10, Predicate: o.safetyPredicate, Handler: o.safetyHandler},
		{Name: "memory_retention", Priority: 10, Predicate: alwaysFires, Handler: o.groundingHandler},
		{Name: "meaning_integration", Priority: 9.8, Predicate: o.meaningPredicate, Handler: o.meaningHandler},
		{Name: "spontaneity_variation", Priority: 9.5, Predicate: alwaysFires, Handler: o.variationHandler},
	})
	return o, nil
}

// Process turns one utterance into a reply. It never returns an error:
// internal failures degrade toward the best available draft, and the
// completed turn is appended to history exactly once on every path.
func (o *Orchestrator) Process(ctx context.Context, utterance string, history *conversation.History, turnCount int) Reply {
	if history == nil {
		history = conversation.NewHistory()
	}
	if o.cfg.Pipeline.TurnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.Pipeline.TurnTimeout)
		defer cancel()
	}

	ctx, end := o.tracer.StartSpan(ctx, "process_turn", map[string]any{"turn_count": turnCount})
	defer end(nil)

	st := &turnState{
		utterance: utterance,
		history:   history,
		turnCount: turnCount,
		register:  o.registers.Classify(utterance),
		tag:       o.concerns.Detect(utterance),
	}
	st.draft = composeBaseDraft(utterance, st.register, turnCount)

	for i := range o.rules {
		rule := &o.rules[i]
		if ctx.Err() != nil {
			// Turn budget spent; deliver the best draft assembled so far.
			o.tracer.Event(ctx, "turn_budget_exceeded", map[string]any{"rule": rule.Name})
			break
		}
		detected := rule.Predicate(st)
		st.violations = append(st.violations, RuleViolation{RuleName: rule.Name, Priority: rule.Priority, Detected: detected})
		if detected {
			rule.Handler(ctx, st)
		}
		if st.terminal {
			break
		}
	}

	return o.commit(ctx, st)
}

// commit finalizes the turn: enforces memory referencing on non-crisis
// replies, then appends the user and agent turns to history.
func (o *Orchestrator) commit(ctx context.Context, st *turnState) Reply {
	if !st.terminal {
		var rewritten bool
		st.draft, rewritten = o.memory.EnsureReference(st.draft, st.record, st.turnCount)
		if rewritten {
			for i := range st.violations {
				if st.violations[i].RuleName == "memory_retention" {
					st.violations[i].Detected = true
				}
			}
			o.tracer.Event(ctx, "memory_reference_enforced", map[string]any{"turn_count": st.turnCount})
		}
	}

	userTurn := conversation.NewTurn(st.utterance, conversation.SpeakerUser)
	userTurn.ConcernTag = st.tag
	st.history.Append(userTurn)
	st.history.Append(conversation.NewTurn(st.draft, conversation.SpeakerAgent))

	return Reply{
		Text:       st.draft,
		ConcernTag: st.tag,
		Mode:       st.mode,
		Crisis:     st.terminal && st.assessment.IsCrisis,
		Repetition: st.analysis,
		Violations: st.violations,
	}
}

// safetyPredicate runs crisis assessment. A panicking detector counts as
// a detection: the handler must still produce a safety-oriented reply.
func (o *Orchestrator) safetyPredicate(st *turnState) bool {
	func() {
		defer func() {
			if r := recover(); r != nil {
				st.assessErr = fmt.Errorf("crisis detector panicked: %v", r)
			}
		}()
		st.assessment = o.crisis.Assess(st.utterance, st.history)
	}()
	return st.assessErr != nil || st.assessment.IsCrisis
}

// safetyHandler produces the terminal crisis reply. No downstream stage
// may alter it. A detector failure yields the hard-coded resources
// message, the one path that overrides "always answer" with "always
// answer safety-oriented".
func (o *Orchestrator) safetyHandler(ctx context.Context, st *turnState) {
	if st.assessErr != nil {
		o.tracer.Event(ctx, "crisis_detector_failed", map[string]any{"error": st.assessErr.Error()})
		st.draft = safety.FallbackReply()
		st.terminal = true
		return
	}
	st.tag = st.assessment.Category.Tag()
	st.draft = o.composer.Compose(st.assessment)
	st.terminal = true
	o.tracer.Event(ctx, "crisis_short_circuit", map[string]any{
		"category": st.assessment.Category.String(),
		"severity": st.assessment.Severity.String(),
	})
}

// groundingHandler is the memory-retention rule's working half: derive
// the memory record, augment the draft from the retrieval corpus, and run
// the consistency guard. Each stage is individually recoverable; a failed
// stage keeps the pre-stage draft.
func (o *Orchestrator) groundingHandler(ctx context.Context, st *turnState) {
	o.guarded(ctx, "memory_read", st, func(context.Context) {
		st.record = o.memory.Read(st.history)
	})
	if o.retrieval != nil {
		o.guarded(ctx, "retrieval", st, o.retrievalStage(st))
	}
	o.guarded(ctx, "consistency_guard", st, func(context.Context) {
		finding := o.guard.Check(st.draft, st.utterance, st.history)
		st.draft = finding.Corrected
	})
}

// retrievalStage augments the draft with retrieved content when the
// confidence clears the insertion threshold, and falls back to the
// lexical reranker otherwise. Bounded by the per-stage budget.
func (o *Orchestrator) retrievalStage(st *turnState) func(ctx context.Context) {
	return func(ctx context.Context) {
		if o.cfg.Pipeline.StageTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, o.cfg.Pipeline.StageTimeout)
			defer cancel()
		}
		result, err := o.retrieval.Retrieve(ctx, st.utterance, st.history)
		if err == nil && o.retrieval.Usable(result) {
			st.draft = retrieval.Integrate(st.draft, result.Content)
			return
		}
		st.draft = o.retrieval.Rerank(st.draft, st.utterance)
	}
}

// meaningPredicate gates the meaning layer: never on casual talk, never
// in the opening turns.
func (o *Orchestrator) meaningPredicate(st *turnState) bool {
	return st.register != safety.RegisterCasual && st.turnCount > o.cfg.Personality.MeaningMinTurn
}

func (o *Orchestrator) meaningHandler(ctx context.Context, st *turnState) {
	o.guarded(ctx, "meaning_integration", st, func(context.Context) {
		st.draft = o.variator.MeaningLayer(st.draft, st.register, st.turnCount)
	})
}

// variationHandler scores the draft against recent replies and applies
// personality variation, regenerating the opening when repetition
// pressure demands a perspective shift.
func (o *Orchestrator) variationHandler(ctx context.Context, st *turnState) {
	o.guarded(ctx, "spontaneity_variation", st, func(context.Context) {
		window := o.cfg.Repetition.ReplyWindow
		st.analysis = o.detector.Score(st.draft, turnTexts(st.history.LastAgentTurns(window)), turnTexts(st.history.LastUserTurns(window)))
		st.mode = o.variator.SelectMode(st.register)
		st.draft = o.variator.Vary(st.draft, st.mode, st.analysis)
	})
}

// guarded runs a stage inside a tracing span with panic recovery. On
// panic the pre-stage draft is restored, so a broken stage can only cost
// its own contribution, never the reply.
func (o *Orchestrator) guarded(ctx context.Context, name string, st *turnState, fn func(context.Context)) {
	prior := st.draft
	sctx, end := o.tracer.StartSpan(ctx, name, nil)
	defer func() {
		if r := recover(); r != nil {
			st.draft = prior
			end(fmt.Errorf("stage panicked: %v", r))
			return
		}
		end(nil)
	}()
	fn(sctx)
}

func alwaysFires(*turnState) bool { return true }

func turnTexts(turns []conversation.Turn) []string {
	texts := make([]string, len(turns))
	for i, t := range turns {
		texts[i] = t.Text
	}
	return texts
}
