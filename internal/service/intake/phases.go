package intake

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	model "github.com/zhouzirui/z-intake/backend/internal/model/intake"
	"github.com/zhouzirui/z-intake/backend/internal/schema"
	"github.com/zhouzirui/z-intake/backend/internal/service/ai"
	"github.com/zhouzirui/z-intake/backend/internal/service/classify"
	"github.com/zhouzirui/z-intake/backend/internal/service/collect"
	"github.com/zhouzirui/z-intake/backend/internal/service/persist"
)

const disambiguationPrompt = "What kind of analytics help do you need: a one-off report, " +
	"a new or changed dashboard, or an update to an existing report?"

// turn carries the state of one HandleTurn call.
type turn struct {
	session *model.Session
	result  TurnResult
}

func (t *turn) say(prompt string) {
	t.result.Prompt = prompt
}

func (t *turn) finish() TurnResult {
	t.result.SessionID = t.session.ID
	t.result.Phase = t.session.Phase
	t.result.RecordID = t.session.RecordID
	t.result.FailureReason = t.session.FailureReason
	return t.result
}

func (c *Coordinator) advance(t *turn, to model.Phase) bool {
	tr, err := t.session.Advance(to)
	if err != nil {
		c.fail(t, ReasonInvalidTransition, err)
		return false
	}
	t.result.Transitions = append(t.result.Transitions, tr)
	c.logger.Info("phase transition",
		zap.String("session_id", t.session.ID),
		zap.String("from", string(tr.From)),
		zap.String("to", string(tr.To)),
	)
	return true
}

// fail moves the session to FAILED. It is a no-op on a terminal session.
func (c *Coordinator) fail(t *turn, reason string, cause error) {
	s := t.session
	if s.Phase.Terminal() {
		return
	}
	tr := model.Transition{From: s.Phase, To: model.PhaseFailed}
	s.Phase = model.PhaseFailed
	s.FailureReason = reason
	t.result.Transitions = append(t.result.Transitions, tr)
	t.say(failurePrompt(reason))

	c.logger.Warn("session failed",
		zap.String("session_id", s.ID),
		zap.String("from", string(tr.From)),
		zap.String("reason", reason),
		zap.Error(cause),
	)
}

func failurePrompt(reason string) string {
	switch reason {
	case ReasonReclassification:
		return "This request was already classified and can't switch to a different type. " +
			"Please start a new session for the other request."
	case ReasonAlreadyPersisted:
		return "A request from this session has already been saved. Please start a new session."
	case ReasonPersistFailed:
		return "Sorry, I couldn't save your request. Please try again in a new session."
	case ReasonInterpreterUnavailable:
		return "Sorry, I'm having trouble understanding requests right now. Please try again later."
	case ReasonSessionTimeout:
		return "This session timed out. Please start a new session."
	default:
		return "Something went wrong with this request. Please start a new session."
	}
}

func (c *Coordinator) collectBasicInfo(ctx context.Context, t *turn, in ai.Interpretation) {
	s := t.session
	if in.Intent != "" {
		s.PendingSignal = in.Intent
	}

	out := c.basic.Collect(in.Fields, s.BasicFields)
	s.BasicFields = out.Fields
	if !out.Result.Complete() {
		t.say(collect.Prompt(c.basic.RequiredSchema(), out.Result, out.Rejected))
		return
	}

	info := model.NewBasicInfo(s.BasicFields, c.now())
	s.BasicInfo = &info
	if !c.advance(t, model.PhaseClassifying) {
		return
	}

	if signal := s.PendingSignal; signal != "" {
		s.PendingSignal = ""
		if c.classifyInto(ctx, t, signal, nil) {
			return
		}
	}
	t.say(fmt.Sprintf("Thanks, %s. %s", info.Name, disambiguationPrompt))
}

func (c *Coordinator) classifyRequest(ctx context.Context, t *turn, in ai.Interpretation) {
	if in.Intent != "" && c.classifyInto(ctx, t, in.Intent, in.Fields) {
		return
	}
	t.say("I couldn't tell which kind of request this is. " + disambiguationPrompt)
}

// classifyInto fixes the session category from signal and opens requirements
// collection. It returns false, leaving the session untouched, when the
// signal names no category.
func (c *Coordinator) classifyInto(ctx context.Context, t *turn, signal string, fields model.Fields) bool {
	s := t.session
	category, err := classify.Must(signal)
	if err != nil {
		c.logger.Debug("signal left unclassified", zap.String("session_id", s.ID), zap.String("signal", signal), zap.Error(err))
		return false
	}

	if err := s.SetCategory(category); err != nil {
		c.fail(t, ReasonReclassification, err)
		return true
	}
	c.logger.Info("session classified", zap.String("session_id", s.ID), zap.String("category", string(category)))

	coll, ok := c.collectors[category]
	if !ok {
		c.fail(t, ReasonSchemaMismatch, fmt.Errorf("%w: no collector for %s", ErrSchemaMismatch, category))
		return true
	}
	if !c.advance(t, model.PhaseCollectingRequirements) {
		return true
	}
	c.gatherRequirements(ctx, t, coll, fields, collect.Intro(coll))
	return true
}

// collectRequirements merges the turn's fields into the requirements. An
// intent naming a different category fails the session with
// reclassification_attempt; an intent that repeats the current category or
// classifies as nothing is ignored and the fields are still merged.
func (c *Coordinator) collectRequirements(ctx context.Context, t *turn, in ai.Interpretation) {
	s := t.session
	if in.Intent != "" {
		if category := classify.Classify(in.Intent); category != model.Unclassified && category != s.Category {
			c.fail(t, ReasonReclassification, s.SetCategory(category))
			return
		}
	}

	coll, ok := c.collectors[s.Category]
	if !ok || s.Requirements.Category != s.Category {
		c.fail(t, ReasonSchemaMismatch, fmt.Errorf("%w: %s", ErrSchemaMismatch, s.Category))
		return
	}
	c.gatherRequirements(ctx, t, coll, in.Fields, "")
}

// gatherRequirements merges delta and, once nothing is missing, validates and
// persists. lead is prepended to any question asked.
func (c *Coordinator) gatherRequirements(ctx context.Context, t *turn, coll collect.Collector, delta model.Fields, lead string) {
	s := t.session
	out := coll.Collect(delta, s.Requirements.Fields)
	s.Requirements.Fields = out.Fields
	if !out.Ready {
		t.say(joinPrompt(lead, out.Prompt))
		return
	}

	if !c.advance(t, model.PhaseValidating) {
		return
	}
	sch := coll.RequiredSchema()
	res := schema.Validate(s.Requirements.Fields, sch)
	if !res.Complete() {
		c.logger.Debug("requirements incomplete", zap.String("session_id", s.ID), zap.Error(res.Err()))
		if !c.advance(t, model.PhaseCollectingRequirements) {
			return
		}
		t.say(joinPrompt(lead, collect.Prompt(sch, res, out.Rejected)))
		return
	}

	if !c.advance(t, model.PhasePersisting) {
		return
	}
	c.persist(ctx, t, sch)
}

func (c *Coordinator) persist(ctx context.Context, t *turn, sch schema.Schema) {
	s := t.session
	keys, fields := sch.Fill(s.Requirements.Fields)
	record, err := model.NewSavedRecord(*s, keys, fields, c.now())
	if err != nil {
		c.fail(t, ReasonSchemaMismatch, fmt.Errorf("%w: %w", ErrSchemaMismatch, err))
		return
	}

	recordID, err := c.persister.Save(ctx, record)
	switch {
	case errors.Is(err, persist.ErrAlreadyPersisted):
		c.fail(t, ReasonAlreadyPersisted, err)
		return
	case err != nil:
		c.fail(t, ReasonPersistFailed, err)
		return
	}

	s.RecordID = recordID
	if !c.advance(t, model.PhaseComplete) {
		return
	}
	c.logger.Info("request saved",
		zap.String("session_id", s.ID),
		zap.String("record_id", recordID),
		zap.String("category", string(s.Category)),
	)

	sctx, cancel := c.callContext(ctx)
	defer cancel()
	summary := c.summarizer.Summarize(sctx, record)
	t.say(fmt.Sprintf("All set! Your request is saved (reference %s) and is pending review by the analytics team.\n\n%s",
		recordID, summary))
}

func joinPrompt(lead, prompt string) string {
	switch {
	case lead == "":
		return prompt
	case prompt == "":
		return lead
	default:
		return lead + "\n" + prompt
	}
}
