// Package intake runs the analytics-request intake conversation: it owns
// every session, interprets each user turn and moves the session through
// basic info, classification, requirements, validation and persistence.
package intake

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	model "github.com/zhouzirui/z-intake/backend/internal/model/intake"
	"github.com/zhouzirui/z-intake/backend/internal/schema"
	"github.com/zhouzirui/z-intake/backend/internal/service/ai"
	"github.com/zhouzirui/z-intake/backend/internal/service/collect"
	"github.com/zhouzirui/z-intake/backend/internal/service/persist"
)

// Config tunes the coordinator.
type Config struct {
	// SessionTTL is how long a session may sit idle. Zero disables expiry.
	SessionTTL time.Duration
	// InterpretTimeout bounds one interpreter call. Zero means no bound.
	InterpretTimeout    time.Duration
	InterpretAttempts   int
	InterpretRetryDelay time.Duration
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		SessionTTL:          30 * time.Minute,
		InterpretTimeout:    20 * time.Second,
		InterpretAttempts:   3,
		InterpretRetryDelay: 200 * time.Millisecond,
	}
}

// TurnResult is what the caller gets back for one turn.
type TurnResult struct {
	SessionID     string             `json:"sessionId"`
	Prompt        string             `json:"prompt"`
	Phase         model.Phase        `json:"phase"`
	Transitions   []model.Transition `json:"transitions,omitempty"`
	RecordID      string             `json:"recordId,omitempty"`
	FailureReason string             `json:"failureReason,omitempty"`
}

// Done reports whether the session reached a terminal phase.
func (r TurnResult) Done() bool {
	return r.Phase.Terminal()
}

type phaseHandler func(ctx context.Context, t *turn, in ai.Interpretation)

// Coordinator is the single owner of intake sessions.
type Coordinator struct {
	store       *sessionStore
	interpreter ai.Interpreter
	persister   persist.Persister
	summarizer  ai.Summarizer
	basic       collect.Collector
	collectors  map[model.Category]collect.Collector
	phases      map[model.Phase]phaseHandler

	cfg    Config
	logger *zap.Logger
	now    func() time.Time
	newID  func() string
	timer  backoff.Timer
}

// Option customises a Coordinator.
type Option func(*Coordinator)

// WithSummarizer replaces the template summary written after a save.
func WithSummarizer(s ai.Summarizer) Option {
	return func(c *Coordinator) {
		if s != nil {
			c.summarizer = s
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// WithIDGenerator overrides session id generation.
func WithIDGenerator(newID func() string) Option {
	return func(c *Coordinator) {
		if newID != nil {
			c.newID = newID
		}
	}
}

// New builds a coordinator around an interpreter and a persister.
func New(interpreter ai.Interpreter, persister persist.Persister, cfg Config, logger *zap.Logger, opts ...Option) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.InterpretAttempts <= 0 {
		cfg.InterpretAttempts = 1
	}

	c := &Coordinator{
		store:       newSessionStore(),
		interpreter: interpreter,
		persister:   persister,
		summarizer:  ai.TemplateSummarizer{},
		basic:       collect.NewBasicInfo(logger),
		collectors:  collect.Table(logger),
		cfg:         cfg,
		logger:      logger.With(zap.String("component", "coordinator")),
		now:         func() time.Time { return time.Now().UTC() },
		newID:       uuid.NewString,
	}
	c.phases = map[model.Phase]phaseHandler{
		model.PhaseCollectingBasicInfo:    c.collectBasicInfo,
		model.PhaseClassifying:            c.classifyRequest,
		model.PhaseCollectingRequirements: c.collectRequirements,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StartSession opens a new session and returns the greeting.
func (c *Coordinator) StartSession(_ context.Context) (model.Session, TurnResult) {
	now := c.now()
	session := model.NewSession(c.newID(), now)

	greeting := c.greeting()
	session.Transcript = append(session.Transcript, model.Message{
		Sender:    model.SenderAssistant,
		Content:   greeting,
		CreatedAt: now,
	})

	c.store.create(session)
	c.logger.Info("session started", zap.String("session_id", session.ID))

	return session.Clone(), TurnResult{
		SessionID: session.ID,
		Prompt:    greeting,
		Phase:     session.Phase,
	}
}

// Session returns a snapshot of the session as of its last finished turn.
func (c *Coordinator) Session(_ context.Context, sessionID string) (model.Session, error) {
	e, err := c.store.get(sessionID)
	if err != nil {
		return model.Session{}, err
	}
	return e.view(), nil
}

// ActiveSessions reports how many sessions are held in memory.
func (c *Coordinator) ActiveSessions() int {
	return c.store.len()
}

// HandleTurn processes one user utterance. Turns on the same session are
// serialised; turns on different sessions run independently.
func (c *Coordinator) HandleTurn(ctx context.Context, sessionID, utterance string) (TurnResult, error) {
	e, err := c.store.get(sessionID)
	if err != nil {
		return TurnResult{SessionID: sessionID}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.publish()

	s := &e.session
	t := &turn{session: s}
	now := c.now()

	if s.Phase.Terminal() {
		t.say(closedPrompt(s))
		return t.finish(), ErrSessionClosed
	}
	if c.expired(s, now) {
		c.fail(t, ReasonSessionTimeout, ErrSessionTimeout)
		c.store.remove(s.ID)
		return t.finish(), ErrSessionTimeout
	}

	utterance = strings.TrimSpace(utterance)
	if utterance == "" {
		t.say("I didn't catch that. " + c.currentPrompt(s))
		return t.finish(), nil
	}

	s.Transcript = append(s.Transcript, model.Message{Sender: model.SenderUser, Content: utterance, CreatedAt: now})

	in, err := c.interpret(ctx, s, utterance)
	if err != nil && !isNotUnderstood(err) && ctx.Err() != nil {
		// the caller gave up: forget the utterance, the session stays where it was
		s.Transcript = s.Transcript[:len(s.Transcript)-1]
		return t.finish(), ctx.Err()
	}

	// a save that has started must not be torn down by a departing caller
	ctx = context.WithoutCancel(ctx)
	switch {
	case isNotUnderstood(err):
		c.logger.Debug("utterance not understood", zap.String("session_id", s.ID), zap.Error(err))
		t.say("Sorry, I didn't quite follow that. " + c.currentPrompt(s))
	case err != nil:
		c.fail(t, ReasonInterpreterUnavailable, err)
	default:
		handler, ok := c.phases[s.Phase]
		if !ok {
			c.fail(t, ReasonInvalidTransition, fmt.Errorf("%w: no handler for phase %s", ErrInvalidTransition, s.Phase))
			break
		}
		handler(ctx, t, in)
	}

	s.LastUpdatedAt = c.now()
	if t.result.Prompt != "" {
		s.Transcript = append(s.Transcript, model.Message{
			Sender:    model.SenderAssistant,
			Content:   t.result.Prompt,
			CreatedAt: s.LastUpdatedAt,
		})
	}
	return t.finish(), nil
}

func (c *Coordinator) expired(s *model.Session, now time.Time) bool {
	return c.cfg.SessionTTL > 0 && now.Sub(s.LastUpdatedAt) > c.cfg.SessionTTL
}

// activeCollector is the collector responsible for the session's phase.
func (c *Coordinator) activeCollector(s *model.Session) (collect.Collector, bool) {
	switch s.Phase {
	case model.PhaseCollectingBasicInfo:
		return c.basic, true
	case model.PhaseCollectingRequirements, model.PhaseValidating:
		coll, ok := c.collectors[s.Category]
		return coll, ok
	}
	return nil, false
}

func (c *Coordinator) greeting() string {
	var b strings.Builder
	b.WriteString("Hi! I'll help you put together a request for the analytics team. ")
	b.WriteString("First, a few details about you:")
	for _, f := range c.basic.RequiredSchema().Fields {
		b.WriteString("\n- ")
		b.WriteString(f.Question)
	}
	return b.String()
}

// currentPrompt repeats whatever the session is waiting for.
func (c *Coordinator) currentPrompt(s *model.Session) string {
	switch s.Phase {
	case model.PhaseClassifying:
		return disambiguationPrompt
	case model.PhaseCollectingBasicInfo:
		return c.pendingPrompt(c.basic, s.BasicFields)
	}
	if s.Phase.Terminal() {
		return closedPrompt(s)
	}
	coll, ok := c.activeCollector(s)
	if !ok {
		return disambiguationPrompt
	}
	return c.pendingPrompt(coll, s.Requirements.Fields)
}

func (c *Coordinator) pendingPrompt(coll collect.Collector, fields model.Fields) string {
	sch := coll.RequiredSchema()
	if p := collect.Prompt(sch, schema.Validate(fields, sch), nil); p != "" {
		return p
	}
	return "Could you tell me a bit more?"
}

func closedPrompt(s *model.Session) string {
	if s.Phase == model.PhaseComplete {
		return fmt.Sprintf("This request is already saved (reference %s). Start a new session for another request.", s.RecordID)
	}
	return fmt.Sprintf("This session has ended (%s). Please start a new session.", s.FailureReason)
}
