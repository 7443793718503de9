package intake

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	model "github.com/zhouzirui/z-intake/backend/internal/model/intake"
	"github.com/zhouzirui/z-intake/backend/internal/schema"
	"github.com/zhouzirui/z-intake/backend/internal/service/ai"
	"github.com/zhouzirui/z-intake/backend/internal/service/persist"
)

// interpret calls the interpreter with a per-call timeout, retrying transport
// failures. ErrNotUnderstood is returned straight away, and so is the
// caller's context error once ctx is done.
func (c *Coordinator) interpret(ctx context.Context, s *model.Session, utterance string) (ai.Interpretation, error) {
	req := ai.Request{
		SessionID: s.ID,
		Phase:     s.Phase,
		Category:  s.Category,
		Utterance: utterance,
		Expected:  c.expectedFields(s),
		// the utterance itself is the last transcript entry
		History: append([]model.Message(nil), s.Transcript[:len(s.Transcript)-1]...),
	}

	attempts := 0
	op := func() (ai.Interpretation, error) {
		attempts++
		in, err := c.interpretOnce(ctx, req)
		if err != nil && (isNotUnderstood(err) || ctx.Err() != nil) {
			return ai.Interpretation{}, backoff.Permanent(err)
		}
		return in, err
	}
	notify := func(err error, delay time.Duration) {
		c.logger.Warn("interpreter call failed, retrying",
			zap.String("session_id", s.ID),
			zap.Int("attempt", attempts),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
	}

	policy := persist.Backoff(ctx, c.cfg.InterpretAttempts, c.cfg.InterpretRetryDelay)
	in, err := backoff.RetryNotifyWithTimerAndData(op, policy, notify, c.timer)
	switch {
	case err == nil:
		if in.Fields == nil {
			in.Fields = model.Fields{}
		}
		return in, nil
	case isNotUnderstood(err):
		return ai.Interpretation{}, err
	case ctx.Err() != nil:
		return ai.Interpretation{}, ctx.Err()
	}
	return ai.Interpretation{}, fmt.Errorf("%w after %d attempts: %w", ErrInterpreterUnavailable, attempts, err)
}

// callContext bounds one outbound model call.
func (c *Coordinator) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.InterpretTimeout > 0 {
		return context.WithTimeout(ctx, c.cfg.InterpretTimeout)
	}
	return context.WithCancel(ctx)
}

func (c *Coordinator) interpretOnce(ctx context.Context, req ai.Request) (ai.Interpretation, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()
	return c.interpreter.Interpret(ctx, req)
}

func (c *Coordinator) expectedFields(s *model.Session) []schema.Field {
	coll, ok := c.activeCollector(s)
	if !ok {
		return nil
	}
	return coll.RequiredSchema().Fields
}

func isNotUnderstood(err error) bool {
	return errors.Is(err, ai.ErrNotUnderstood)
}
