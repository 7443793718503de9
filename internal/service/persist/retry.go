package persist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/zhouzirui/z-intake/backend/internal/model/intake"
)

// RetryConfig bounds the retries applied to transient write failures.
type RetryConfig struct {
	Attempts  int
	BaseDelay time.Duration
}

// DefaultRetryConfig is three attempts with 100ms, 200ms backoff between them.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{Attempts: 3, BaseDelay: 100 * time.Millisecond}
}

// Retrying wraps a Persister and retries transient save failures with
// exponential backoff. Permanent failures (see IsTransient) are returned
// after the first attempt.
type Retrying struct {
	next   Persister
	cfg    RetryConfig
	logger *zap.Logger
	timer  backoff.Timer
}

// WithRetry wraps next.
func WithRetry(next Persister, cfg RetryConfig, logger *zap.Logger) *Retrying {
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retrying{
		next:   next,
		cfg:    cfg,
		logger: logger.With(zap.String("component", "persist.retry")),
	}
}

// Backoff returns the doubling, unjittered schedule used between attempts:
// base, 2*base, 4*base, until attempts calls have been made or ctx ends.
func Backoff(ctx context.Context, attempts int, base time.Duration) backoff.BackOffContext {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = base
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxInterval = time.Hour
	exp.MaxElapsedTime = 0
	if attempts < 1 {
		attempts = 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(attempts-1)), ctx)
}

// Save implements Persister.
func (r *Retrying) Save(ctx context.Context, record intake.SavedRecord) (string, error) {
	attempts := 0
	op := func() (string, error) {
		attempts++
		id, err := r.next.Save(ctx, record)
		if err != nil && !IsTransient(err) {
			return "", backoff.Permanent(err)
		}
		return id, err
	}
	notify := func(err error, delay time.Duration) {
		r.logger.Warn("save failed, retrying",
			zap.String("session_id", record.Metadata.SessionID),
			zap.Int("attempt", attempts),
			zap.Duration("delay", delay),
			zap.Error(err))
	}

	id, err := backoff.RetryNotifyWithTimerAndData(op, Backoff(ctx, r.cfg.Attempts, r.cfg.BaseDelay), notify, r.timer)
	if err == nil {
		return id, nil
	}
	if errors.Is(err, ErrAlreadyPersisted) {
		return "", err
	}
	if !errors.Is(err, ErrPersist) {
		err = fmt.Errorf("%w: %w", ErrPersist, err)
	}
	if attempts > 1 {
		err = fmt.Errorf("after %d attempts: %w", attempts, err)
	}
	return "", err
}
