package intake

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// ExpireIdle fails and evicts every session idle for longer than the TTL as
// of now. Sessions in the middle of a turn are skipped until the next sweep.
// Nothing is persisted. It returns the number of sessions moved to FAILED.
func (c *Coordinator) ExpireIdle(_ context.Context, now time.Time) int {
	if c.cfg.SessionTTL <= 0 {
		return 0
	}

	expired := 0
	for _, e := range c.store.entries() {
		if !e.mu.TryLock() {
			continue
		}
		s := &e.session
		if c.expired(s, now) {
			if !s.Phase.Terminal() {
				c.fail(&turn{session: s}, ReasonSessionTimeout, ErrSessionTimeout)
				expired++
			}
			c.store.remove(s.ID)
			e.publish()
		}
		e.mu.Unlock()
	}

	if expired > 0 {
		c.logger.Info("expired idle sessions", zap.Int("count", expired))
	}
	return expired
}

// RunSweeper calls ExpireIdle every interval until ctx is cancelled.
func (c *Coordinator) RunSweeper(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.logger.Info("session sweeper started", zap.Duration("interval", interval), zap.Duration("ttl", c.cfg.SessionTTL))
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("session sweeper stopped")
			return nil
		case <-ticker.C:
			c.ExpireIdle(ctx, c.now())
		}
	}
}

// StartSweeper runs RunSweeper in the background. The returned channel is
// closed once the sweeper has stopped.
func (c *Coordinator) StartSweeper(ctx context.Context, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.RunSweeper(ctx, interval)
	}()
	return done
}
