package intake

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	model "github.com/zhouzirui/z-intake/backend/internal/model/intake"
)

func TestExpireIdle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, idle := h.coord.StartSession(ctx)
	done := h.toRequirements(t)
	res := h.turn(t, done, fields(reportFields()))
	require.Equal(t, model.PhaseComplete, res.Phase)

	h.clock.Advance(20 * time.Minute)
	_, fresh := h.coord.StartSession(ctx)
	require.Equal(t, 3, h.coord.ActiveSessions())

	require.Equal(t, 0, h.coord.ExpireIdle(ctx, h.clock.Now()))

	h.clock.Advance(15 * time.Minute)
	// the completed session is evicted without counting as a failure
	require.Equal(t, 1, h.coord.ExpireIdle(ctx, h.clock.Now()))
	require.Equal(t, 1, h.coord.ActiveSessions())

	_, err := h.coord.Session(ctx, idle.SessionID)
	require.ErrorIs(t, err, ErrSessionNotFound)
	_, err = h.coord.Session(ctx, fresh.SessionID)
	require.NoError(t, err)

	record, err := h.store.Load(ctx, res.RecordID)
	require.NoError(t, err)
	require.Equal(t, done, record.Metadata.SessionID)
}

func TestExpireIdleDisabled(t *testing.T) {
	coord := New(&scripted{}, nil, Config{}, nil)
	coord.StartSession(context.Background())
	require.Equal(t, 0, coord.ExpireIdle(context.Background(), time.Now().Add(24*time.Hour)))
	require.Equal(t, 1, coord.ActiveSessions())
}

func TestExpireIdleSkipsBusySession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, start := h.coord.StartSession(ctx)

	e, err := h.coord.store.get(start.SessionID)
	require.NoError(t, err)
	e.mu.Lock()
	require.Equal(t, 0, h.coord.ExpireIdle(ctx, h.clock.Now().Add(time.Hour)))
	e.mu.Unlock()

	require.Equal(t, 1, h.coord.ExpireIdle(ctx, h.clock.Now().Add(time.Hour)))
}

func TestStartSweeperStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := newHarness(t)
	h.coord.StartSession(context.Background())
	h.clock.Advance(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := h.coord.StartSweeper(ctx, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		return h.coord.ActiveSessions() == 0
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}
