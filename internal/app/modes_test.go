package app

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tmcalloway/spreadbot/internal/config"
	"github.com/tmcalloway/spreadbot/internal/domain"
	"github.com/tmcalloway/spreadbot/internal/notify"
)

// heldLockManager refuses every acquisition, as if another replica owns the
// scanner lease.
type heldLockManager struct{}

func (heldLockManager) Acquire(context.Context, string, time.Duration) (func(), error) {
	return nil, domain.ErrLockHeld
}

func (heldLockManager) Refresh(context.Context, string, time.Duration) error {
	return domain.ErrLockHeld
}

func TestFullModeToleratesScannerLockHeldElsewhere(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Defaults()
	cfg.Mode = "full"
	cfg.Server.Enabled = false

	deps := &Dependencies{
		LockManager: heldLockManager{},
		Notifier:    notify.NewNotifier(nil, nil, logger),
	}

	a := New(&cfg, logger)

	// A second full-mode replica must not die just because another instance
	// already scans; the lock refusal is absorbed, not propagated.
	err := a.FullMode(context.Background(), deps)
	require.NoError(t, err)
}
