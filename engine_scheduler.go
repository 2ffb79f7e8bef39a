package goSession

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// startSchedulerLocked arms the refresh and liveness tickers for the
// session that was just committed. Callers hold commitMu.
func (e *Engine) startSchedulerLocked() {
	if !e.config.Features.SessionManagement || e.closed.Load() {
		return
	}
	e.stopSchedulerLocked()

	ctx, cancel := context.WithCancel(context.Background())
	e.schedCancel = cancel
	e.schedWG.Add(2)
	go e.runTicker(ctx, "refresh_check", e.config.Token.RefreshCheckInterval, e.refreshTick)
	go e.runTicker(ctx, "session_check", e.config.Session.ValidateInterval, e.validateSession)
}

// stopSchedulerLocked cancels the tickers without waiting for a task that
// is mid-flight; such a task finds its epoch stale and commits nothing.
func (e *Engine) stopSchedulerLocked() {
	if e.schedCancel != nil {
		e.schedCancel()
		e.schedCancel = nil
	}
}

func (e *Engine) runTicker(ctx context.Context, name string, interval time.Duration, task func(context.Context) bool) {
	defer e.schedWG.Done()
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			e.runTask(ctx, name, task)
		}
	}
}

func (e *Engine) runTask(ctx context.Context, name string, task func(context.Context) bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("background task panicked", zap.String("task", name), zap.Any("panic", r))
		}
	}()
	if ctx.Err() != nil {
		return
	}
	task(ctx)
}

// refreshTick refreshes only when the lifecycle says it is due.
func (e *Engine) refreshTick(ctx context.Context) bool {
	e.mu.RLock()
	due := e.state.user != nil && e.state.tokens != nil && e.lifecycle.ShouldRefresh(e.state.tokens.ExpiresAt)
	e.mu.RUnlock()
	if !due {
		return true
	}
	return e.refresh(ctx, false)
}
