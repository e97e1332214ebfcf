package bootstrap

import (
	"context"
	"fmt"
)

// Hook is a lifecycle callback that runs during host startup or shutdown.
type Hook func(ctx context.Context) error

// OnStart registers a hook that runs after the environment is assembled and
// its supervisors are started.
func (h *Host[C]) OnStart(hooks ...Hook) {
	h.onStart = append(h.onStart, hooks...)
}

// OnReady registers a warmup hook. Periodic health checks start only after
// every OnReady hook has returned.
func (h *Host[C]) OnReady(hooks ...Hook) {
	h.onReady = append(h.onReady, hooks...)
}

// OnStop registers a hook that runs during graceful shutdown before the
// environment is disposed.
func (h *Host[C]) OnStop(hooks ...Hook) {
	h.onStop = append(h.onStop, hooks...)
}

// runHooks executes a slice of hooks sequentially, returning the first error.
func runHooks(ctx context.Context, hooks []Hook) error {
	for i, h := range hooks {
		if err := h(ctx); err != nil {
			return fmt.Errorf("hook %d failed: %w", i, err)
		}
	}
	return nil
}
