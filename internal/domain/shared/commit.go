package shared

import (
	"context"
	"sync"
)

// CommitHooks collects work that must only run once a unit of work commits.
type CommitHooks struct {
	mu    sync.Mutex
	hooks []func(context.Context)
}

type commitHooksKey struct{}

// WithCommitHooks returns a context that defers OnCommit callbacks to the
// returned collector.
func WithCommitHooks(ctx context.Context) (context.Context, *CommitHooks) {
	h := &CommitHooks{}
	return context.WithValue(ctx, commitHooksKey{}, h), h
}

// OnCommit runs fn after the enclosing unit of work commits, or right away
// outside one. Callbacks of a rolled back unit never run.
func OnCommit(ctx context.Context, fn func(context.Context)) {
	h, ok := ctx.Value(commitHooksKey{}).(*CommitHooks)
	if !ok {
		fn(ctx)
		return
	}
	h.mu.Lock()
	h.hooks = append(h.hooks, fn)
	h.mu.Unlock()
}

// Run calls the collected callbacks in registration order.
func (h *CommitHooks) Run(ctx context.Context) {
	h.mu.Lock()
	hooks := h.hooks
	h.hooks = nil
	h.mu.Unlock()
	for _, fn := range hooks {
		fn(ctx)
	}
}
