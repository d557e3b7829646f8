package tx

import (
	"context"
	"sync"
)

type hooksKey struct{}

type afterCommitHooks struct {
	mu  sync.Mutex
	fns []func()
}

// AfterCommit defers fn until the outermost transaction carried by ctx
// commits. Hooks are dropped when the transaction rolls back. Without a
// transaction in ctx fn runs immediately.
func AfterCommit(ctx context.Context, fn func()) {
	if h, ok := ctx.Value(hooksKey{}).(*afterCommitHooks); ok {
		h.mu.Lock()
		h.fns = append(h.fns, fn)
		h.mu.Unlock()
		return
	}
	fn()
}

func withHooks(ctx context.Context) (context.Context, *afterCommitHooks) {
	h := &afterCommitHooks{}
	return context.WithValue(ctx, hooksKey{}, h), h
}

func (h *afterCommitHooks) run() {
	h.mu.Lock()
	fns := h.fns
	h.fns = nil
	h.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}
