package async

import (
	"context"
	"runtime/debug"

	"github.com/m-mizutani/ctxlog"
)

// Dispatch executes a handler function asynchronously with panic recovery.
// The handler gets a fresh background context so that the caller finishing
// (e.g. the webhook HTTP response being written) does not cancel the work;
// the caller's logger is preserved on the new context.
//
// Errors returned by the handler and recovered panics are logged, not
// propagated; Dispatch is fire-and-forget.
func Dispatch(ctx context.Context, name string, handler func(ctx context.Context) error) {
	newCtx := detach(ctx)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ctxlog.From(newCtx).Error("panic in async handler",
					"name", name,
					"recover", r,
					"stack", string(debug.Stack()))
			}
		}()

		if err := handler(newCtx); err != nil {
			ctxlog.From(newCtx).Error("error in async handler",
				"name", name,
				"error", err)
		}
	}()
}

// detach returns a background context carrying the original context's logger
func detach(ctx context.Context) context.Context {
	return ctxlog.With(context.Background(), ctxlog.From(ctx))
}
