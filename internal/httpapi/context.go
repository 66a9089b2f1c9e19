package httpapi

import (
	"context"
)

// serverBaseCtx is a process-level context that can be canceled on shutdown.
// Defaults to Background if not set.
var serverBaseCtx = context.Background()

// SetBaseContext sets the process-level base context used by handlers.
func SetBaseContext(ctx context.Context) {
	if ctx == nil {
		serverBaseCtx = context.Background()
		return
	}
	serverBaseCtx = ctx
}

// joinContexts returns a context that is canceled when either a or b is done.
// Values are read from b. The returned cancel func must be called to release
// the goroutine when the handler ends.
func joinContexts(a, b context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(b)
	go func() {
		select {
		case <-a.Done():
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

type ctxKey int

const extKey ctxKey = iota

// withExt records the URL extension stripped by stripExtension.
func withExt(ctx context.Context, ext string) context.Context {
	return context.WithValue(ctx, extKey, ext)
}

// extFrom returns the stripped URL extension, "" when none.
func extFrom(ctx context.Context) string {
	v, _ := ctx.Value(extKey).(string)
	return v
}
