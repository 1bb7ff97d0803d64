package server

import (
	"context"
	"os/signal"
	"syscall"
)

// WithSignal returns a context that is cancelled on SIGINT or SIGTERM.
// The returned stop function releases the signal handler.
func WithSignal(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
}
