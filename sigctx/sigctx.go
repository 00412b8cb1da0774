// Package sigctx provides a context that ends on interrupt.
package sigctx

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// New returns a context canceled by SIGINT or SIGTERM. A second signal
// kills the process via the default handler, so a stuck shutdown can still
// be interrupted.
func New() context.Context {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		cancel()
	}()
	return ctx
}
