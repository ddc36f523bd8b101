package common

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// Interrupted returns a context that is cancelled on SIGINT, SIGTERM or SIGQUIT.
func Interrupted(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent,
		os.Interrupt,
		syscall.SIGTERM, syscall.SIGQUIT,
	)
}
