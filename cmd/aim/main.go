// Package main is the entry point of the aim command line tool. It imports
// market data, classifies the macro regime, scores the universe and builds
// risk-checked portfolios, either on demand or on a cron schedule.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
