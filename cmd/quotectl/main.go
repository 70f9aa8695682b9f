// Package main is the entry point for quotectl.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jsamuelsen/quote-sync/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	err := cli.NewRootCommand(cli.DefaultEnv).ExecuteContext(ctx)

	stop()

	if err != nil {
		os.Exit(1)
	}
}
