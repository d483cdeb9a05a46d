package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/andywolf/groupcomments/internal/cli"
)

func main() {
	// Setup context with cancellation on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// cobra has already printed the error
	if err := cli.Execute(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
