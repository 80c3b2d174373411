package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/alphaboost/console/internal/console"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root := console.NewRootCommand(os.Stdin, os.Stdout)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "alphactl: %s\n", console.Describe(err))
		os.Exit(1)
	}
}
