package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/petergaultney/lemonaid/internal/cli"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app := &cli.App{}
	root := cli.NewRootCmd(app)
	err := root.ExecuteContext(ctx)
	if cerr := app.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "lemonaid: %v\n", err)
		os.Exit(1)
	}
}
