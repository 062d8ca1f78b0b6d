package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/mamaar/rsrefactor/internal/cli"
	"github.com/mamaar/rsrefactor/internal/cli/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	app := cli.NewApp(os.Stdout, os.Stderr)
	commands.Register(app)
	if err := app.Execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
