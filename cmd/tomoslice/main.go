package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/robert-malhotra/tomoslice/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.ExecuteWithContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "tomoslice:", err)
		os.Exit(1)
	}
}
