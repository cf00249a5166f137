package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

var version = "1.0.0"

func main() {
	useColor = enableANSI()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// First Ctrl+C stops after the current fighter, the second cancels.
	sig := make(chan os.Signal, 2)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		fmt.Fprintf(os.Stderr, "\n\n%s Interrupt received, stopping after the current fighter...\n", clr("yellow", "!"))
		close(interrupted)
		<-sig
		fmt.Fprintf(os.Stderr, "\n%s Second interrupt, cancelling\n", clr("yellow", "!"))
		cancel()
	}()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fatal("%v", err)
	}
}
