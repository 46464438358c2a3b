// Command fluxctl is the operator CLI for a running fluxmap server, plus a
// couple of local utilities (demo seeding, token minting) that need no
// server at all.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "fluxctl:", err)
		os.Exit(1)
	}
}
