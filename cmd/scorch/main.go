// Command scorch scores coreference clusterings against a gold standard.
//
//	scorch gold.json sys.json out.txt
//	scorch gold/ sys/ out.txt
//	scorch conll input.conll out/
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
