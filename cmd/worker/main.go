package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"letterbox/internal/app/bootstrap"
)

// Worker process entrypoint.
// Data flow:
// 1) Load config.
// 2) Build app wiring.
// 3) Run the issue delivery loops, or drain the queue once with -drain.
func main() {
	drain := flag.Bool("drain", false, "process queued deliveries until the queue is empty, then exit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.BuildWorker()
	if err != nil {
		log.Fatalf("bootstrap worker failed: %v", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Printf("worker shutdown close failed: %v", err)
		}
	}()

	if *drain {
		processed, err := app.Drain(ctx)
		if err != nil {
			log.Printf("letterbox worker drain stopped with error after %d deliveries: %v", processed, err)
		}
		return
	}
	if err := app.Run(ctx); err != nil {
		log.Printf("letterbox worker stopped with error: %v", err)
	}
}
