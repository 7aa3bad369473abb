package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/kartick026/trafficloud/internal/config"
	"github.com/kartick026/trafficloud/internal/orchestrator"
)

func main() {
	log.Printf("Starting trafficloud service...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	orch := orchestrator.NewOrchestrator(cfg)

	if err := orch.Start(ctx); err != nil {
		log.Fatalf("Failed to start orchestrator: %v", err)
	}

	runErr := orch.Run(ctx)

	if err := orch.Stop(); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Fatalf("Service exited with error: %v", runErr)
	}

	log.Printf("Service stopped")
	os.Exit(0)
}
