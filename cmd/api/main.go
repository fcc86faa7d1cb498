package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	_ "slackpost/docs/swagger"
	"slackpost/internal/app"
)

// @title slackpost API
// @version 1.0
// @description Relay for posting messages and images to Slack channels.
// @BasePath /
// @schemes http https
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx)
	if err != nil {
		log.Fatalf("failed to initialize app: %v", err)
	}

	if err := application.Run(ctx); err != nil {
		log.Fatalf("relay stopped with error: %v", err)
	}
}
