package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ranitraj/instaLens/internal/app"
	"github.com/ranitraj/instaLens/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.NewApp(config.Load())
	if err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}

	if err := application.Run(ctx); err != nil {
		log.Fatalf("Server stopped: %v", err)
	}
}
