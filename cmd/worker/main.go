package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/unclebandit/civic-notify/internal/app"
	"github.com/unclebandit/civic-notify/internal/config"
)

func main() {
	cfg := config.MustLoad()
	if cfg.AMQPURL == "" {
		log.Fatal("AMQP_URL is required for the standalone worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal("❌ startup failed: ", err)
	}
	defer a.Close()

	// Runs finish their current batch on shutdown; an interrupted campaign
	// stays in sending and is picked up again by a continue job.
	if err := a.Subscribe(ctx); err != nil {
		log.Fatal("Failed to register consumer:", err)
	}

	log.Println("Worker running, waiting for campaign jobs on", cfg.CampaignQueue)
	<-ctx.Done()
	log.Println("🛑 Worker stopping")
}
