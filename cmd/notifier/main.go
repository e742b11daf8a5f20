package main // notifier entry point: fan-in consumer of every event topic

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/roadworthy/inspection-platform/internal/config"
	"github.com/roadworthy/inspection-platform/internal/consumer"
	"github.com/roadworthy/inspection-platform/internal/event"
	"github.com/roadworthy/inspection-platform/internal/obs"
)

const serviceName = "notifier-service"

func main() {
	_ = godotenv.Load()
	cfg := config.Load(serviceName)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer := obs.InitTracer(serviceName, cfg.Env)
	defer func() { _ = shutdownTracer(context.Background()) }()

	path := os.Getenv("NOTIFICATION_LOG")
	if path == "" {
		path = "logs/notifications.log"
	}
	notifier, err := consumer.NewNotifier(path)
	if err != nil {
		log.Fatalf("notifier: %v", err)
	}
	defer notifier.Close()

	log.Printf("%s consuming all topics into %s (env=%s)", serviceName, path, cfg.Env)
	if err := event.NewConsumer(serviceName, cfg.AMQPURL, cfg.Exchange, notifier.Keys()).
		Run(ctx, notifier.Handle); err != nil && ctx.Err() == nil {
		log.Fatalf("consumer: %v", err)
	}
}
