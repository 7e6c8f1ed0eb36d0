package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	mongoadapter "github.com/robertarktes/cinema-seat-booking/internal/adapters/mongo"
	"github.com/robertarktes/cinema-seat-booking/internal/adapters/rabbit"
	"github.com/robertarktes/cinema-seat-booking/internal/app"
	"github.com/robertarktes/cinema-seat-booking/internal/audit"
	"github.com/robertarktes/cinema-seat-booking/internal/config"
	"github.com/robertarktes/cinema-seat-booking/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdownOtel, err := observability.SetupOTel(context.Background(), cfg)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdownOtel()

	logger := observability.NewLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := app.ConnectMongo(ctx, cfg.MongoURI)
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Disconnect(shutdownCtx)
	}()
	auditLog := mongoadapter.NewAuditLogger(client.Database(cfg.MongoDB), logger)
	if err := auditLog.EnsureIndexes(ctx); err != nil {
		log.Fatalf("failed to create audit indexes: %v", err)
	}

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer conn.Close()
	consumer, err := rabbit.NewConsumer(conn, audit.Queue, audit.Pattern)
	if err != nil {
		log.Fatalf("failed to create consumer: %v", err)
	}
	defer consumer.Close()

	deliveries, err := consumer.Consume(ctx)
	if err != nil {
		log.Fatalf("failed to consume %s: %v", audit.Queue, err)
	}

	audit.NewWorker(auditLog, logger).Run(ctx, deliveries)
	logger.Info("Shutdown audit worker")
}
