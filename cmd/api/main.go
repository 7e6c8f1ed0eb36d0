package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robertarktes/cinema-seat-booking/internal/adapters/rabbit"
	"github.com/robertarktes/cinema-seat-booking/internal/app"
	"github.com/robertarktes/cinema-seat-booking/internal/config"
	httphandler "github.com/robertarktes/cinema-seat-booking/internal/http"
	"github.com/robertarktes/cinema-seat-booking/internal/observability"
	"github.com/robertarktes/cinema-seat-booking/internal/outbox"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdown, err := observability.SetupOTel(context.Background(), cfg)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdown()

	logger := observability.NewLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("failed to start: %v", err)
	}
	defer a.Close()

	handlers := httphandler.NewHandlers(a.Accounts, a.Catalog, a.Bookings, a.Reports, a.Ready)
	r := httphandler.SetupRouter(handlers, httphandler.RouterConfig{
		ServiceName:   cfg.ServiceName,
		IPRateLimit:   cfg.IPRateLimit,
		UserRateLimit: cfg.UserRateLimit,
	}, a.Accounts, logger, a.RateLimiter, a.Idempotency)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithField("addr", cfg.HTTPAddr).Info("http server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutdown Server ...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	// With a broker configured the API relays its own outbox; a separate
	// outbox-publisher is then optional.
	if cfg.RabbitURL != "" {
		conn, err := amqp.Dial(cfg.RabbitURL)
		if err != nil {
			log.Fatalf("failed to connect to rabbitmq: %v", err)
		}
		defer conn.Close()
		pub, err := rabbit.NewPublisher(conn)
		if err != nil {
			log.Fatalf("failed to create publisher: %v", err)
		}
		defer pub.Close()

		relay := outbox.NewPublisher(a.Store, pub, logger.WithField("component", "outbox"), cfg.OutboxInterval)
		g.Go(func() error {
			relay.Run(ctx)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("server stopped with error")
	}
	logger.Info("Server exiting")
}
