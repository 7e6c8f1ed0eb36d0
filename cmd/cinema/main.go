// Command cinema is the interactive terminal client for customers and admins.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/robertarktes/cinema-seat-booking/internal/app"
	"github.com/robertarktes/cinema-seat-booking/internal/config"
	"github.com/robertarktes/cinema-seat-booking/internal/observability"
	"github.com/robertarktes/cinema-seat-booking/internal/terminal"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := observability.NewLoggerTo(os.Stderr, logrus.WarnLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("failed to start: %v", err)
	}
	defer a.Close()

	session := terminal.NewSession(terminal.Services{
		Accounts: a.Accounts,
		Catalog:  a.Catalog,
		Bookings: a.Bookings,
		Reports:  a.Reports,
	}, os.Stdin, os.Stdout, logger)
	if err := session.Run(ctx); err != nil {
		logger.WithError(err).Error("session ended")
		os.Exit(1)
	}
}
