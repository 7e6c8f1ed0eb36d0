// Package app assembles the services of one process from configuration.
package app

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/robertarktes/cinema-seat-booking/internal/account"
	"github.com/robertarktes/cinema-seat-booking/internal/adapters/crdb"
	"github.com/robertarktes/cinema-seat-booking/internal/adapters/memory"
	mongoadapter "github.com/robertarktes/cinema-seat-booking/internal/adapters/mongo"
	redisadapter "github.com/robertarktes/cinema-seat-booking/internal/adapters/redis"
	"github.com/robertarktes/cinema-seat-booking/internal/booking"
	"github.com/robertarktes/cinema-seat-booking/internal/catalog"
	"github.com/robertarktes/cinema-seat-booking/internal/config"
	"github.com/robertarktes/cinema-seat-booking/internal/idempotency"
	"github.com/robertarktes/cinema-seat-booking/internal/observability"
	"github.com/robertarktes/cinema-seat-booking/internal/outbox"
	"github.com/robertarktes/cinema-seat-booking/internal/rateLimit"
	"github.com/robertarktes/cinema-seat-booking/internal/report"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store is everything a single backing store provides.
type Store interface {
	booking.Store
	catalog.Store
	account.Store
	outbox.Source
}

type App struct {
	Store       Store
	Accounts    *account.Service
	Catalog     *catalog.Service
	Bookings    *booking.Service
	Reports     *report.Exporter
	Idempotency *idempotency.Idempotency
	RateLimiter *rateLimit.RateLimiter

	// Ready reports whether the backing store answers.
	Ready func(ctx context.Context) error

	closers []func()
}

// New connects to the configured store and, when their addresses are set,
// to redis and mongo. Without redis, locks, idempotency keys and rate limits
// are kept in process.
func New(ctx context.Context, cfg *config.Config, logger observability.Logger) (*App, error) {
	a := &App{Ready: func(context.Context) error { return nil }}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	switch cfg.StoreDriver {
	case config.StoreCRDB:
		if cfg.MigrateOnStart {
			if err := crdb.Migrate(cfg.CRDBDSN); err != nil {
				return nil, err
			}
			logger.Info("schema migrations applied")
		}
		pool, err := crdb.NewPool(ctx, cfg.CRDBDSN)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pool.Close)
		repo := crdb.NewRepository(pool)
		a.Store = repo
		a.Ready = repo.Ping
	default:
		a.Store = memory.NewStore()
		logger.Warn("using the in-memory store, data is lost on exit")
	}

	a.Accounts = account.NewService(a.Store, logger)
	a.Catalog = catalog.NewService(a.Store, logger)

	opts := []booking.Option{
		booking.WithLockWait(cfg.SeatLockWait),
		booking.WithMaxAttempts(cfg.ReserveMaxAttempts),
	}

	if cfg.RedisAddr != "" {
		client, err := redisadapter.NewClient(ctx, &goredis.Options{Addr: cfg.RedisAddr})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		opts = append(opts, booking.WithLocker(redisadapter.NewShowingLock(client, cfg.SeatLockTTL)))
		a.Idempotency = idempotency.NewIdempotency(redisadapter.NewIdempotency(client), cfg.IdempotencyTTL)
		a.RateLimiter = rateLimit.NewRateLimiter(redisadapter.NewCounter(client), logger)
	} else {
		a.Idempotency = idempotency.NewInMemory(cfg.IdempotencyTTL)
		a.RateLimiter = rateLimit.NewLocal(logger)
	}

	if cfg.MongoURI != "" {
		auditor, err := a.connectMongo(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		opts = append(opts, booking.WithAuditor(auditor))
	}

	a.Bookings = booking.NewService(a.Store, a.Catalog, logger, opts...)
	a.Reports = report.NewExporter(a.Catalog, a.Bookings, logger)

	if cfg.AdminUsername != "" {
		if err := a.Accounts.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword); err != nil {
			return nil, err
		}
	}

	ok = true
	return a, nil
}

func (a *App) connectMongo(ctx context.Context, cfg *config.Config, logger observability.Logger) (*mongoadapter.AuditLogger, error) {
	client, err := ConnectMongo(ctx, cfg.MongoURI)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Disconnect(shutdownCtx)
	})
	auditor := mongoadapter.NewAuditLogger(client.Database(cfg.MongoDB), logger)
	if err := auditor.EnsureIndexes(ctx); err != nil {
		return nil, errors.Wrap(err, "create audit indexes")
	}
	return auditor, nil
}

// ConnectMongo connects and pings the deployment at uri.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(err, "connect to mongo")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(err, "ping mongo")
	}
	return client, nil
}

// Close releases connections in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
