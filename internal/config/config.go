package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
)

const (
	StoreCRDB   = "crdb"
	StoreMemory = "memory"
)

type Config struct {
	ServiceName  string
	Env          string
	HTTPAddr     string
	StoreDriver  string
	CRDBDSN      string
	MongoURI     string
	MongoDB      string
	RedisAddr    string
	RabbitURL    string
	OTLPEndpoint string

	// AdminUsername and AdminPassword, when set, provision an admin account at start.
	AdminUsername string
	AdminPassword string

	// SeatLockWait bounds how long a reservation waits for another session
	// working on the same showing.
	SeatLockWait time.Duration
	SeatLockTTL  time.Duration

	ReserveMaxAttempts int

	// Requests per minute allowed for one authenticated user and for one
	// client address.
	UserRateLimit int
	IPRateLimit   int

	IdempotencyTTL time.Duration
	OutboxInterval time.Duration
	MigrateOnStart bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ServiceName:  getenv("SERVICE_NAME", "cinema"),
		Env:          getenv("APP_ENV", "dev"),
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		StoreDriver:  strings.ToLower(getenv("STORE_DRIVER", StoreCRDB)),
		CRDBDSN:      os.Getenv("CRDB_DSN"),
		MongoURI:     os.Getenv("MONGO_URI"),
		MongoDB:      getenv("MONGO_DB", "cinema"),
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		RabbitURL:    os.Getenv("RABBIT_URL"),
		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),

		AdminUsername: os.Getenv("ADMIN_USERNAME"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
	}

	var err error
	if cfg.SeatLockWait, err = duration("SEAT_LOCK_WAIT", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.SeatLockTTL, err = duration("SEAT_LOCK_TTL", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.IdempotencyTTL, err = duration("IDEMPOTENCY_TTL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.OutboxInterval, err = duration("OUTBOX_INTERVAL", 5*time.Second); err != nil {
		return nil, err
	}

	if cfg.ReserveMaxAttempts, err = positive("RESERVE_MAX_ATTEMPTS", 3); err != nil {
		return nil, err
	}
	if cfg.UserRateLimit, err = positive("USER_RATE_LIMIT", 60); err != nil {
		return nil, err
	}
	if cfg.IPRateLimit, err = positive("IP_RATE_LIMIT", 600); err != nil {
		return nil, err
	}
	cfg.MigrateOnStart, _ = strconv.ParseBool(os.Getenv("MIGRATE_ON_START"))

	switch cfg.StoreDriver {
	case StoreMemory:
	case StoreCRDB:
		if cfg.CRDBDSN == "" {
			return nil, errors.New("CRDB_DSN is required when STORE_DRIVER=crdb")
		}
	default:
		return nil, errors.Newf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
	return cfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func duration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, errors.Wrapf(err, "parse %s", key)
	}
	return d, nil
}

func positive(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, errors.Newf("%s must be a positive integer, got %q", key, v)
	}
	return n, nil
}
