package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config collects every runtime setting read from the environment.
// Connections are opened from it explicitly; nothing in this package
// holds global state.
type Config struct {
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string

	RedisAddr     string
	RedisPassword string

	JWTSecret  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	AlphaVantageKey string
	QuoteTimeout    time.Duration
	QuoteCacheTTL   time.Duration

	StartingCash decimal.Decimal
	ListenAddr   string
}

// Load reads the configuration from environment variables. JWT_SECRET
// is the only hard requirement; everything else has a default.
func Load() (Config, error) {
	cfg := Config{
		DBHost:          envOr("DB_HOST", "localhost"),
		DBUser:          envOr("DB_USER", "postgres"),
		DBPassword:      os.Getenv("DB_PASSWORD"),
		DBName:          envOr("DB_NAME", "paper_trader"),
		DBPort:          envOr("DB_PORT", "5432"),
		RedisAddr:       envOr("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		AccessTTL:       24 * time.Hour,
		RefreshTTL:      7 * 24 * time.Hour,
		AlphaVantageKey: os.Getenv("ALPHA_VANTAGE_API_KEY"),
		QuoteTimeout:    5 * time.Second,
		QuoteCacheTTL:   5 * time.Minute,
		StartingCash:    decimal.NewFromInt(10000),
		ListenAddr:      envOr("LISTEN_ADDR", ":8080"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}

	if raw := os.Getenv("STARTING_CASH"); raw != "" {
		cash, err := decimal.NewFromString(raw)
		if err != nil || cash.IsNegative() {
			return Config{}, fmt.Errorf("invalid STARTING_CASH %q", raw)
		}
		cfg.StartingCash = cash
	}
	if raw := os.Getenv("QUOTE_TIMEOUT"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("invalid QUOTE_TIMEOUT %q", raw)
		}
		cfg.QuoteTimeout = d
	}

	return cfg, nil
}

// ConnectDB opens the PostgreSQL connection described by cfg.
// TranslateError maps driver duplicate-key failures onto
// gorm.ErrDuplicatedKey so the store can detect taken usernames.
func ConnectDB(cfg Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	return db, nil
}

// ConnectRedis opens and pings the Redis connection described by cfg.
func ConnectRedis(cfg Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err := rdb.Ping(rdb.Context()).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return rdb, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
