// Package config loads runtime settings from the environment.  A .env file in
// the working directory is read first when present.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every runtime setting.  Optional integrations are disabled by
// leaving their address empty.
type Config struct {
	Env            string
	Port           string
	Location       *time.Location // zone in which "today" is evaluated
	RequestTimeout time.Duration
	LogLevel       string
	BcryptCost     int
	SeedFile       string

	DB        DBConfig
	JWTSecret string
	Events    EventsConfig
	Reconcile time.Duration

	Redis     RedisConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
}

// DBConfig locates the MySQL mirror.  An empty Host keeps the store purely
// in memory.
type DBConfig struct {
	User string
	Pass string
	Host string
	Port string
	Name string
}

func (d DBConfig) Enabled() bool { return d.Host != "" }

// EventsConfig controls booking event publishing and the audit consumer.
type EventsConfig struct {
	AMQPURL         string
	ConsumerEnabled bool
	LogDir          string
}

// Load reads .env (if any) and the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("read .env: %w", err)
	}

	tz := envStr("APP_TIMEZONE", "UTC")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return Config{}, fmt.Errorf("APP_TIMEZONE %q: %w", tz, err)
	}

	amqpURL := envStr("RABBITMQ_URL", "")
	if amqpURL == "" {
		amqpURL = envStr("AMQP_URL", "")
	}

	cfg := Config{
		Env:            envStr("APP_ENV", "dev"),
		Port:           envStr("APP_PORT", "8080"),
		Location:       loc,
		RequestTimeout: envDur("REQUEST_TIMEOUT", 10*time.Second),
		LogLevel:       strings.ToLower(envStr("LOG_LEVEL", "info")),
		BcryptCost:     envInt("BCRYPT_COST", 10),
		SeedFile:       envStr("SEED_FILE", ""),
		DB: DBConfig{
			User: envStr("DB_USER", "root"),
			Pass: os.Getenv("DB_PASS"),
			Host: envStr("DB_HOST", ""),
			Port: envStr("DB_PORT", "3306"),
			Name: envStr("DB_NAME", "cinema_booking"),
		},
		JWTSecret: os.Getenv("JWT_SECRET"),
		Events: EventsConfig{
			AMQPURL:         amqpURL,
			ConsumerEnabled: envBool("BOOKING_CONSUMER_ENABLED", false),
			LogDir:          envStr("BOOKING_LOG_DIR", "logs"),
		},
		Reconcile: envDur("RECONCILE_INTERVAL", time.Minute),
		Redis:     LoadRedisConfig(),
		Cache:     LoadCacheConfig(),
		RateLimit: LoadRateLimitConfig(),
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return Config{}, fmt.Errorf("BCRYPT_COST must be between 4 and 31, got %d", cfg.BcryptCost)
	}
	return cfg, nil
}

func envStr(k, d string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	if n, err := strconv.Atoi(os.Getenv(k)); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	if dur, err := time.ParseDuration(os.Getenv(k)); err == nil {
		return dur
	}
	return d
}
