package config

import (
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"vcregistry/pkg/platform/validation"
)

// Store backends selectable with STORE_BACKEND.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr         string
	Environment  string
	LogLevel     string
	StoreBackend string `env:"STORE_BACKEND" validate:"oneof=memory postgres redis"`

	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" validate:"gt=0"`
	TxTimeout      time.Duration `env:"TX_TIMEOUT" validate:"gt=0"`
	MaxBodyBytes   int64         `env:"MAX_BODY_BYTES" validate:"gt=0"`

	// TrustedProxies may set X-Forwarded-For / X-Real-IP.
	TrustedProxies []netip.Prefix
	// SeedDemoData issues a handful of demo credentials at startup.
	SeedDemoData bool

	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	JWT      JWTConfig
}

// DatabaseConfig configures the Postgres pool. An empty URL disables it.
type DatabaseConfig struct {
	URL             string
	AutoMigrate     bool
	MaxOpenConns    int `env:"DATABASE_MAX_OPEN_CONNS" validate:"gte=0"`
	MaxIdleConns    int `env:"DATABASE_MAX_IDLE_CONNS" validate:"gte=0"`
	ConnMaxLifetime time.Duration
}

// RedisConfig configures the Redis client. An empty URL disables it.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the credential event sink. Empty brokers select the
// no-op sink.
type KafkaConfig struct {
	Brokers         string
	Topic           string
	Acks            string `env:"KAFKA_ACKS" validate:"oneof=all 1 0"`
	Retries         int    `env:"KAFKA_RETRIES" validate:"gte=0"`
	DeliveryTimeout time.Duration

	// Consecutive publish failures that open the sink's circuit, and how long
	// it stays open before a probe.
	BreakerThreshold int           `env:"KAFKA_BREAKER_THRESHOLD" validate:"gt=0"`
	BreakerCooldown  time.Duration `env:"KAFKA_BREAKER_COOLDOWN" validate:"gt=0"`
}

// Enabled reports whether brokers are configured.
func (k KafkaConfig) Enabled() bool {
	return strings.TrimSpace(k.Brokers) != ""
}

// JWTConfig configures caller token validation.
type JWTConfig struct {
	SigningKey string
	Issuer     string
	Audience   string
	TokenTTL   time.Duration
}

// DefaultEventsTopic is the Kafka topic credential lifecycle events go to.
const DefaultEventsTopic = "credential.events"

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	cfg := Server{
		Addr:           getEnv("VCREG_ADDR", ":8080"),
		Environment:    getEnv("ENVIRONMENT", "local"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		StoreBackend:   strings.ToLower(getEnv("STORE_BACKEND", StoreMemory)),
		RequestTimeout: getDuration("REQUEST_TIMEOUT", 10*time.Second),
		TxTimeout:      getDuration("TX_TIMEOUT", 5*time.Second),
		MaxBodyBytes:   int64(getInt("MAX_BODY_BYTES", validation.MaxBodySize)),
		SeedDemoData:   getBool("SEED_DEMO_DATA", false),
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			AutoMigrate:     getBool("DATABASE_AUTO_MIGRATE", true),
			MaxOpenConns:    getInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:         os.Getenv("KAFKA_BROKERS"),
			Topic:           getEnv("KAFKA_TOPIC", DefaultEventsTopic),
			Acks:            getEnv("KAFKA_ACKS", "all"),
			Retries:         getInt("KAFKA_RETRIES", 3),
			DeliveryTimeout: getDuration("KAFKA_DELIVERY_TIMEOUT", 30*time.Second),

			BreakerThreshold: getInt("KAFKA_BREAKER_THRESHOLD", 5),
			BreakerCooldown:  getDuration("KAFKA_BREAKER_COOLDOWN", 30*time.Second),
		},
		JWT: JWTConfig{
			// Development default; production must override.
			SigningKey: getEnv("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			Issuer:     getEnv("JWT_ISSUER", "vcregistry"),
			Audience:   getEnv("JWT_AUDIENCE", "vcregistry-api"),
			TokenTTL:   getDuration("TOKEN_TTL", 15*time.Minute),
		},
	}

	proxies, err := parsePrefixes(os.Getenv("TRUSTED_PROXIES"))
	if err != nil {
		return Server{}, fmt.Errorf("TRUSTED_PROXIES: %w", err)
	}
	cfg.TrustedProxies = proxies

	if err := cfg.Validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

// Validate checks field ranges with the struct tags, then cross-field
// requirements such as a backend needing its URL.
func (s Server) Validate() error {
	if err := validation.Validate(s); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	switch s.StoreBackend {
	case StorePostgres:
		if s.Database.URL == "" {
			return fmt.Errorf("STORE_BACKEND=postgres requires DATABASE_URL")
		}
	case StoreRedis:
		if s.Redis.URL == "" {
			return fmt.Errorf("STORE_BACKEND=redis requires REDIS_URL")
		}
	}
	if s.Environment == "production" && s.JWT.SigningKey == "dev-secret-key-change-in-production" {
		return fmt.Errorf("JWT_SIGNING_KEY must be set in production")
	}
	if s.Environment == "production" && s.SeedDemoData {
		return fmt.Errorf("SEED_DEMO_DATA is not allowed in production")
	}
	return nil
}

// parsePrefixes reads a comma separated list of CIDRs or bare addresses.
func parsePrefixes(raw string) ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if !strings.Contains(part, "/") {
			addr, err := netip.ParseAddr(part)
			if err != nil {
				return nil, err
			}
			out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}
		prefix, err := netip.ParsePrefix(part)
		if err != nil {
			return nil, err
		}
		out = append(out, prefix.Masked())
	}
	return out, nil
}

func getBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
