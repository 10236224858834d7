package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("STORE_BACKEND", "")
	t.Setenv("VCREG_ADDR", "")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, StoreMemory, cfg.StoreBackend)
	assert.Equal(t, DefaultEventsTopic, cfg.Kafka.Topic)
	assert.Equal(t, 5*time.Second, cfg.TxTimeout)
	assert.False(t, cfg.Kafka.Enabled())
	assert.True(t, cfg.Database.AutoMigrate)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("VCREG_ADDR", ":9090")
	t.Setenv("STORE_BACKEND", "Postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/vcreg")
	t.Setenv("TX_TIMEOUT", "250ms")
	t.Setenv("KAFKA_BROKERS", "localhost:9092")
	t.Setenv("MAX_BODY_BYTES", "not-a-number")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, StorePostgres, cfg.StoreBackend)
	assert.Equal(t, 250*time.Millisecond, cfg.TxTimeout)
	assert.True(t, cfg.Kafka.Enabled())
	assert.Equal(t, int64(64<<10), cfg.MaxBodyBytes, "unparseable values fall back to defaults")
}

func TestValidate(t *testing.T) {
	base := func() Server {
		return Server{
			StoreBackend:   StoreMemory,
			RequestTimeout: 10 * time.Second,
			TxTimeout:      5 * time.Second,
			MaxBodyBytes:   1024,
			Kafka:          KafkaConfig{Acks: "all", BreakerThreshold: 5, BreakerCooldown: time.Second},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Server)
		wantErr string
	}{
		{"memory needs nothing", func(*Server) {}, ""},
		{"postgres without url", func(s *Server) { s.StoreBackend = StorePostgres }, "DATABASE_URL"},
		{"redis without url", func(s *Server) { s.StoreBackend = StoreRedis }, "REDIS_URL"},
		{"unknown backend", func(s *Server) { s.StoreBackend = "etcd" }, `STORE_BACKEND must be one of [memory postgres redis], got "etcd"`},
		{"zero tx timeout", func(s *Server) { s.TxTimeout = 0 }, "TX_TIMEOUT must be greater than 0"},
		{"zero body cap", func(s *Server) { s.MaxBodyBytes = 0 }, "MAX_BODY_BYTES must be greater than 0"},
		{"unknown acks", func(s *Server) { s.Kafka.Acks = "most" }, "KAFKA_ACKS must be one of"},
		{"negative retries", func(s *Server) { s.Kafka.Retries = -1 }, "KAFKA_RETRIES must be at least 0"},
		{"production dev key", func(s *Server) {
			s.Environment = "production"
			s.JWT.SigningKey = "dev-secret-key-change-in-production"
		}, "JWT_SIGNING_KEY"},
		{"production demo seed", func(s *Server) {
			s.Environment = "production"
			s.JWT.SigningKey = "real-key"
			s.SeedDemoData = true
		}, "SEED_DEMO_DATA"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestFromEnv_TrustedProxies(t *testing.T) {
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 192.168.1.7")

	cfg, err := FromEnv()
	require.NoError(t, err)

	require.Len(t, cfg.TrustedProxies, 2)
	assert.Equal(t, "10.0.0.0/8", cfg.TrustedProxies[0].String())
	assert.Equal(t, "192.168.1.7/32", cfg.TrustedProxies[1].String())
}

func TestFromEnv_InvalidTrustedProxy(t *testing.T) {
	t.Setenv("TRUSTED_PROXIES", "not-an-ip")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TRUSTED_PROXIES")
}

func TestFromEnv_SeedAndBreaker(t *testing.T) {
	t.Setenv("SEED_DEMO_DATA", "true")
	t.Setenv("KAFKA_BREAKER_THRESHOLD", "2")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.True(t, cfg.SeedDemoData)
	assert.Equal(t, 2, cfg.Kafka.BreakerThreshold)
	assert.Equal(t, 30*time.Second, cfg.Kafka.BreakerCooldown)
}
