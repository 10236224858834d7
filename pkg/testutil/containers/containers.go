//go:build integration

// Package containers starts the backing services the integration tests run
// against. Each service is started on first use and shared by every suite in
// the test binary.
package containers

import (
	"os"
	"sync"
	"testing"
)

// Manager owns the shared containers of one test binary.
type Manager struct {
	mu       sync.Mutex
	postgres *PostgresContainer
	kafka    *KafkaContainer
	redis    *RedisContainer
}

var shared = &Manager{}

// GetManager returns the process-wide manager.
func GetManager() *Manager {
	return shared
}

// GetPostgres returns a migrated Postgres instance.
func (m *Manager) GetPostgres(t *testing.T) *PostgresContainer {
	t.Helper()
	return startOnce(t, &m.mu, &m.postgres, NewPostgresContainer)
}

func (m *Manager) GetKafka(t *testing.T) *KafkaContainer {
	t.Helper()
	return startOnce(t, &m.mu, &m.kafka, NewKafkaContainer)
}

func (m *Manager) GetRedis(t *testing.T) *RedisContainer {
	t.Helper()
	return startOnce(t, &m.mu, &m.redis, NewRedisContainer)
}

// startOnce fills slot on first call. A failed start leaves the slot empty so
// the next suite gets a fresh attempt.
func startOnce[T any](t *testing.T, mu *sync.Mutex, slot **T, start func(*testing.T) *T) *T {
	t.Helper()
	if os.Getenv("VCREG_SKIP_CONTAINERS") != "" {
		t.Skip("VCREG_SKIP_CONTAINERS set")
	}

	mu.Lock()
	defer mu.Unlock()

	if *slot == nil {
		*slot = start(t)
	}
	return *slot
}
