//go:build integration

// Package containers starts the Postgres, Redis and Kafka instances integration
// tests run against. Each is started once per test binary, shared by every
// suite in it, and reaped by Ryuk when the process exits.
package containers

import (
	"context"
	"sync"
	"testing"
	"time"
)

const startupTimeout = 90 * time.Second

// shared starts a value once and replays the outcome to every caller.
type shared[T any] struct {
	once  sync.Once
	value T
	err   error
}

func (s *shared[T]) get(t testing.TB, name string, start func(context.Context) (T, error)) T {
	t.Helper()
	s.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
		defer cancel()
		s.value, s.err = start(ctx)
	})
	if s.err != nil {
		t.Fatalf("start %s container: %v", name, s.err)
	}
	return s.value
}

var (
	postgresOnce shared[*PostgresContainer]
	redisOnce    shared[*RedisContainer]
	kafkaOnce    shared[*KafkaContainer]
)

// Postgres returns the shared Postgres container.
func Postgres(t testing.TB) *PostgresContainer {
	t.Helper()
	return postgresOnce.get(t, "postgres", startPostgres)
}

// Redis returns the shared Redis container.
func Redis(t testing.TB) *RedisContainer {
	t.Helper()
	return redisOnce.get(t, "redis", startRedis)
}

// Kafka returns the shared Kafka broker.
func Kafka(t testing.TB) *KafkaContainer {
	t.Helper()
	return kafkaOnce.get(t, "kafka", startKafka)
}
