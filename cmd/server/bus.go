package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"tenantgate/internal/platform/config"
	"tenantgate/internal/platform/health"
	"tenantgate/internal/platform/kafka/consumer"
	"tenantgate/internal/platform/kafka/producer"
	platformredis "tenantgate/internal/platform/redis"
	"tenantgate/internal/tenant/refresh"
)

const redisStatsInterval = 15 * time.Second

// refreshBus holds the cross-node refresh transports that are configured.
type refreshBus struct {
	log        *slog.Logger
	listener   *refresh.Listener
	publishers refresh.Publishers

	redis    *platformredis.Client
	redisBus *refresh.RedisBus

	producer *producer.Producer
	consumer *consumer.Consumer
}

func newBus(ctx context.Context, cfg *config.Server, reloader *refresh.Reloader, reg prometheus.Registerer, log *slog.Logger) (*refreshBus, error) {
	nodeID := cfg.Bus.NodeID
	if nodeID == "" {
		nodeID = uuid.NewString()
	}
	b := &refreshBus{
		log:      log,
		listener: refresh.NewListener(nodeID, reloader.Reload, log),
	}

	redisClient, err := platformredis.New(ctx, cfg.Redis, reg)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	if redisClient != nil {
		b.redis = redisClient
		b.redisBus = refresh.NewRedisBus(redisClient, cfg.Bus.RedisChannel, b.listener, log)
		b.publishers = append(b.publishers, b.redisBus)
	}

	if cfg.Bus.KafkaBrokers != "" {
		p, err := producer.New(producer.Config{
			Brokers:      cfg.Bus.KafkaBrokers,
			ClientID:     "tenantgate-" + nodeID,
			DefaultTopic: cfg.Bus.KafkaTopic,
		}, log)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.producer = p
		kafkaBus := refresh.NewKafkaBus(p, cfg.Bus.KafkaTopic, b.listener)
		b.publishers = append(b.publishers, kafkaBus)

		// Each node needs every refresh, so each node is its own group.
		groupID := cfg.Bus.KafkaGroupID
		if groupID == "" {
			groupID = "tenantgate-refresh-" + nodeID
		}
		c, err := consumer.New(consumer.Config{
			Brokers:         cfg.Bus.KafkaBrokers,
			GroupID:         groupID,
			Topics:          []string{cfg.Bus.KafkaTopic},
			AutoOffsetReset: "latest",
		}, kafkaBus.Handler(), log)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.consumer = c
	}

	log.Info("refresh bus configured",
		"node_id", nodeID,
		"redis", b.redisBus != nil,
		"kafka", b.producer != nil,
	)
	return b, nil
}

// Publisher returns the fan-out publisher, or nil when no transport is configured.
func (b *refreshBus) Publisher() refresh.Publisher {
	if len(b.publishers) == 0 {
		return nil
	}
	return b.publishers
}

// Start launches the subscribers on g.
func (b *refreshBus) Start(ctx context.Context, g *errgroup.Group) {
	if b.redisBus != nil {
		g.Go(func() error {
			return ignoreCancel(b.redisBus.Run(ctx))
		})
		g.Go(func() error {
			ticker := time.NewTicker(redisStatsInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					b.redis.RecordPoolStats()
				}
			}
		})
	}
	if b.consumer != nil {
		b.consumer.Start()
	}
}

// RegisterChecks adds readiness checks for the configured transports.
func (b *refreshBus) RegisterChecks(h *health.Handler) {
	if b.redis != nil {
		h.RegisterCheck("redis", b.redis.Health)
	}
	if b.producer != nil {
		h.RegisterCheck("kafka", func(ctx context.Context) error {
			if !b.producer.Healthy(ctx) {
				return fmt.Errorf("kafka brokers unreachable")
			}
			return nil
		})
	}
}

// Close stops the consumer, flushes the producer and closes Redis.
func (b *refreshBus) Close() {
	if b.consumer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := b.consumer.Stop(ctx); err != nil {
			b.log.Error("stopping kafka consumer failed", "error", err)
		}
	}
	if b.producer != nil {
		if err := b.producer.Close(); err != nil {
			b.log.Error("closing kafka producer failed", "error", err)
		}
	}
	if b.redis != nil {
		if err := b.redis.Close(); err != nil {
			b.log.Error("closing redis failed", "error", err)
		}
	}
}
