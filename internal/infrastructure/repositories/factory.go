package repositories

import (
	"context"
	"fmt"
	"time"

	"splitstream/internal/core/ports"
	"splitstream/internal/infrastructure/dispatch"
	"splitstream/internal/infrastructure/monitoring"
	kafkarepo "splitstream/internal/infrastructure/repositories/kafka"
	"splitstream/internal/infrastructure/repositories/memory"
	redisrepo "splitstream/internal/infrastructure/repositories/redis"
	"splitstream/pkg/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RepositoryFactory creates stores and analytics sinks with fallback support
type RepositoryFactory struct {
	cfg         *config.Config
	useRedis    bool
	redisClient *redis.Client
	kafkaSink   *kafkarepo.AnalyticsSink
	memorySink  *memory.AnalyticsSink
	logger      *zap.SugaredLogger
}

// NewRepositoryFactory connects to the configured backends. An unreachable
// Redis downgrades to memory; a Kafka client that cannot be built is an error.
func NewRepositoryFactory(cfg *config.Config, logger *zap.SugaredLogger) (*RepositoryFactory, error) {
	factory := &RepositoryFactory{
		cfg:      cfg,
		useRedis: cfg.Redis.Enabled,
		logger:   logger,
	}

	if cfg.Redis.Enabled {
		client, err := redisrepo.NewClient(redisrepo.ClientOptions{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		}, logger)
		if err != nil {
			logger.Warnw("failed to connect to Redis, falling back to memory repositories",
				"error", err,
			)
			factory.useRedis = false
		} else {
			factory.redisClient = client
			logger.Info("using Redis repositories")
		}
	}

	if !factory.useRedis {
		logger.Info("using memory repositories")
	}

	if cfg.Kafka.Enabled && cfg.HasSink(config.SinkKafka) {
		kcfg := kafkarepo.Config{
			Brokers:       cfg.Kafka.Brokers,
			ClientID:      cfg.Kafka.ClientID,
			EventsTopic:   cfg.Kafka.EventsTopic,
			SessionsTopic: cfg.Kafka.SessionsTopic,
		}
		producer, err := kafkarepo.NewProducer(kcfg)
		if err != nil {
			_ = factory.Close()
			return nil, err
		}
		factory.kafkaSink = kafkarepo.NewAnalyticsSink(producer, kcfg)
		logger.Infow("kafka analytics sink enabled", "brokers", cfg.Kafka.Brokers)
	}

	return factory, nil
}

// CreateFavoritesStore creates a favorites store (Redis or memory with fallback)
func (f *RepositoryFactory) CreateFavoritesStore() ports.FavoritesStore {
	if f.useRedis && f.redisClient != nil {
		return redisrepo.NewFavoritesStore(f.redisClient)
	}
	return memory.NewFavoritesStore()
}

// MemorySink returns the process-local sink, creating it on first use.
func (f *RepositoryFactory) MemorySink() *memory.AnalyticsSink {
	if f.memorySink == nil {
		f.memorySink = memory.NewAnalyticsSink(f.cfg.Analytics.MemoryLimit)
	}
	return f.memorySink
}

// CreateAnalyticsTargets builds one dispatch target per configured sink.
// A redis sink without a Redis connection is replaced by the memory sink.
// feed is used for the feed sink and may be nil when the feed is disabled.
func (f *RepositoryFactory) CreateAnalyticsTargets(feed ports.AnalyticsSink) []dispatch.Target {
	targets := make([]dispatch.Target, 0, len(f.cfg.Analytics.Sinks))
	seen := make(map[string]bool, len(f.cfg.Analytics.Sinks))

	add := func(name string, sink ports.AnalyticsSink) {
		if seen[name] {
			return
		}
		seen[name] = true
		targets = append(targets, dispatch.Target{Name: name, Sink: sink})
	}

	for _, name := range f.cfg.Analytics.Sinks {
		switch name {
		case config.SinkMemory:
			add(config.SinkMemory, f.MemorySink())
		case config.SinkRedis:
			if f.useRedis && f.redisClient != nil {
				add(config.SinkRedis, redisrepo.NewAnalyticsSink(f.redisClient, f.cfg.Redis.StreamMaxLen))
				continue
			}
			f.logger.Warn("redis analytics sink unavailable, using memory sink")
			add(config.SinkMemory, f.MemorySink())
		case config.SinkKafka:
			if f.kafkaSink != nil {
				add(config.SinkKafka, f.kafkaSink)
			}
		case config.SinkFeed:
			if feed != nil {
				add(config.SinkFeed, feed)
			}
		default:
			f.logger.Warnw("ignoring unknown analytics sink", "sink", name)
		}
	}
	return targets
}

// RegisterHealthChecks adds readiness checks for every connected backend.
func (f *RepositoryFactory) RegisterHealthChecks(checker *monitoring.HealthChecker) {
	if f.useRedis && f.redisClient != nil {
		checker.AddReadinessCheck("redis", func(ctx context.Context) error {
			return f.redisClient.Ping(ctx).Err()
		}, 2*time.Second)
	}
	if f.kafkaSink != nil {
		checker.AddPingerCheck("kafka", f.kafkaSink, 3*time.Second)
	}
}

// HealthCheck checks every connected backend.
func (f *RepositoryFactory) HealthCheck(ctx context.Context) error {
	if f.useRedis && f.redisClient != nil {
		if err := f.redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	if f.kafkaSink != nil {
		if err := f.kafkaSink.HealthCheck(ctx); err != nil {
			return fmt.Errorf("kafka: %w", err)
		}
	}
	return nil
}

// UsingRedis reports whether stores are backed by Redis.
func (f *RepositoryFactory) UsingRedis() bool {
	return f.useRedis && f.redisClient != nil
}

// Close releases backend connections. Call it after the dispatcher has drained.
func (f *RepositoryFactory) Close() error {
	if f.kafkaSink != nil {
		f.kafkaSink.Close()
		f.kafkaSink = nil
	}
	if f.redisClient != nil {
		err := redisrepo.CloseClient(f.redisClient)
		f.redisClient = nil
		return err
	}
	return nil
}
