package repositories

import (
	"context"
	"testing"

	"splitstream/internal/core/domain"
	"splitstream/internal/core/ports"
	"splitstream/internal/infrastructure/monitoring"
	"splitstream/internal/infrastructure/repositories/memory"
	"splitstream/pkg/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func targetNames(f *RepositoryFactory, feed ports.AnalyticsSink) []string {
	var names []string
	for _, t := range f.CreateAnalyticsTargets(feed) {
		names = append(names, t.Name)
	}
	return names
}

func TestRepositoryFactory_MemoryDefaults(t *testing.T) {
	cfg := config.DefaultConfig()
	f, err := NewRepositoryFactory(cfg, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	defer f.Close()

	assert.False(t, f.UsingRedis())
	assert.IsType(t, &memory.FavoritesStore{}, f.CreateFavoritesStore())
	assert.Equal(t, []string{config.SinkMemory, config.SinkFeed}, targetNames(f, memory.NewAnalyticsSink(1)))
	assert.Equal(t, []string{config.SinkMemory}, targetNames(f, nil))
	assert.Same(t, f.MemorySink(), f.MemorySink())
	assert.NoError(t, f.HealthCheck(context.Background()))
}

func TestRepositoryFactory_RedisFallback(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Redis.Enabled = true
	cfg.Redis.Address = "127.0.0.1:1"
	cfg.Analytics.Sinks = []string{config.SinkRedis, config.SinkMemory}

	f, err := NewRepositoryFactory(cfg, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	defer f.Close()

	assert.False(t, f.UsingRedis())
	assert.Equal(t, []string{config.SinkMemory}, targetNames(f, nil))
}

func TestRepositoryFactory_Redis(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := config.DefaultConfig()
	cfg.Redis.Enabled = true
	cfg.Redis.Address = mr.Addr()
	cfg.Analytics.Sinks = []string{config.SinkRedis}

	f, err := NewRepositoryFactory(cfg, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	defer f.Close()

	require.True(t, f.UsingRedis())
	targets := f.CreateAnalyticsTargets(nil)
	require.Len(t, targets, 1)
	assert.Equal(t, config.SinkRedis, targets[0].Name)

	ctx := context.Background()
	favorites := f.CreateFavoritesStore()
	require.NoError(t, favorites.Save(ctx, domain.Favorite{ActorID: "user-1", VideoID: "abc"}))
	assert.ErrorIs(t, favorites.Save(ctx, domain.Favorite{ActorID: "user-1", VideoID: "abc"}), domain.ErrAlreadyExists)

	checker := monitoring.NewHealthChecker()
	f.RegisterHealthChecks(checker)
	assert.True(t, checker.CheckReadiness(ctx).Healthy())

	mr.Close()
	assert.False(t, checker.CheckReadiness(ctx).Healthy())
	assert.Error(t, f.HealthCheck(ctx))
}

func TestRepositoryFactory_Kafka(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Kafka.Enabled = true
	cfg.Kafka.Brokers = []string{"127.0.0.1:1"}
	cfg.Analytics.Sinks = []string{config.SinkKafka, config.SinkMemory}

	f, err := NewRepositoryFactory(cfg, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)

	assert.Equal(t, []string{config.SinkKafka, config.SinkMemory}, targetNames(f, nil))
	assert.NoError(t, f.Close())
}
