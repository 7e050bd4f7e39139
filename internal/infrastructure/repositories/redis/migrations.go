package redis

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	schemaVersionKey = KeyPrefix + "schema:version"

	// ConsumerGroup reads the analytics streams downstream.
	ConsumerGroup = "splitstream-analytics"
)

type Migration struct {
	Version int
	Name    string
	Up      func(ctx context.Context, client *redis.Client) error
}

func migrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create analytics streams",
			Up: func(ctx context.Context, client *redis.Client) error {
				for _, stream := range []string{EventsStream, SessionsStream} {
					err := client.XGroupCreateMkStream(ctx, stream, ConsumerGroup, "0").Err()
					if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
						return fmt.Errorf("create group on %s: %w", stream, err)
					}
				}
				return nil
			},
		},
	}
}

// SchemaVersion reports the highest migration applied so far.
func SchemaVersion(ctx context.Context, client *redis.Client) (int, error) {
	v, err := client.Get(ctx, schemaVersionKey).Int()
	if err == redis.Nil {
		return 0, nil
	}
	return v, err
}

// Migrate applies pending migrations in version order.
func Migrate(ctx context.Context, client *redis.Client, logger *zap.SugaredLogger) error {
	current, err := SchemaVersion(ctx, client)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, m := range migrations() {
		if m.Version <= current {
			continue
		}

		logger.Infow("running migration", "version", m.Version, "name", m.Name)
		if err := m.Up(ctx, client); err != nil {
			return fmt.Errorf("migration %d failed: %w", m.Version, err)
		}
		if err := client.Set(ctx, schemaVersionKey, m.Version, 0).Err(); err != nil {
			return fmt.Errorf("failed to update schema version: %w", err)
		}
		current = m.Version
	}

	logger.Debugw("schema is up to date", "version", current)
	return nil
}
