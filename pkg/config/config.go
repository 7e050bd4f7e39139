package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"splitstream/pkg/circuitbreaker"
	"splitstream/pkg/retry"

	"gopkg.in/yaml.v2"
)

// Analytics sink names accepted in analytics.sinks.
const (
	SinkMemory = "memory"
	SinkRedis  = "redis"
	SinkKafka  = "kafka"
	SinkFeed   = "feed"
)

type Config struct {
	Server struct {
		Address string `yaml:"address"`
		// PublicURL prefixes shared session links.
		PublicURL       string        `yaml:"public_url"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Monitoring struct {
		PrometheusEnabled bool   `yaml:"prometheus_enabled"`
		MetricsPath       string `yaml:"metrics_path"`
	} `yaml:"monitoring"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	Redis struct {
		Enabled      bool   `yaml:"enabled"`
		Address      string `yaml:"address"`
		Password     string `yaml:"password"`
		DB           int    `yaml:"db"`
		PoolSize     int    `yaml:"pool_size"`
		StreamMaxLen int64  `yaml:"stream_max_len"`
	} `yaml:"redis"`

	Kafka struct {
		Enabled       bool     `yaml:"enabled"`
		Brokers       []string `yaml:"brokers"`
		ClientID      string   `yaml:"client_id"`
		EventsTopic   string   `yaml:"events_topic"`
		SessionsTopic string   `yaml:"sessions_topic"`
	} `yaml:"kafka"`

	Auth struct {
		JWTSecret      string        `yaml:"jwt_secret"`
		AccessTokenTTL time.Duration `yaml:"access_token_ttl"`
		AllowedOrigins []string      `yaml:"allowed_origins"`
	} `yaml:"auth"`

	RateLimiting struct {
		Enabled bool `yaml:"enabled"`

		HTTP struct {
			RequestsPerSecond float64 `yaml:"requests_per_second"`
			Burst             int     `yaml:"burst"`
			MaxConcurrent     int     `yaml:"max_concurrent"` // global concurrent HTTP requests
		} `yaml:"http"`

		WebSocket struct {
			ConnectionsPerMinute int `yaml:"connections_per_minute"`
			Burst                int `yaml:"burst"`
		} `yaml:"websocket"`
	} `yaml:"rate_limiting"`

	// Tiers maps subscription tiers to the number of screens a session may show.
	Tiers struct {
		Free    int `yaml:"free"`
		Trial   int `yaml:"trial"`
		Premium int `yaml:"premium"`
	} `yaml:"tiers"`

	Analytics struct {
		Sinks                    []string              `yaml:"sinks"`
		QueueSize                int                   `yaml:"queue_size"`
		DeliveryTimeout          time.Duration         `yaml:"delivery_timeout"`
		CloseTimeout             time.Duration         `yaml:"close_timeout"`
		MemoryLimit              int                   `yaml:"memory_limit"`
		RecordAnonymousEvents    bool                  `yaml:"record_anonymous_events"`
		RecordAnonymousSummaries bool                  `yaml:"record_anonymous_summaries"`
		Retry                    retry.Config          `yaml:"retry"`
		Breaker                  circuitbreaker.Config `yaml:"breaker"`

		Feed struct {
			PingInterval time.Duration `yaml:"ping_interval"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			SendBuffer   int           `yaml:"send_buffer"`
		} `yaml:"feed"`
	} `yaml:"analytics"`

	Tracing struct {
		Enabled        bool    `yaml:"enabled"`
		ServiceName    string  `yaml:"service_name"`
		JaegerEndpoint string  `yaml:"jaeger_endpoint"`
		SampleRate     float64 `yaml:"sample_rate"`
	} `yaml:"tracing"`
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("server.address must not be empty")
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.read_timeout and server.write_timeout must be > 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be > 0")
	}

	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}

	if c.Redis.Enabled {
		if c.Redis.Address == "" {
			return fmt.Errorf("redis.address must not be empty when redis.enabled=true")
		}
		if c.Redis.PoolSize <= 0 {
			return fmt.Errorf("redis.pool_size must be > 0 when redis.enabled=true")
		}
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers must not be empty when kafka.enabled=true")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret must not be empty")
	}
	if c.Auth.AccessTokenTTL <= 0 {
		return fmt.Errorf("auth.access_token_ttl must be > 0")
	}

	if c.RateLimiting.Enabled {
		if c.RateLimiting.HTTP.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.http.requests_per_second must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.HTTP.Burst <= 0 {
			return fmt.Errorf("rate_limiting.http.burst must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.HTTP.MaxConcurrent < 0 {
			return fmt.Errorf("rate_limiting.http.max_concurrent must be >= 0 when rate limiting is enabled")
		}
		if c.RateLimiting.WebSocket.ConnectionsPerMinute <= 0 {
			return fmt.Errorf("rate_limiting.websocket.connections_per_minute must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.WebSocket.Burst <= 0 {
			return fmt.Errorf("rate_limiting.websocket.burst must be > 0 when rate limiting is enabled")
		}
	}

	if c.Tiers.Free < 1 || c.Tiers.Trial < 1 || c.Tiers.Premium < 1 {
		return fmt.Errorf("tiers.free, tiers.trial and tiers.premium must be >= 1")
	}

	if len(c.Analytics.Sinks) == 0 {
		return fmt.Errorf("analytics.sinks must list at least one sink")
	}
	for _, sink := range c.Analytics.Sinks {
		switch sink {
		case SinkMemory, SinkRedis, SinkFeed:
		case SinkKafka:
			if !c.Kafka.Enabled {
				return fmt.Errorf("analytics.sinks lists kafka but kafka.enabled=false")
			}
		default:
			return fmt.Errorf("analytics.sinks: unknown sink %q", sink)
		}
	}
	if c.Analytics.QueueSize <= 0 {
		return fmt.Errorf("analytics.queue_size must be > 0")
	}
	if c.Analytics.CloseTimeout <= 0 {
		return fmt.Errorf("analytics.close_timeout must be > 0")
	}
	if c.Analytics.Retry.MaxAttempts < 1 {
		return fmt.Errorf("analytics.retry.max_attempts must be >= 1")
	}

	if c.Tracing.Enabled {
		if c.Tracing.JaegerEndpoint == "" {
			return fmt.Errorf("tracing.jaeger_endpoint must not be empty when tracing.enabled=true")
		}
		if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
			return fmt.Errorf("tracing.sample_rate must be within [0, 1]")
		}
	}

	return nil
}

// HasSink reports whether name is listed in analytics.sinks.
func (c *Config) HasSink(name string) bool {
	for _, s := range c.Analytics.Sinks {
		if s == name {
			return true
		}
	}
	return false
}

// Load reads configuration from YAML file, applies defaults and env overrides.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(configPath)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns configuration with sane defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Server.Address = ":8080"
	cfg.Server.PublicURL = "http://localhost:8080"
	cfg.Server.ReadTimeout = 30 * time.Second
	cfg.Server.WriteTimeout = 30 * time.Second
	cfg.Server.ShutdownTimeout = 30 * time.Second

	cfg.Monitoring.PrometheusEnabled = true
	cfg.Monitoring.MetricsPath = "/metrics"

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	cfg.Redis.Address = "localhost:6379"
	cfg.Redis.PoolSize = 10
	cfg.Redis.StreamMaxLen = 100000

	cfg.Kafka.ClientID = "splitstream"
	cfg.Kafka.EventsTopic = "analytics_events"
	cfg.Kafka.SessionsTopic = "streaming_sessions"

	cfg.Auth.JWTSecret = "change-me-in-production"
	cfg.Auth.AccessTokenTTL = 15 * time.Minute
	cfg.Auth.AllowedOrigins = []string{"*"}

	cfg.RateLimiting.HTTP.RequestsPerSecond = 50
	cfg.RateLimiting.HTTP.Burst = 100
	cfg.RateLimiting.WebSocket.ConnectionsPerMinute = 60
	cfg.RateLimiting.WebSocket.Burst = 10

	cfg.Tiers.Free = 2
	cfg.Tiers.Trial = 4
	cfg.Tiers.Premium = 8

	cfg.Analytics.Sinks = []string{SinkMemory, SinkFeed}
	cfg.Analytics.QueueSize = 1024
	cfg.Analytics.DeliveryTimeout = 5 * time.Second
	cfg.Analytics.CloseTimeout = 10 * time.Second
	cfg.Analytics.MemoryLimit = 10000
	cfg.Analytics.Retry = retry.DefaultConfig()
	cfg.Analytics.Breaker = circuitbreaker.DefaultConfig()
	cfg.Analytics.Feed.PingInterval = 30 * time.Second
	cfg.Analytics.Feed.ReadTimeout = 60 * time.Second
	cfg.Analytics.Feed.WriteTimeout = 10 * time.Second
	cfg.Analytics.Feed.SendBuffer = 32

	cfg.Tracing.ServiceName = "splitstream"
	cfg.Tracing.JaegerEndpoint = "http://localhost:14268/api/traces"
	cfg.Tracing.SampleRate = 1.0

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv("SPLITSTREAM_SERVER_ADDRESS"); addr != "" {
		c.Server.Address = addr
	}
	if url := os.Getenv("SPLITSTREAM_PUBLIC_URL"); url != "" {
		c.Server.PublicURL = url
	}
	if level := os.Getenv("SPLITSTREAM_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if secret := os.Getenv("SPLITSTREAM_JWT_SECRET"); secret != "" {
		c.Auth.JWTSecret = secret
	}
	if addr := os.Getenv("SPLITSTREAM_REDIS_ADDRESS"); addr != "" {
		c.Redis.Enabled = true
		c.Redis.Address = addr
	}
	if brokers := os.Getenv("SPLITSTREAM_KAFKA_BROKERS"); brokers != "" {
		c.Kafka.Enabled = true
		c.Kafka.Brokers = strings.Split(brokers, ",")
	}
	if endpoint := os.Getenv("SPLITSTREAM_JAEGER_ENDPOINT"); endpoint != "" {
		c.Tracing.Enabled = true
		c.Tracing.JaegerEndpoint = endpoint
	}
}
