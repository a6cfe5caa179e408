package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/suivie/storefront/pkg/config"
)

// Storage backends.
const (
	StorageMemory   = "memory"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
)

// Notification backends.
const (
	NotifyMemory = "memory"
	NotifyRedis  = "redis"
	NotifyKafka  = "kafka"
)

// Config holds all configuration for the storefront service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort       int           `env:"HTTP_PORT" envDefault:"8080"`
	RequestTimeout time.Duration `env:"HTTP_REQUEST_TIMEOUT" envDefault:"30s"`
	CORSOrigins    []string      `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	PprofCIDRs     []string      `env:"PPROF_ALLOWED_CIDRS" envSeparator:","`

	// Backends
	StorageBackend string `env:"STORAGE_BACKEND" envDefault:"memory"`
	NotifyBackend  string `env:"NOTIFY_BACKEND" envDefault:"memory"`

	// Redis
	RedisAddr    string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass    string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB      int    `env:"REDIS_DB" envDefault:"0"`
	RedisChannel string `env:"REDIS_CHANNEL" envDefault:"cart.changed"`

	// PostgreSQL
	PostgresHost     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort     int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER" envDefault:"storefront"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" envDefault:"storefront"`
	PostgresDB       string `env:"POSTGRES_DB" envDefault:"storefront"`
	PostgresSSLMode  string `env:"POSTGRES_SSLMODE" envDefault:"disable"`
	PostgresMaxConns int32  `env:"POSTGRES_MAX_CONNS" envDefault:"10"`

	// Storage operations at least this slow are logged; 0 disables.
	SlowQueryThreshold time.Duration `env:"STORAGE_SLOW_QUERY_THRESHOLD" envDefault:"0s"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Cart
	CartKey         string `env:"CART_KEY" envDefault:"suivie_cart_v1"`
	CartTTL         int    `env:"CART_TTL_HOURS" envDefault:"0"`
	ClearOnCheckout bool   `env:"CART_CLEAR_ON_CHECKOUT" envDefault:"false"`

	// Per-profile stores unused this long are dropped; 0 keeps them.
	CartIdleTTL   time.Duration `env:"CART_STORE_IDLE_TTL" envDefault:"30m"`
	CartMaxStores int           `env:"CART_MAX_STORES" envDefault:"10000"`

	// Shopify Storefront API
	ShopifyDomain     string        `env:"SHOPIFY_STORE_DOMAIN"`
	ShopifyToken      string        `env:"SHOPIFY_STOREFRONT_TOKEN"`
	ShopifyAPIVersion string        `env:"SHOPIFY_API_VERSION" envDefault:"2024-07"`
	ShopifyTimeout    time.Duration `env:"SHOPIFY_TIMEOUT" envDefault:"15s"`
	ProductCacheTTL   time.Duration `env:"PRODUCT_CACHE_TTL" envDefault:"5m"`

	// Per-client limit on routes that call Shopify; 0 disables it.
	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"5"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"10"`

	// Tracing
	OTelEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTelEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTelSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load storefront config: %w", err)
	}
	return cfg, nil
}

// Validate checks configuration invariants. pkg/config runs it after
// parsing.
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	switch c.StorageBackend {
	case StorageMemory, StorageRedis, StoragePostgres:
	default:
		return fmt.Errorf("unknown storage backend %q", c.StorageBackend)
	}
	switch c.NotifyBackend {
	case NotifyMemory, NotifyRedis:
	case NotifyKafka:
		if len(c.KafkaBrokers) == 0 {
			return fmt.Errorf("kafka notifications need KAFKA_BROKERS")
		}
	default:
		return fmt.Errorf("unknown notify backend %q", c.NotifyBackend)
	}
	if c.StorageBackend == StorageMemory && c.NotifyBackend != NotifyMemory {
		// Peers would reload a slot only this process can read.
		return fmt.Errorf("NOTIFY_BACKEND=%s needs shared storage, STORAGE_BACKEND is memory", c.NotifyBackend)
	}
	if c.CartKey == "" {
		return fmt.Errorf("CART_KEY must not be empty")
	}
	if c.CartTTL < 0 {
		return fmt.Errorf("invalid cart TTL: %d hours", c.CartTTL)
	}
	if c.CartIdleTTL < 0 || c.CartMaxStores < 0 {
		return fmt.Errorf("invalid cart store limits: idle %s, max %d", c.CartIdleTTL, c.CartMaxStores)
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		return fmt.Errorf("invalid rate limit: %v rps, burst %d", c.RateLimitRPS, c.RateLimitBurst)
	}
	if c.OTelSampleRate < 0 || c.OTelSampleRate > 1 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be within [0, 1], got %v", c.OTelSampleRate)
	}
	return nil
}

// CartTTLDuration returns the slot expiry for the Redis backend. Zero keeps
// slots forever, like browser local storage.
func (c *Config) CartTTLDuration() time.Duration {
	return time.Duration(c.CartTTL) * time.Hour
}

// UsesRedis reports whether any component needs a Redis connection.
func (c *Config) UsesRedis() bool {
	return c.StorageBackend == StorageRedis || c.NotifyBackend == NotifyRedis
}
