package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	platformstrings "consentsync/pkg/platform/strings"
)

// Config is the full process configuration. Values come from an optional YAML
// file and are overridden by environment variables.
type Config struct {
	App            App            `yaml:"app"`
	Server         Server         `yaml:"server"`
	Log            Log            `yaml:"log"`
	Database       DatabaseConfig `yaml:"database"`
	Redis          RedisConfig    `yaml:"redis"`
	Kafka          KafkaConfig    `yaml:"kafka"`
	FHIR           FHIRConfig     `yaml:"fhir"`
	ConsentManager ConsentManager `yaml:"consent_manager"`
	HTTPClient     HTTPClient     `yaml:"http_client"`
	Sync           SyncConfig     `yaml:"sync"`
	Secrets        SecretsConfig  `yaml:"secrets"`
}

type App struct {
	Name    string `yaml:"name" env:"APP_NAME" env-default:"fhir-consent-service"`
	Version string `yaml:"version" env:"APP_VERSION" env-default:"1.0.0"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `yaml:"addr" env:"SERVER_ADDR" env-default:":3000"`
	BasePath        string        `yaml:"base_path" env:"SERVER_BASE_PATH" env-default:"/fhir-consent-service/api/v1"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT" env-default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT" env-default:"120s"`
	RequestTimeout  time.Duration `yaml:"request_timeout" env:"SERVER_REQUEST_TIMEOUT" env-default:"110s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

type Log struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

// DatabaseConfig configures the PostgreSQL staging store. An empty URL selects
// the in-memory store.
type DatabaseConfig struct {
	URL             string        `yaml:"url" env:"DATABASE_URL"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"DATABASE_MAX_OPEN_CONNS" env-default:"10"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"DATABASE_MAX_IDLE_CONNS" env-default:"5"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"DATABASE_CONN_MAX_LIFETIME" env-default:"30m"`
}

// RedisConfig configures the token cache. An empty URL selects the in-memory cache.
type RedisConfig struct {
	URL          string        `yaml:"url" env:"REDIS_URL"`
	PoolSize     int           `yaml:"pool_size" env:"REDIS_POOL_SIZE" env-default:"10"`
	MinIdleConns int           `yaml:"min_idle_conns" env:"REDIS_MIN_IDLE_CONNS" env-default:"2"`
	DialTimeout  time.Duration `yaml:"dial_timeout" env:"REDIS_DIAL_TIMEOUT" env-default:"5s"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"REDIS_READ_TIMEOUT" env-default:"3s"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"REDIS_WRITE_TIMEOUT" env-default:"3s"`
}

// KafkaConfig configures the audit event publisher. No brokers disables it.
type KafkaConfig struct {
	Brokers     []string `yaml:"brokers" env:"KAFKA_BROKERS" env-separator:","`
	Topic       string   `yaml:"topic" env:"KAFKA_TOPIC" env-default:"fhir-consent-sync-events"`
	Partitions  int32    `yaml:"partitions" env:"KAFKA_TOPIC_PARTITIONS" env-default:"3"`
	Replication int16    `yaml:"replication" env:"KAFKA_TOPIC_REPLICATION" env-default:"1"`
}

// FHIRConfig holds the token-exchange client identities. Per-tenant URLs and
// secrets come from the secrets provider.
type FHIRConfig struct {
	ReadClientID  string        `yaml:"read_client_id" env:"FHIR_READ_CLIENT_ID" env-default:"sample-read-client"`
	ReadScope     string        `yaml:"read_scope" env:"FHIR_READ_SCOPE" env-default:"fhir-read-all"`
	WriteClientID string        `yaml:"write_client_id" env:"FHIR_WRITE_CLIENT_ID" env-default:"sample-write-client"`
	WriteScope    string        `yaml:"write_scope" env:"FHIR_WRITE_SCOPE" env-default:"fhir-write-all"`
	TokenSkew     time.Duration `yaml:"token_skew" env:"FHIR_TOKEN_SKEW" env-default:"30s"`
}

// ConsentManager points at the downstream registration service.
type ConsentManager struct {
	URL       string `yaml:"url" env:"CM_URL" env-default:"http://localhost:3001/consent-manager/api/v1/consents"`
	HealthURL string `yaml:"health_url" env:"CM_HEALTH_URL" env-default:"http://localhost:3001/consent-manager/api/v1/health"`
}

// HTTPClient bounds every outbound call.
type HTTPClient struct {
	Timeout    time.Duration `yaml:"timeout" env:"HTTP_TIMEOUT" env-default:"10s"`
	Retries    int           `yaml:"retries" env:"HTTP_RETRIES" env-default:"1"`
	RetryDelay time.Duration `yaml:"retry_delay" env:"HTTP_RETRY_DELAY" env-default:"3s"`
}

// SyncConfig tunes the pipeline itself.
type SyncConfig struct {
	DefaultPageSize int    `yaml:"default_page_size" env:"SYNC_DEFAULT_PAGE_SIZE" env-default:"100"`
	MaxPageSize     int    `yaml:"max_page_size" env:"SYNC_MAX_PAGE_SIZE" env-default:"1000"`
	PartitionKey    string `yaml:"partition_key" env:"SYNC_PARTITION_KEY" env-default:"cm"`
	DBName          string `yaml:"db_name" env:"SYNC_DB_NAME" env-default:"fhir-resource-ids"`
	// EmptyPagePolicy and BatchPolicy are parsed by the pipeline package.
	EmptyPagePolicy string `yaml:"empty_page_policy" env:"SYNC_EMPTY_PAGE_POLICY" env-default:"not_found"`
	BatchPolicy     string `yaml:"batch_policy" env:"SYNC_BATCH_POLICY" env-default:"halt"`
}

// SecretsConfig locates the tenant connection document.
type SecretsConfig struct {
	File string `yaml:"file" env:"SECRETS_FILE" env-default:"secrets.json"`
}

// Load reads path if it exists and then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := cleanenv.ReadConfig(path, cfg); err != nil {
				return nil, fmt.Errorf("config error: %w", err)
			}
			return cfg, cfg.validate()
		}
	}

	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	c.Kafka.Brokers = platformstrings.SplitList(c.Kafka.Brokers)
	if c.Sync.MaxPageSize < 1 {
		return fmt.Errorf("config error: max page size must be positive, got %d", c.Sync.MaxPageSize)
	}
	if c.HTTPClient.Retries < 0 {
		return fmt.Errorf("config error: http retries must not be negative, got %d", c.HTTPClient.Retries)
	}
	return nil
}

// ClampPageSize parses a raw pageSize query value. Missing, unparsable,
// non-positive and oversized values fall back to the default.
func (s SyncConfig) ClampPageSize(raw string) int {
	if raw == "" {
		return s.DefaultPageSize
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > s.MaxPageSize {
		return s.DefaultPageSize
	}
	return n
}
