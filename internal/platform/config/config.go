package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"idregistry/internal/registry/models"
	platformstrings "idregistry/pkg/platform/strings"
)

// Server captures process level configuration.
type Server struct {
	Addr          string
	LogLevel      string
	LogFormat     string
	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string

	Registry RegistryConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	RabbitMQ RabbitMQConfig
	Outbox   OutboxConfig
}

// RegistryConfig holds the transfer policy.
type RegistryConfig struct {
	MinApprovals int
	ApprovalTTL  time.Duration
}

// Policy converts the configuration into the registry policy.
func (c RegistryConfig) Policy() models.Policy {
	return models.Policy{MinApprovals: c.MinApprovals, ApprovalTTL: c.ApprovalTTL}
}

// DatabaseConfig selects the PostgreSQL store. An empty URL selects the
// in-memory store.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL          string
	Stream       string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type RabbitMQConfig struct {
	URL      string
	Exchange string
}

type OutboxConfig struct {
	PollInterval time.Duration
	BatchSize    int
}

const devSigningKey = "dev-secret-key-change-in-production"

// FromEnv builds a Server config from environment variables so main stays lean.
// Malformed numeric or duration values are reported rather than silently
// replaced by defaults.
func FromEnv() (Server, error) {
	p := &parser{}
	defaults := models.DefaultPolicy()

	cfg := Server{
		Addr:          envOr("IDREG_ADDR", ":8080"),
		LogLevel:      envOr("LOG_LEVEL", "info"),
		LogFormat:     envOr("LOG_FORMAT", "json"),
		JWTSigningKey: envOr("JWT_SIGNING_KEY", devSigningKey),
		JWTIssuer:     envOr("JWT_ISSUER", "idregistry"),
		JWTAudience:   envOr("JWT_AUDIENCE", "idregistry-api"),
		Registry: RegistryConfig{
			MinApprovals: p.int("REGISTRY_MIN_APPROVALS", defaults.MinApprovals),
			ApprovalTTL:  p.duration("REGISTRY_APPROVAL_TTL", defaults.ApprovalTTL),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    p.int("DATABASE_MAX_CONNS", 10),
			MaxIdleConns:    p.int("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: p.duration("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			Stream:       envOr("REDIS_STREAM", "identity-events"),
			PoolSize:     p.int("REDIS_POOL_SIZE", 10),
			MinIdleConns: p.int("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  p.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  p.duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: p.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: platformstrings.SplitList(os.Getenv("KAFKA_BROKERS")),
			Topic:   envOr("KAFKA_TOPIC", "identity-events"),
		},
		RabbitMQ: RabbitMQConfig{
			URL:      os.Getenv("RABBITMQ_URL"),
			Exchange: envOr("RABBITMQ_EXCHANGE", "identity.events"),
		},
		Outbox: OutboxConfig{
			PollInterval: p.duration("OUTBOX_POLL_INTERVAL", time.Second),
			BatchSize:    p.int("OUTBOX_BATCH_SIZE", 100),
		},
	}
	if err := errors.Join(p.errs...); err != nil {
		return Server{}, err
	}
	return cfg, cfg.Validate()
}

// Validate rejects configurations the server cannot run with.
func (c Server) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("IDREG_ADDR is required"))
	}
	if c.JWTSigningKey == "" {
		errs = append(errs, errors.New("JWT_SIGNING_KEY is required"))
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.LogFormat))
	}
	if err := c.Registry.Policy().Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Database.URL != "" && c.Database.MaxOpenConns < 1 {
		errs = append(errs, errors.New("DATABASE_MAX_CONNS must be positive"))
	}
	if c.Outbox.PollInterval <= 0 {
		errs = append(errs, errors.New("OUTBOX_POLL_INTERVAL must be positive"))
	}
	if c.Outbox.BatchSize < 1 {
		errs = append(errs, errors.New("OUTBOX_BATCH_SIZE must be positive"))
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		errs = append(errs, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set"))
	}
	return errors.Join(errs...)
}

// DevSigningKey reports whether the built-in development key is in use.
func (c Server) DevSigningKey() bool {
	return c.JWTSigningKey == devSigningKey
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

type parser struct {
	errs []error
}

func (p *parser) int(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid integer %q", key, v))
		return def
	}
	return n
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid duration %q", key, v))
		return def
	}
	return d
}
