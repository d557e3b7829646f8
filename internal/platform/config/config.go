// Package config holds process configuration for the reliefops binaries.
package config

import (
	"time"
)

// Config is the root configuration tree. Keys mirror the koanf tags, so
// storage.postgres_dsn in YAML is RELIEFOPS_STORAGE__POSTGRES_DSN in the
// environment.
type Config struct {
	Server  Server        `koanf:"server"`
	Storage StorageConfig `koanf:"storage"`
	Redis   RedisConfig   `koanf:"redis"`
	Kafka   KafkaConfig   `koanf:"kafka"`
	Auth    AuthConfig    `koanf:"auth"`
	Codegen CodegenConfig `koanf:"codegen"`
	Rescue  RescueConfig  `koanf:"rescue"`
	Notify  NotifyConfig  `koanf:"notify"`
	Geodata GeodataConfig `koanf:"geodata"`
	Log     LogConfig     `koanf:"log"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr              string        `koanf:"addr"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`
}

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

type StorageConfig struct {
	Driver       string        `koanf:"driver"`
	PostgresDSN  string        `koanf:"postgres_dsn"`
	MaxOpenConns int           `koanf:"max_open_conns"`
	MaxIdleConns int           `koanf:"max_idle_conns"`
	TxTimeout    time.Duration `koanf:"tx_timeout"`
	// Bootstrap applies the embedded schema at startup.
	Bootstrap bool `koanf:"bootstrap"`
}

// RedisConfig is empty-URL tolerant: no URL means Redis is not used.
type RedisConfig struct {
	URL          string        `koanf:"url"`
	PoolSize     int           `koanf:"pool_size"`
	MinIdleConns int           `koanf:"min_idle_conns"`
	DialTimeout  time.Duration `koanf:"dial_timeout"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
	// Channel is the pub/sub channel the notifier fans events out to.
	Channel string `koanf:"channel"`
}

type KafkaConfig struct {
	Brokers           []string `koanf:"brokers"`
	NotificationTopic string   `koanf:"notification_topic"`
	ConsumerGroup     string   `koanf:"consumer_group"`
	Partitions        int32    `koanf:"partitions"`
	ReplicationFactor int16    `koanf:"replication_factor"`
}

// Enabled reports whether any broker is configured.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

type AuthConfig struct {
	JWTSigningKey string `koanf:"jwt_signing_key"`
	Issuer        string `koanf:"issuer"`
	Audience      string `koanf:"audience"`
	// LogDigestKey keys the BLAKE2b digests used in place of phone numbers.
	LogDigestKey string `koanf:"log_digest_key"`
	// AdminToken enables the /admin routes when set.
	AdminToken string `koanf:"admin_token"`
}

// Sequence backends for the code generator.
const (
	SequenceMemory   = "memory"
	SequenceRedis    = "redis"
	SequencePostgres = "postgres"
)

type CodegenConfig struct {
	MaxAttempts int    `koanf:"max_attempts"`
	Sequence    string `koanf:"sequence"`
}

// RescueConfig holds the point used as a rescue target when an emergency call
// has no caller location.
type RescueConfig struct {
	FallbackLon float64 `koanf:"fallback_lon"`
	FallbackLat float64 `koanf:"fallback_lat"`
}

type NotifyConfig struct {
	BufferSize    int           `koanf:"buffer_size"`
	FlushInterval time.Duration `koanf:"flush_interval"`
	BatchSize     int           `koanf:"batch_size"`
	// Consecutive sink failures before delivery pauses for BreakerCooldown.
	BreakerThreshold int           `koanf:"breaker_threshold"`
	BreakerCooldown  time.Duration `koanf:"breaker_cooldown"`
}

// GeodataConfig points at an optional GeoJSON export of flood zones loaded
// at startup.
type GeodataConfig struct {
	SeedFile string `koanf:"seed_file"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// New returns the defaults every layer starts from.
func New() *Config {
	return &Config{
		Server: Server{
			Addr:              ":8080",
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   15 * time.Second,
		},
		Storage: StorageConfig{
			Driver:       DriverMemory,
			MaxOpenConns: 25,
			MaxIdleConns: 5,
			TxTimeout:    5 * time.Second,
			Bootstrap:    true,
		},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			Channel:      "reliefops.notifications",
		},
		Kafka: KafkaConfig{
			NotificationTopic: "reliefops.notifications",
			ConsumerGroup:     "reliefops-notifier",
			Partitions:        3,
			ReplicationFactor: 1,
		},
		Auth: AuthConfig{
			JWTSigningKey: "dev-secret-key-change-in-production",
			Issuer:        "reliefops-idp",
			LogDigestKey:  "dev-log-digest-key",
		},
		Codegen: CodegenConfig{
			MaxAttempts: 5,
			Sequence:    SequenceMemory,
		},
		Notify: NotifyConfig{
			BufferSize:    1024,
			FlushInterval: 250 * time.Millisecond,
			BatchSize:     64,

			BreakerThreshold: 5,
			BreakerCooldown:  30 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
