package config

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyAddr          = errors.New("server.addr must not be empty")
	ErrUnknownDriver      = errors.New("storage.driver must be memory or postgres")
	ErrMissingDSN         = errors.New("storage.postgres_dsn is required for the postgres driver")
	ErrUnknownSequence    = errors.New("codegen.sequence must be memory, redis or postgres")
	ErrSequenceNeedsRedis = errors.New("codegen.sequence=redis requires redis.url")
	ErrSequenceNeedsPG    = errors.New("codegen.sequence=postgres requires storage.driver=postgres")
	ErrMaxAttempts        = errors.New("codegen.max_attempts must be at least 1")
	ErrSigningKey         = errors.New("auth.jwt_signing_key must not be empty")
	ErrBufferSize         = errors.New("notify.buffer_size must be positive")
)

// Validate checks cross-field constraints after all layers are merged.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return ErrEmptyAddr
	}
	switch c.Storage.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Storage.PostgresDSN == "" {
			return ErrMissingDSN
		}
	default:
		return fmt.Errorf("%w: got %q", ErrUnknownDriver, c.Storage.Driver)
	}
	switch c.Codegen.Sequence {
	case SequenceMemory:
	case SequenceRedis:
		if c.Redis.URL == "" {
			return ErrSequenceNeedsRedis
		}
	case SequencePostgres:
		if c.Storage.Driver != DriverPostgres {
			return ErrSequenceNeedsPG
		}
	default:
		return fmt.Errorf("%w: got %q", ErrUnknownSequence, c.Codegen.Sequence)
	}
	if c.Codegen.MaxAttempts < 1 {
		return ErrMaxAttempts
	}
	if c.Auth.JWTSigningKey == "" {
		return ErrSigningKey
	}
	if c.Notify.BufferSize <= 0 {
		return ErrBufferSize
	}
	return nil
}
