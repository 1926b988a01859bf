// Package redisclient builds the Redis client shared by the session store, the
// authorized client store, the login flow store and the event consumer.
package redisclient

import (
	"context"
	"time"

	"github.com/jrsteele09/go-auth-gateway/internal/errors"
	"github.com/redis/go-redis/v9"
)

// Default timeouts for Redis operations.
const (
	DefaultDialTimeout  = 5 * time.Second
	DefaultReadTimeout  = 3 * time.Second
	DefaultWriteTimeout = 3 * time.Second
)

type Config struct {
	Addr     string
	Password string
	DB       int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// New connects to Redis and checks the connection. A failure here is a
// configuration error: the gateway cannot run without its stores.
func New(ctx context.Context, cfg Config) (redis.UniversalClient, error) {
	if cfg.Addr == "" {
		return nil, errors.Wrapf(errors.ErrConfiguration, "[redisclient.New] address is required")
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(errors.ErrConfiguration, "[redisclient.New] failed to connect to redis at %s: %v", cfg.Addr, err)
	}
	return client, nil
}
