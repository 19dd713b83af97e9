package redis

import (
	"context"

	"qarzdaftari/internal/config"

	"github.com/go-redis/redis/v8"
)

// RedisClient is the connection surface main wires: liveness and shutdown.
// Everything else goes through raw(), which the locker consumes.
type RedisClient interface {
	Ping(ctx context.Context) error
	Close() error
}

var _ RedisClient = (*redClient)(nil)

type redClient struct {
	cli *redis.Client
}

func NewClient(ctx context.Context, cfg *config.RedisConfig) (*redClient, error) {
	opts := &redis.Options{
		Addr:     cfg.URL,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	c := redis.NewClient(opts)
	if err := c.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &redClient{cli: c}, nil
}

func (c *redClient) Ping(ctx context.Context) error { return c.cli.Ping(ctx).Err() }

func (c *redClient) Close() error { return c.cli.Close() }

// raw exposes the underlying client to sibling files in this package.
func (c *redClient) raw() *redis.Client { return c.cli }
