// Package redis holds the two short-lived records the API keeps outside
// Postgres: stored responses for idempotent replays and fixed-window login
// counters.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/radarprecios/radarprecios-backend/pkg/config"
	"github.com/radarprecios/radarprecios-backend/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const (
	namespace   = "radar"
	replaySpace = "idempotency"
	windowSpace = "rate_limit"
)

var errNotConnected = errors.New("redis client not initialized")

// commands is the slice of go-redis the client issues.
type commands interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
	PTTL(ctx context.Context, key string) *redis.DurationCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// IdempotencyStore keeps one response record per (scope, key) pair.
type IdempotencyStore interface {
	Replay(ctx context.Context, scope, key string) (string, bool, error)
	Remember(ctx context.Context, scope, key, record string, ttl time.Duration) (bool, error)
}

// RateLimitStore counts hits inside a fixed window.
type RateLimitStore interface {
	Hit(ctx context.Context, scope string, window time.Duration) (Window, error)
}

// Window is the state of a counter right after a hit.
type Window struct {
	Count   int64
	ResetIn time.Duration
}

type Client struct {
	cmd commands
	raw *redis.Client
}

// New connects using the URL when set, the address otherwise.
func New(ctx context.Context, cfg config.RedisConfig, logg *logger.Logger) (*Client, error) {
	opts, err := clientOptions(cfg)
	if err != nil {
		return nil, err
	}
	raw := redis.NewClient(opts)
	if err := raw.Ping(ctx).Err(); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", opts.Addr, err)
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{"addr": opts.Addr, "db": opts.DB}), "redis.connected")
	}
	return &Client{cmd: raw, raw: raw}, nil
}

func clientOptions(cfg config.RedisConfig) (*redis.Options, error) {
	var opts *redis.Options
	switch {
	case strings.TrimSpace(cfg.URL) != "":
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		opts = parsed
	case strings.TrimSpace(cfg.Address) != "":
		opts = &redis.Options{Addr: cfg.Address, Password: cfg.Password, DB: cfg.DB}
	default:
		return nil, errors.New("redis url or address is required")
	}

	// values encoded in the URL win over the discrete settings
	if opts.DB == 0 {
		opts.DB = cfg.DB
	}
	if opts.PoolSize == 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if opts.MinIdleConns == 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}
	return opts, nil
}

// Replay loads the record stored for scope and key. The boolean is false
// when nothing was stored yet.
func (c *Client) Replay(ctx context.Context, scope, key string) (string, bool, error) {
	if c.cmd == nil {
		return "", false, errNotConnected
	}
	record, err := c.cmd.Get(ctx, keyFor(replaySpace, scope, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return record, true, nil
}

// Remember stores record unless a concurrent request stored one first.
func (c *Client) Remember(ctx context.Context, scope, key, record string, ttl time.Duration) (bool, error) {
	if c.cmd == nil {
		return false, errNotConnected
	}
	return c.cmd.SetNX(ctx, keyFor(replaySpace, scope, key), record, ttl).Result()
}

// Hit increments the counter for scope. The window starts with the first
// hit; a counter found without expiry gets one, so a failed Expire can never
// lock a caller out for good.
func (c *Client) Hit(ctx context.Context, scope string, window time.Duration) (Window, error) {
	if c.cmd == nil {
		return Window{}, errNotConnected
	}
	key := keyFor(windowSpace, scope)

	count, err := c.cmd.Incr(ctx, key).Result()
	if err != nil {
		return Window{}, err
	}
	remaining, err := c.cmd.PTTL(ctx, key).Result()
	if err != nil {
		return Window{Count: count}, err
	}
	if remaining < 0 && window > 0 {
		if err := c.cmd.Expire(ctx, key, window).Err(); err != nil {
			return Window{Count: count}, err
		}
		remaining = window
	}
	return Window{Count: count, ResetIn: remaining}, nil
}

func (c *Client) Ping(ctx context.Context) error {
	if c.cmd == nil {
		return errNotConnected
	}
	return c.cmd.Ping(ctx).Err()
}

func (c *Client) Close() error {
	if c.raw == nil {
		return nil
	}
	return c.raw.Close()
}

func keyFor(space string, parts ...string) string {
	key := namespace + ":" + space
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			key += ":" + part
		}
	}
	return key
}
