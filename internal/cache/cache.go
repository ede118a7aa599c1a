package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gianverdum/member-registry/internal/models"
)

const (
	keyPrefix     = "members:"
	genSuffix     = ":gen"
	generationTTL = 24 * time.Hour
)

// fillScript writes the member only while its generation is unchanged
var fillScript = redis.NewScript(`
local current = redis.call("GET", KEYS[2])
if (current or "0") ~= ARGV[1] then
	return 0
end
redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
return 1
`)

// Config holds all configuration for the Redis member cache.
// An empty Addr disables caching.
type Config struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// MemberCache is a read-through cache for single member lookups.
// Failures are logged and never reach the caller.
//
// Every Invalidate bumps the member's generation. A reader takes the
// generation before loading from the database and passes it to Fill, so a
// row loaded before a concurrent update or delete is never cached after it.
type MemberCache interface {
	Get(ctx context.Context, id uint) (*models.MemberResponse, bool)
	Generation(ctx context.Context, id uint) string
	Fill(ctx context.Context, member models.MemberResponse, generation string)
	Invalidate(ctx context.Context, id uint)
	HealthCheck(ctx context.Context) error
	Enabled() bool
	Close() error
}

// RedisMemberCache stores members as JSON strings keyed by id
type RedisMemberCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisMemberCache connects to Redis and verifies the connection
func NewRedisMemberCache(cfg Config) (*RedisMemberCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisMemberCache{client: rdb, ttl: ttl}, nil
}

// New returns a Redis cache when an address is configured, otherwise a no-op
// cache. A Redis that cannot be reached is reported as an error.
func New(cfg Config) (MemberCache, error) {
	if cfg.Addr == "" {
		slog.Info("Member cache disabled", "reason", "REDIS_ADDR not configured")
		return NoopCache{}, nil
	}
	c, err := NewRedisMemberCache(cfg)
	if err != nil {
		return nil, err
	}
	slog.Info("Member cache initialized", "addr", cfg.Addr, "ttl", c.ttl)
	return c, nil
}

func memberKey(id uint) string {
	return keyPrefix + strconv.FormatUint(uint64(id), 10)
}

func generationKey(id uint) string {
	return memberKey(id) + genSuffix
}

// Get returns the cached member, reporting a miss on any error
func (c *RedisMemberCache) Get(ctx context.Context, id uint) (*models.MemberResponse, bool) {
	raw, err := c.client.Get(ctx, memberKey(id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("Member cache read failed", "id", id, "error", err)
		}
		return nil, false
	}

	var member models.MemberResponse
	if err := json.Unmarshal(raw, &member); err != nil {
		slog.Warn("Discarding corrupt member cache entry", "id", id, "error", err)
		c.Invalidate(ctx, id)
		return nil, false
	}
	return &member, true
}

// Generation returns the member's current generation, "0" when never invalidated
func (c *RedisMemberCache) Generation(ctx context.Context, id uint) string {
	gen, err := c.client.Get(ctx, generationKey(id)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("Member cache generation read failed", "id", id, "error", err)
			return ""
		}
		return "0"
	}
	return gen
}

// Fill stores the member for the configured TTL unless it was invalidated
// since generation was read
func (c *RedisMemberCache) Fill(ctx context.Context, member models.MemberResponse, generation string) {
	if generation == "" {
		return
	}
	raw, err := json.Marshal(member)
	if err != nil {
		slog.Warn("Failed to encode member for cache", "id", member.ID, "error", err)
		return
	}
	keys := []string{memberKey(member.ID), generationKey(member.ID)}
	stored, err := fillScript.Run(ctx, c.client, keys, generation, raw, c.ttl.Milliseconds()).Int()
	if err != nil {
		slog.Warn("Member cache write failed", "id", member.ID, "error", err)
		return
	}
	if stored == 0 {
		slog.Debug("Skipped stale member cache fill", "id", member.ID)
	}
}

// Invalidate drops the cached member and bumps its generation
func (c *RedisMemberCache) Invalidate(ctx context.Context, id uint) {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, generationKey(id))
		pipe.Expire(ctx, generationKey(id), generationTTL)
		pipe.Del(ctx, memberKey(id))
		return nil
	})
	if err != nil {
		slog.Warn("Member cache invalidation failed", "id", id, "error", err)
	}
}

// HealthCheck pings Redis
func (c *RedisMemberCache) HealthCheck(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisMemberCache) Enabled() bool { return true }

// Close gracefully closes the Redis connection.
func (c *RedisMemberCache) Close() error {
	return c.client.Close()
}

// NoopCache is used when Redis is not configured
type NoopCache struct{}

func (NoopCache) Get(context.Context, uint) (*models.MemberResponse, bool) { return nil, false }
func (NoopCache) Generation(context.Context, uint) string { return "" }
func (NoopCache) Fill(context.Context, models.MemberResponse, string) {}
func (NoopCache) Invalidate(context.Context, uint) {}
func (NoopCache) HealthCheck(context.Context) error { return nil }
func (NoopCache) Enabled() bool { return false }
func (NoopCache) Close() error { return nil }
