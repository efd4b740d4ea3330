// Package cache keeps per-conversation reply history in Redis.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	CacheVersion = "v1"
	keyPrefix    = "whatsapp-relay:" + CacheVersion
	lockTTL      = 90 * time.Second
)

// Turn is one exchanged message kept for reply context.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// HistoryStore keeps recent turns per context key.
type HistoryStore interface {
	Load(ctx context.Context, contextKey string) ([]Turn, error)
	Append(ctx context.Context, contextKey string, turns ...Turn) error
	// WithLock runs fn while holding the context key's lock.
	WithLock(ctx context.Context, contextKey string, fn func() error) error
}

// RedisHistory stores turns in capped Redis lists.
type RedisHistory struct {
	client   redis.UniversalClient
	rs       *redsync.Redsync
	maxTurns int
	ttl      time.Duration
	log      zerolog.Logger
}

var _ HistoryStore = (*RedisHistory)(nil)

// NewRedisHistory connects to Redis and verifies the connection.
func NewRedisHistory(redisURL string, maxTurns int, ttl time.Duration, log zerolog.Logger) (*RedisHistory, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("redis URL must be provided")
	}

	opts, err := buildUniversalOptions(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	log = log.With().Str("component", "history-cache").Logger()
	if len(opts.Addrs) > 1 && opts.DB != 0 {
		log.Warn().Msg("ignoring non-zero DB when using Redis Cluster configuration")
		opts.DB = 0
	}

	client := redis.NewUniversalClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	if maxTurns <= 0 {
		maxTurns = 10
	}

	log.Info().Int("max_turns", maxTurns).Msg("connected to redis history cache")
	return &RedisHistory{
		client:   client,
		rs:       redsync.New(goredis.NewPool(client)),
		maxTurns: maxTurns,
		ttl:      ttl,
		log:      log,
	}, nil
}

// Load returns the stored turns, oldest first.
func (r *RedisHistory) Load(ctx context.Context, contextKey string) ([]Turn, error) {
	raw, err := r.client.LRange(ctx, historyKey(contextKey), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	turns := make([]Turn, 0, len(raw))
	for _, item := range raw {
		var turn Turn
		if err := json.Unmarshal([]byte(item), &turn); err != nil {
			r.log.Warn().Err(err).Str("context_key", contextKey).Msg("skipping malformed history entry")
			continue
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

// Append adds turns and trims the list to the most recent maxTurns entries.
func (r *RedisHistory) Append(ctx context.Context, contextKey string, turns ...Turn) error {
	if len(turns) == 0 {
		return nil
	}

	values := make([]any, 0, len(turns))
	for _, turn := range turns {
		encoded, err := json.Marshal(turn)
		if err != nil {
			return fmt.Errorf("encode history turn: %w", err)
		}
		values = append(values, string(encoded))
	}

	key := historyKey(contextKey)
	pipe := r.client.TxPipeline()
	pipe.RPush(ctx, key, values...)
	pipe.LTrim(ctx, key, int64(-r.maxTurns), -1)
	if r.ttl > 0 {
		pipe.Expire(ctx, key, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

// WithLock serializes reply generation for one conversation across replicas.
func (r *RedisHistory) WithLock(ctx context.Context, contextKey string, fn func() error) error {
	mutex := r.rs.NewMutex(lockKey(contextKey), redsync.WithExpiry(lockTTL))
	if err := mutex.LockContext(ctx); err != nil {
		return fmt.Errorf("lock history %s: %w", contextKey, err)
	}
	defer func() {
		if _, err := mutex.UnlockContext(context.WithoutCancel(ctx)); err != nil {
			r.log.Error().Err(err).Str("context_key", contextKey).Msg("failed to unlock history")
		}
	}()
	return fn()
}

// HealthCheck pings Redis.
func (r *RedisHistory) HealthCheck(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the Redis client.
func (r *RedisHistory) Close() error {
	return r.client.Close()
}

func historyKey(contextKey string) string {
	return keyPrefix + ":history:" + contextKey
}

func lockKey(contextKey string) string {
	return keyPrefix + ":lock:" + contextKey
}

func buildUniversalOptions(raw string) (*redis.UniversalOptions, error) {
	opts := &redis.UniversalOptions{}

	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if !strings.Contains(part, "://") {
			opts.Addrs = append(opts.Addrs, part)
			continue
		}

		parsed, err := redis.ParseURL(part)
		if err != nil {
			return nil, err
		}
		opts.Addrs = append(opts.Addrs, parsed.Addr)
		if opts.Username == "" {
			opts.Username = parsed.Username
		}
		if opts.Password == "" {
			opts.Password = parsed.Password
		}
		if opts.DB == 0 {
			opts.DB = parsed.DB
		}
		if opts.TLSConfig == nil {
			opts.TLSConfig = parsed.TLSConfig
		}
	}

	if len(opts.Addrs) == 0 {
		return nil, fmt.Errorf("no redis addresses provided")
	}
	return opts, nil
}
