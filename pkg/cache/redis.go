package cache

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Redis struct {
	client *goredis.Client
	config Config
	log    *zap.SugaredLogger
}

// NewRedis connects to url (redis://...) and pings the server.
func NewRedis(ctx context.Context, url string, config Config, logger *zap.Logger) (*Redis, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisWithClient(client, config, logger), nil
}

func NewRedisWithClient(client *goredis.Client, config Config, logger *zap.Logger) *Redis {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Redis{
		client: client,
		config: config.withDefaults(),
		log:    logger.Sugar(),
	}
}

func (r *Redis) Get(ctx context.Context, question string) (string, error) {
	key := Key(r.config.KeyPrefix, question)

	answer, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			r.log.Debugw("cache miss", "key", key)
			return "", ErrMiss
		}
		r.log.Warnw("failed to get from cache", "error", err, "key", key)
		return "", err
	}

	r.log.Debugw("cache hit", "key", key, "answer_length", len(answer))
	return answer, nil
}

func (r *Redis) Set(ctx context.Context, question, answer string) error {
	key := Key(r.config.KeyPrefix, question)

	if err := r.client.Set(ctx, key, answer, r.config.TTL).Err(); err != nil {
		r.log.Warnw("failed to set cache", "error", err, "key", key)
		return err
	}
	return nil
}

// Clear deletes every key under the configured prefix.
func (r *Redis) Clear(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, r.config.KeyPrefix+"*", 100).Result()
		if err != nil {
			return fmt.Errorf("failed to scan cache keys: %w", err)
		}
		if len(keys) > 0 {
			if err := r.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("failed to delete cache keys: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func (r *Redis) Close() error {
	return r.client.Close()
}
