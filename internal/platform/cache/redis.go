// Package cache wraps Redis for short-lived read caches. A Store without a
// client is valid and behaves as a permanent miss.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type Store struct {
	client *redis.Client
	logger zerolog.Logger
}

// Connect parses url and pings the server. An empty url returns a disabled
// store. A failed ping also returns a disabled store together with the error
// so the caller can log it and carry on.
func Connect(ctx context.Context, url string, logger zerolog.Logger) (*Store, error) {
	if url == "" {
		return &Store{logger: logger}, nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return &Store{logger: logger}, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return &Store{logger: logger}, fmt.Errorf("ping redis: %w", err)
	}
	return &Store{client: client, logger: logger}, nil
}

// New wraps an existing client. A nil client disables the store.
func New(client *redis.Client, logger zerolog.Logger) *Store {
	return &Store{client: client, logger: logger}
}

func (s *Store) Enabled() bool {
	return s != nil && s.client != nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool) {
	if !s.Enabled() {
		return nil, false
	}
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("cache get failed")
		}
		return nil, false
	}
	return data, true
}

func (s *Store) Set(ctx context.Context, key string, data []byte, ttl time.Duration) {
	if !s.Enabled() {
		return
	}
	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("cache set failed")
	}
}

func (s *Store) Delete(ctx context.Context, keys ...string) {
	if !s.Enabled() || len(keys) == 0 {
		return
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		s.logger.Warn().Err(err).Strs("keys", keys).Msg("cache delete failed")
	}
}

func (s *Store) Close() error {
	if !s.Enabled() {
		return nil
	}
	return s.client.Close()
}
