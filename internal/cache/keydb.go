package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/enlacemx/recordkit/internal/config"
	"github.com/enlacemx/recordkit/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// KeyDBStore shares the response cache between processes through a
// KeyDB (or Redis) instance. Useful when several workers talk to the
// same portal and should not re-fetch each other's pages.
type KeyDBStore struct {
	client *redis.Client
	logger logger.Logger
}

func NewKeyDBStore(cfg config.KeyDB, log logger.Logger) *KeyDBStore {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	return &KeyDBStore{
		client: client,
		logger: log.WithComponent("keydb-cache"),
	}
}

// NewKeyDBStoreWithClient wires an existing client, used by tests.
func NewKeyDBStoreWithClient(client *redis.Client, log logger.Logger) *KeyDBStore {
	return &KeyDBStore{
		client: client,
		logger: log.WithComponent("keydb-cache"),
	}
}

func (s *KeyDBStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *KeyDBStore) Close() error {
	return s.client.Close()
}

func (s *KeyDBStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	startTime := time.Now()

	value, err := s.client.Get(ctx, key).Bytes()

	s.logger.Debug().
		Str("key", key).
		Int64("duration_ms", time.Since(startTime).Milliseconds()).
		Bool("hit", err == nil).
		Msg("keydb get operation")

	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}

		s.logger.Error().
			Err(err).
			Str("key", key).
			Msg("keydb get operation failed")

		return nil, false, err
	}

	return value, true, nil
}

func (s *KeyDBStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	startTime := time.Now()
	var err error

	defer func() {
		s.logger.Debug().
			Str("key", key).
			Str("expiry", ttl.String()).
			Int64("duration_ms", time.Since(startTime).Milliseconds()).
			Bool("success", err == nil).
			Msg("keydb set operation")
	}()

	err = s.client.Set(ctx, key, value, ttl).Err()

	return err
}

func (s *KeyDBStore) Delete(ctx context.Context, key string) error {
	startTime := time.Now()
	var err error

	defer func() {
		s.logger.Debug().
			Str("key", key).
			Int64("duration_ms", time.Since(startTime).Milliseconds()).
			Bool("success", err == nil).
			Msg("keydb delete operation")
	}()

	err = s.client.Del(ctx, key).Err()

	return err
}

// Clear walks the keyspace with SCAN so large instances are not blocked
// the way KEYS would block them.
func (s *KeyDBStore) Clear(ctx context.Context, prefix string) error {
	pattern := prefix + "*"

	var cursor uint64
	for {
		keys, nextCursor, err := s.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return fmt.Errorf("scanning keys: %w", err)
		}

		if len(keys) > 0 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("deleting scanned keys: %w", err)
			}
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	s.logger.Debug().
		Str("prefix", prefix).
		Msg("keydb clear operation")

	return nil
}
