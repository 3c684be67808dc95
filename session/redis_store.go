package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a Redis-backed [Store].
//
//	Docs: docs/session.md
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a [RedisStore]. prefix namespaces the keys; a zero ttl keeps
// entries until wiped.
func NewRedisStore(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "gymauth"
	}
	return &RedisStore{
		redis:  client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (s *RedisStore) key(name string) string {
	return s.prefix + ":" + name
}

// SaveTokens writes both tokens in one transaction. Either one missing is rejected.
func (s *RedisStore) SaveTokens(ctx context.Context, tokens Tokens) error {
	if err := tokens.Validate(); err != nil {
		return err
	}
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(keyAccessToken), tokens.Access, s.ttl)
		pipe.Set(ctx, s.key(keyRefreshToken), tokens.Refresh, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// SaveIdentity writes the identity record.
func (s *RedisStore) SaveIdentity(ctx context.Context, identity Identity) error {
	data, err := EncodeIdentity(identity)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(keyIdentity), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Load reads all three entries with a single MGET.
func (s *RedisStore) Load(ctx context.Context) (Record, error) {
	vals, err := s.redis.MGet(ctx, s.key(keyIdentity), s.key(keyAccessToken), s.key(keyRefreshToken)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	identity, hasIdentity := vals[0].(string)
	access, hasAccess := vals[1].(string)
	refresh, hasRefresh := vals[2].(string)

	return assemble([]byte(identity), hasIdentity, access, hasAccess, refresh, hasRefresh)
}

// Wipe deletes every entry of the session.
func (s *RedisStore) Wipe(ctx context.Context) error {
	if err := s.redis.Del(ctx, s.key(keyIdentity), s.key(keyAccessToken), s.key(keyRefreshToken)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Ping reports Redis round-trip latency.
func (s *RedisStore) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return time.Since(start), nil
}
