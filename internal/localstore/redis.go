package localstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "pai-scorm"

// RedisStore keeps fallback values in Redis/Dragonfly. Session-scoped keys
// expire after the configured TTL; persistent keys never expire.
type RedisStore struct {
	client     *redis.Client
	namespace  string
	sessionTTL time.Duration
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(client *redis.Client, sessionTTL time.Duration) *RedisStore {
	return &RedisStore{client: client, sessionTTL: sessionTTL}
}

// Namespace returns a view of the store scoped to ns.
func (s *RedisStore) Namespace(ns string) *RedisStore {
	return &RedisStore{client: s.client, namespace: ns, sessionTTL: s.sessionTTL}
}

func (s *RedisStore) Get(ctx context.Context, key Key) (string, bool, error) {
	v, err := s.client.Get(ctx, s.redisKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", key.Name, err)
	}
	return v, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key Key, value string) error {
	if key.Name == "" {
		return fmt.Errorf("key name is required")
	}
	var ttl time.Duration
	if key.Scope == ScopeSession {
		ttl = s.sessionTTL
	}
	if err := s.client.Set(ctx, s.redisKey(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key.Name, err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, scope Scope) error {
	pattern := redisKeyPattern(s.namespace, scope)
	iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan %s: %w", pattern, err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (s *RedisStore) redisKey(key Key) string {
	return redisKeyName(s.namespace, key)
}

func redisKeyName(namespace string, key Key) string {
	return fmt.Sprintf("%s:%s:%s:%s", redisKeyPrefix, namespace, key.Scope, key.Name)
}

// redisKeyPattern matches every key of scope in namespace. The namespace is
// escaped so it can only ever match itself.
func redisKeyPattern(namespace string, scope Scope) string {
	return fmt.Sprintf("%s:%s:%s:*", redisKeyPrefix, globEscape(namespace), scope)
}

func globEscape(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
