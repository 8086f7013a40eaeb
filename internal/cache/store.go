package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	ImageTTL        = 24 * time.Hour
	AutocompleteTTL = 30 * time.Second

	// MaxCachedImageBytes keeps large uploads out of Redis.
	MaxCachedImageBytes = 512 << 10
)

// ImageKey is where an image's bytes and content type are cached.
func ImageKey(id uint) string {
	return fmt.Sprintf("image:%d", id)
}

// AutocompleteKey is where a prefix lookup result is cached.
func AutocompleteKey(kind, prefix string, limit int) string {
	return fmt.Sprintf("autocomplete:%s:%d:%s", kind, limit, strings.ToLower(prefix))
}

// TokenBlacklistKey marks a revoked token id.
func TokenBlacklistKey(jti string) string {
	return fmt.Sprintf("jwt:blacklist:%s", jti)
}

// Store is a thin cache-aside layer. A Store with a nil client misses on every read and
// ignores every write.
type Store struct {
	rdb *redis.Client
}

// NewStore wraps rdb, which may be nil.
func NewStore(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

// Enabled reports whether a Redis client is attached.
func (s *Store) Enabled() bool {
	return s != nil && s.rdb != nil
}

// GetJSON attempts to get the key from Redis and unmarshal into dest.
// Returns (true, nil) if found and unmarshaled, (false, nil) if not found.
func (s *Store) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	if !s.Enabled() {
		return false, nil
	}
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON marshals v and sets the key with TTL.
func (s *Store) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	if !s.Enabled() {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, key, b, ttl).Err()
}

// Aside tries Redis first; on a miss (or a Redis error) it calls fetch, which must populate
// dest, then stores dest best-effort.
func (s *Store) Aside(ctx context.Context, key string, dest any, ttl time.Duration, fetch func() error) error {
	if found, err := s.GetJSON(ctx, key, dest); err == nil && found {
		return nil
	}

	if err := fetch(); err != nil {
		return err
	}

	_ = s.SetJSON(ctx, key, dest, ttl)
	return nil
}

// Set stores a raw value.
func (s *Store) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if !s.Enabled() {
		return nil
	}
	return s.rdb.Set(ctx, key, value, ttl).Err()
}

// Exists reports whether key is present. Redis errors read as absent.
func (s *Store) Exists(ctx context.Context, key string) bool {
	if !s.Enabled() {
		return false
	}
	n, err := s.rdb.Exists(ctx, key).Result()
	return err == nil && n > 0
}

// Invalidate deletes keys best-effort.
func (s *Store) Invalidate(ctx context.Context, keys ...string) {
	if !s.Enabled() || len(keys) == 0 {
		return
	}
	s.rdb.Del(ctx, keys...)
}
