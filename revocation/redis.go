package revocation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const minRedisTTL = time.Second

// RedisStore keeps one key per revoked token. Keys expire on their own once
// the token could no longer validate, so the store needs no Janitor.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
	grace  time.Duration
	now    func() time.Time
}

// NewRedisStore returns a store writing keys under prefix. An empty prefix
// selects "tg". grace <= 0 selects DefaultGrace.
func NewRedisStore(client redis.UniversalClient, prefix string, grace time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "tg"
	}
	if grace <= 0 {
		grace = DefaultGrace
	}
	return &RedisStore{
		redis:  client,
		prefix: prefix,
		grace:  grace,
		now:    time.Now,
	}
}

// WithClock sets the clock used to turn retention deadlines into key TTLs.
// It should be the clock the validating engine uses. nil is ignored.
func (s *RedisStore) WithClock(now func() time.Time) *RedisStore {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *RedisStore) key(tokenID string) string {
	return s.prefix + ":revoked:" + tokenID
}

// Revoke writes the entry with SET NX. An existing key is left untouched.
func (s *RedisStore) Revoke(ctx context.Context, entry Entry) error {
	var ttl time.Duration
	if until, ok := entry.retainUntil(s.grace); ok {
		ttl = until.Sub(s.now())
		if ttl < minRedisTTL {
			ttl = minRedisTTL
		}
	}

	value := strconv.FormatInt(entry.RevokedAt.Unix(), 10)
	if err := s.redis.SetNX(ctx, s.key(entry.TokenID), value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// IsRevoked checks key existence.
func (s *RedisStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := s.redis.Exists(ctx, s.key(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n > 0, nil
}

// Ping reports Redis reachability.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
