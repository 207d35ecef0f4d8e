package kvstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store over go-redis. It is the production KV tier
// backing every coordinator snapshot, cache, index, and session key.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore builds a RedisStore from a redis:// URL, same
// ParseURL-then-NewClient shape the application has always used for its
// Redis connection.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &RedisStore{client: redis.NewClient(opts)}, nil
}

// Ping verifies connectivity; call on startup to fail fast.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	v, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("kvstore get %s: %w", key, err)
	}
	return v, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("kvstore set %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) SetTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("kvstore setttl %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("kvstore setnx %s: %w", key, err)
	}
	return ok, nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("kvstore delete %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Incr(ctx context.Context, key string, delta int64) (int64, error) {
	v, err := s.client.IncrBy(ctx, key, delta).Result()
	if err != nil {
		return 0, fmt.Errorf("kvstore incr %s: %w", key, err)
	}
	return v, nil
}

func (s *RedisStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := s.client.Expire(ctx, key, ttl).Err(); err != nil {
		return fmt.Errorf("kvstore expire %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) ScanPrefix(ctx context.Context, prefix string, limit int) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)
	pattern := prefix + "*"
	for {
		batch, next, err := s.client.Scan(ctx, cursor, pattern, 500).Result()
		if err != nil {
			return nil, fmt.Errorf("kvstore scan %s: %w", prefix, err)
		}
		keys = append(keys, batch...)
		cursor = next
		if limit > 0 && len(keys) >= limit {
			keys = keys[:limit]
			break
		}
		if cursor == 0 {
			break
		}
	}
	return keys, nil
}

func (s *RedisStore) SAdd(ctx context.Context, key, member string) error {
	if err := s.client.SAdd(ctx, key, member).Err(); err != nil {
		return fmt.Errorf("kvstore sadd %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) SRem(ctx context.Context, key, member string) error {
	if err := s.client.SRem(ctx, key, member).Err(); err != nil {
		return fmt.Errorf("kvstore srem %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) SMembers(ctx context.Context, key string) ([]string, error) {
	v, err := s.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("kvstore smembers %s: %w", key, err)
	}
	return v, nil
}

func (s *RedisStore) SIsMember(ctx context.Context, key, member string) (bool, error) {
	v, err := s.client.SIsMember(ctx, key, member).Result()
	if err != nil {
		return false, fmt.Errorf("kvstore sismember %s: %w", key, err)
	}
	return v, nil
}

func (s *RedisStore) SCard(ctx context.Context, key string) (int64, error) {
	v, err := s.client.SCard(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("kvstore scard %s: %w", key, err)
	}
	return v, nil
}

func (s *RedisStore) LPush(ctx context.Context, key, value string) error {
	if err := s.client.LPush(ctx, key, value).Err(); err != nil {
		return fmt.Errorf("kvstore lpush %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	v, err := s.client.LRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("kvstore lrange %s: %w", key, err)
	}
	return v, nil
}

func (s *RedisStore) LTrim(ctx context.Context, key string, start, stop int64) error {
	if err := s.client.LTrim(ctx, key, start, stop).Err(); err != nil {
		return fmt.Errorf("kvstore ltrim %s: %w", key, err)
	}
	return nil
}

// ZAdd adds member with score. It is a plain ZADD: capacity trimming
// (ZREMRANGEBYRANK) and expiry are left to callers that need them.
func (s *RedisStore) ZAdd(ctx context.Context, key string, score float64, member string) error {
	if err := s.client.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err(); err != nil {
		return fmt.Errorf("kvstore zadd %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) ZRem(ctx context.Context, key, member string) error {
	if err := s.client.ZRem(ctx, key, member).Err(); err != nil {
		return fmt.Errorf("kvstore zrem %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) ZRevRangeByScore(ctx context.Context, key string, maxScore *float64, limit int) ([]ScoredMember, error) {
	max := "+inf"
	if maxScore != nil {
		max = fmt.Sprintf("(%s", strconv.FormatFloat(*maxScore, 'f', -1, 64))
	}
	results, err := s.client.ZRevRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   max,
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("kvstore zrevrangebyscore %s: %w", key, err)
	}
	out := make([]ScoredMember, len(results))
	for i, z := range results {
		member, _ := z.Member.(string)
		out[i] = ScoredMember{Member: member, Score: z.Score}
	}
	return out, nil
}

func (s *RedisStore) ZRemRangeByRank(ctx context.Context, key string, start, stop int64) error {
	if err := s.client.ZRemRangeByRank(ctx, key, start, stop).Err(); err != nil {
		return fmt.Errorf("kvstore zremrangebyrank %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) ZCard(ctx context.Context, key string) (int64, error) {
	v, err := s.client.ZCard(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("kvstore zcard %s: %w", key, err)
	}
	return v, nil
}
