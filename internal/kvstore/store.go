// Package kvstore is the KV tier contract (C2): an eventually consistent
// string→string map with TTL and prefix listing, used for coordinator
// snapshots, caches, indexes, and sessions.
package kvstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("kvstore: key not found")

// Store is the narrow interface every component consults for reads and that
// coordinators use for their authoritative blobs. No caller outside a
// coordinator may write an entity's canonical state directly; they may only
// read snapshots and write their own cache/index/session keys.
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set writes key=value with no expiry.
	Set(ctx context.Context, key, value string) error

	// SetTTL writes key=value that expires after ttl.
	SetTTL(ctx context.Context, key, value string, ttl time.Duration) error

	// SetNX writes key=value only if key does not already exist; reports
	// whether the write happened. Used for atomic handle/email reservation.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// Delete removes key. Deleting an absent key is a no-op success.
	Delete(ctx context.Context, key string) error

	// Incr atomically increments the integer stored at key (0 if absent) and
	// returns the new value.
	Incr(ctx context.Context, key string, delta int64) (int64, error)

	// Expire resets the TTL on an existing key.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// ScanPrefix lists keys beginning with prefix, up to limit (0 = unbounded
	// up to the store's own safety cap).
	ScanPrefix(ctx context.Context, prefix string, limit int) ([]string, error)

	// SAdd/SRem/SMembers/SIsMember back the relation sets (following,
	// followers, blocked, likes, reposts) a coordinator keeps.
	SAdd(ctx context.Context, key string, member string) error
	SRem(ctx context.Context, key string, member string) error
	SMembers(ctx context.Context, key string) ([]string, error)
	SIsMember(ctx context.Context, key string, member string) (bool, error)
	SCard(ctx context.Context, key string) (int64, error)

	// LPush/LRange/LTrim back bounded, recency-ordered lists (liked-posts
	// index, notification lists, authored-posts and replies indices).
	LPush(ctx context.Context, key string, value string) error
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	LTrim(ctx context.Context, key string, start, stop int64) error

	// ZAdd/ZRevRangeByScore/ZRem/ZCard back timestamp-sorted structures
	// (feed entries, explore ranking).
	ZAdd(ctx context.Context, key string, score float64, member string) error
	ZRem(ctx context.Context, key string, member string) error
	ZRevRangeByScore(ctx context.Context, key string, maxScore *float64, limit int) ([]ScoredMember, error)
	ZRemRangeByRank(ctx context.Context, key string, start, stop int64) error
	ZCard(ctx context.Context, key string) (int64, error)

	Close() error
}

// ScoredMember pairs a sorted-set member with its score, used for
// timestamp-ordered reads (feed entries, explore ranking).
type ScoredMember struct {
	Member string
	Score  float64
}
