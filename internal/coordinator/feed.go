package coordinator

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"thewire/internal/actor"
	"thewire/internal/kvstore"
	"thewire/internal/model"
)

// FeedCoord owns one user's bounded, timestamp-sorted feed entry list,
// represented as a KV sorted set (member = "timestampNanos:postId:authorId:source").
type FeedCoord struct {
	store    kvstore.Store
	registry *actor.Registry
	capacity int
}

// NewFeedCoord builds a FeedCoord backed by store, with the default 5000-entry
// capacity per feed.
func NewFeedCoord(store kvstore.Store, idleTimeout time.Duration) *FeedCoord {
	return &FeedCoord{store: store, registry: actor.NewRegistry(idleTimeout), capacity: model.FeedCapacity}
}

func (c *FeedCoord) key(userID int64) string { return fmt.Sprintf("%d", userID) }

func encodeEntry(e model.FeedEntry) string {
	return fmt.Sprintf("%d:%d:%d:%s", e.Timestamp.UnixNano(), e.PostID, e.AuthorID, e.Source)
}

func decodeEntry(member string) (model.FeedEntry, bool) {
	parts := strings.SplitN(member, ":", 4)
	if len(parts) != 4 {
		return model.FeedEntry{}, false
	}
	nanos, err1 := strconv.ParseInt(parts[0], 10, 64)
	postID, err2 := strconv.ParseInt(parts[1], 10, 64)
	authorID, err3 := strconv.ParseInt(parts[2], 10, 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return model.FeedEntry{}, false
	}
	return model.FeedEntry{
		PostID:    postID,
		AuthorID:  authorID,
		Timestamp: time.Unix(0, nanos),
		Source:    model.FeedSource(parts[3]),
	}, true
}

// AddEntry inserts entry in descending-timestamp order; a duplicate postId is
// a no-op. Capacity is enforced by evicting the oldest entries on insert.
func (c *FeedCoord) AddEntry(ctx context.Context, userID int64, entry model.FeedEntry) error {
	_, err := c.registry.Do(ctx, c.key(userID), func(ctx context.Context) (interface{}, error) {
		existing, err := c.entriesForPost(ctx, userID, entry.PostID)
		if err != nil {
			return nil, err
		}
		if len(existing) > 0 {
			return nil, nil
		}
		if err := c.store.ZAdd(ctx, feedKey(userID), float64(entry.Timestamp.UnixNano()), encodeEntry(entry)); err != nil {
			return nil, err
		}
		// Evict oldest beyond capacity: rank 0 is the lowest score (oldest).
		return nil, c.store.ZRemRangeByRank(ctx, feedKey(userID), 0, int64(-c.capacity-1))
	})
	return err
}

func (c *FeedCoord) entriesForPost(ctx context.Context, userID, postID int64) ([]string, error) {
	all, err := c.store.ZRevRangeByScore(ctx, feedKey(userID), nil, 0)
	if err != nil {
		return nil, err
	}
	var matches []string
	for _, sm := range all {
		if e, ok := decodeEntry(sm.Member); ok && e.PostID == postID {
			matches = append(matches, sm.Member)
		}
	}
	return matches, nil
}

// RemoveEntry drops every entry matching postId.
func (c *FeedCoord) RemoveEntry(ctx context.Context, userID, postID int64) error {
	_, err := c.registry.Do(ctx, c.key(userID), func(ctx context.Context) (interface{}, error) {
		matches, err := c.entriesForPost(ctx, userID, postID)
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			if err := c.store.ZRem(ctx, feedKey(userID), m); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	return err
}

// Clear wipes the feed.
func (c *FeedCoord) Clear(ctx context.Context, userID int64) error {
	_, err := c.registry.Do(ctx, c.key(userID), func(ctx context.Context) (interface{}, error) {
		return nil, c.store.Delete(ctx, feedKey(userID))
	})
	return err
}

// Cursor is the opaque, timestamp-based pagination token: entry timestamp
// (nanoseconds) plus postId tie-break, so filter churn between pages cannot
// duplicate or skip entries.
type Cursor struct {
	TimestampNanos int64
	PostID         int64
}

// EncodeCursor renders a Cursor as the opaque string handed to clients.
func EncodeCursor(c Cursor) string {
	return fmt.Sprintf("%d_%d", c.TimestampNanos, c.PostID)
}

// DecodeCursor parses a cursor string produced by EncodeCursor.
func DecodeCursor(s string) (Cursor, error) {
	var c Cursor
	if s == "" {
		return c, nil
	}
	parts := strings.SplitN(s, "_", 2)
	if len(parts) != 2 {
		return c, fmt.Errorf("malformed cursor %q", s)
	}
	ts, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return c, fmt.Errorf("malformed cursor timestamp %q", s)
	}
	postID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return c, fmt.Errorf("malformed cursor postId %q", s)
	}
	c.TimestampNanos = ts
	c.PostID = postID
	return c, nil
}

// Feed returns a page of entries: drops entries authored by a blocked user,
// and — once the caller has joined the post snapshot — entries whose content
// contains a muted word (that second filter happens in the timeline service,
// since FeedCoord itself has no post-content access beyond what's passed in).
func (c *FeedCoord) Feed(ctx context.Context, userID int64, limit int, cursor Cursor, blockedIDs map[int64]bool) (model.FeedPage, error) {
	v, err := c.registry.Do(ctx, c.key(userID), func(ctx context.Context) (interface{}, error) {
		var maxScore *float64
		if cursor.TimestampNanos > 0 {
			ms := float64(cursor.TimestampNanos + 1)
			maxScore = &ms
		}
		// Over-fetch to absorb blocked-author filtering without a second round trip.
		raw, err := c.store.ZRevRangeByScore(ctx, feedKey(userID), maxScore, limit*3+10)
		if err != nil {
			return nil, err
		}
		var entries []model.FeedEntry
		for _, sm := range raw {
			e, ok := decodeEntry(sm.Member)
			if !ok {
				continue
			}
			if cursor.TimestampNanos > 0 && e.Timestamp.UnixNano() == cursor.TimestampNanos && e.PostID >= cursor.PostID {
				continue
			}
			if blockedIDs[e.AuthorID] {
				continue
			}
			entries = append(entries, e)
			if len(entries) >= limit {
				break
			}
		}
		hasMore := len(raw) > len(entries)
		page := model.FeedPage{Entries: entries, HasMore: hasMore}
		if hasMore && len(entries) > 0 {
			last := entries[len(entries)-1]
			page.Cursor = EncodeCursor(Cursor{TimestampNanos: last.Timestamp.UnixNano(), PostID: last.PostID})
		}
		return page, nil
	})
	if err != nil {
		return model.FeedPage{}, err
	}
	return v.(model.FeedPage), nil
}
