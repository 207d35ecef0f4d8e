package coordinator

import (
	"context"
	"fmt"

	"thewire/internal/kvstore"
)

// authoredIndexCap and repliesIndexCap bound the secondary listing indices
// below the same way the liked-posts index is bounded: newest first,
// oldest silently dropped past the cap.
const (
	authoredIndexCap = 5000
	repliesIndexCap  = 5000
)

// AddUserPost and Replies below back the user-posts:{userId} and
// replies:{postId} keys from the persisted-key-layout table. They are plain
// KV helpers, not actor operations: each is a single LPush against a list
// only ever appended to by the post-creation path, so there is no
// read-modify-write race to serialize against.

// AddUserPost prepends postID to authorID's authored-posts index.
func AddUserPost(ctx context.Context, store kvstore.Store, authorID, postID int64) error {
	if err := store.LPush(ctx, userPostsKey(authorID), fmt.Sprintf("%d", postID)); err != nil {
		return fmt.Errorf("index authored post: %w", err)
	}
	return store.LTrim(ctx, userPostsKey(authorID), 0, authoredIndexCap-1)
}

// UserPosts returns up to limit post ids authored by authorID, newest first.
func UserPosts(ctx context.Context, store kvstore.Store, authorID int64, limit int) ([]int64, error) {
	return readIDList(ctx, store, userPostsKey(authorID), limit)
}

// AddReply prepends postID to parentID's replies index.
func AddReply(ctx context.Context, store kvstore.Store, parentID, postID int64) error {
	if err := store.LPush(ctx, repliesKey(parentID), fmt.Sprintf("%d", postID)); err != nil {
		return fmt.Errorf("index reply: %w", err)
	}
	return store.LTrim(ctx, repliesKey(parentID), 0, repliesIndexCap-1)
}

// Replies returns up to limit reply post ids for parentID, newest first.
func Replies(ctx context.Context, store kvstore.Store, parentID int64, limit int) ([]int64, error) {
	return readIDList(ctx, store, repliesKey(parentID), limit)
}

func readIDList(ctx context.Context, store kvstore.Store, key string, limit int) ([]int64, error) {
	members, err := store.LRange(ctx, key, 0, int64(limit-1))
	if err != nil {
		return nil, err
	}
	out := make([]int64, 0, len(members))
	for _, m := range members {
		var v int64
		if _, err := fmt.Sscanf(m, "%d", &v); err == nil {
			out = append(out, v)
		}
	}
	return out, nil
}
