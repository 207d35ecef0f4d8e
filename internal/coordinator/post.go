package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"thewire/internal/actor"
	"thewire/internal/kvstore"
	"thewire/internal/model"
)

// PostCoord is the single-writer owner of every post's authoritative state.
type PostCoord struct {
	store    kvstore.Store
	registry *actor.Registry
}

// NewPostCoord builds a PostCoord backed by store.
func NewPostCoord(store kvstore.Store, idleTimeout time.Duration) *PostCoord {
	return &PostCoord{store: store, registry: actor.NewRegistry(idleTimeout)}
}

type persistedPost struct {
	ID         int64     `json:"id"`
	AuthorID   int64     `json:"authorId"`
	Content    string    `json:"content"`
	MediaURLs  []string  `json:"mediaUrls,omitempty"`
	ReplyToID  *int64    `json:"replyToId,omitempty"`
	QuoteOfID  *int64    `json:"quoteOfId,omitempty"`
	RepostOfID *int64    `json:"repostOfId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`

	Counters model.PostCounters `json:"counters"`

	IsDeleted bool      `json:"isDeleted"`
	DeletedAt time.Time `json:"deletedAt,omitzero"`

	IsTakenDown     bool      `json:"isTakenDown"`
	TakenDownAt     time.Time `json:"takenDownAt,omitzero"`
	TakenDownReason string    `json:"takenDownReason,omitempty"`
	TakenDownBy     int64     `json:"takenDownBy,omitempty"`
}

func (c *PostCoord) key(id int64) string { return fmt.Sprintf("%d", id) }

func (c *PostCoord) load(ctx context.Context, id int64) (*persistedPost, error) {
	raw, err := c.store.Get(ctx, postKey(id))
	if err != nil {
		if err == kvstore.ErrNotFound {
			return nil, model.ErrPostNotFound
		}
		return nil, fmt.Errorf("load post %d: %w", id, err)
	}
	var p persistedPost
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("corrupt post %d state: %w", id, err)
	}
	return &p, nil
}

func (c *PostCoord) save(ctx context.Context, p *persistedPost) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal post %d: %w", p.ID, err)
	}
	return c.store.Set(ctx, postKey(p.ID), string(raw))
}

// Initialize creates a post's state once. It does no repost validation: the
// caller (the HTTP repost handler) rejects self-repost, builds reposts
// without content, and rewrites a repost-of-repost to point at the leaf
// original before calling it. PostCoord persists whatever RepostOfID it is
// given.
func (c *PostCoord) Initialize(ctx context.Context, id, authorID int64, req model.CreatePostRequest, createdAt time.Time) error {
	_, err := c.registry.Do(ctx, c.key(id), func(ctx context.Context) (interface{}, error) {
		if _, err := c.store.Get(ctx, postKey(id)); err == nil {
			return nil, model.ErrPostAlreadyInitialized
		}
		p := &persistedPost{
			ID:         id,
			AuthorID:   authorID,
			Content:    req.Content,
			MediaURLs:  req.MediaURLs,
			ReplyToID:  req.ReplyToID,
			QuoteOfID:  req.QuoteOfID,
			RepostOfID: req.RepostOfID,
			CreatedAt:  createdAt,
		}
		if err := c.save(ctx, p); err != nil {
			return nil, err
		}
		return nil, c.store.ZAdd(ctx, recentPostsKey(), float64(createdAt.UnixNano()), fmt.Sprintf("%d:%d", id, authorID))
	})
	return err
}

// RecentPosts returns up to limit (postID, authorID) pairs created at or
// after since, newest first, for the ranking service's scan step.
func (c *PostCoord) RecentPosts(ctx context.Context, since time.Time, limit int) ([]RecentPost, error) {
	raw, err := c.store.ZRevRangeByScore(ctx, recentPostsKey(), nil, limit)
	if err != nil {
		return nil, fmt.Errorf("scan recent posts: %w", err)
	}
	out := make([]RecentPost, 0, len(raw))
	for _, sm := range raw {
		if sm.Score < float64(since.UnixNano()) {
			continue
		}
		var postID, authorID int64
		if _, err := fmt.Sscanf(sm.Member, "%d:%d", &postID, &authorID); err != nil {
			continue
		}
		out = append(out, RecentPost{PostID: postID, AuthorID: authorID, CreatedAt: time.Unix(0, int64(sm.Score))})
	}
	return out, nil
}

// RecentPost is one row of the global recency index used for ranking.
type RecentPost struct {
	PostID    int64
	AuthorID  int64
	CreatedAt time.Time
}

// Like adds userID to the like set and returns the new like count. Liking
// twice is a no-op success returning the existing count.
func (c *PostCoord) Like(ctx context.Context, id, userID int64) (int, error) {
	v, err := c.registry.Do(ctx, c.key(id), func(ctx context.Context) (interface{}, error) {
		member := fmt.Sprintf("%d", userID)
		already, err := c.store.SIsMember(ctx, postLikesKey(id), member)
		if err != nil {
			return nil, err
		}
		p, err := c.load(ctx, id)
		if err != nil {
			return nil, err
		}
		if already {
			return p.Counters.LikeCount, nil
		}
		if err := c.store.SAdd(ctx, postLikesKey(id), member); err != nil {
			return nil, err
		}
		p.Counters.LikeCount++
		if err := c.save(ctx, p); err != nil {
			return nil, err
		}
		return p.Counters.LikeCount, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

// Unlike removes userID from the like set, flooring likeCount at 0.
func (c *PostCoord) Unlike(ctx context.Context, id, userID int64) (int, error) {
	v, err := c.registry.Do(ctx, c.key(id), func(ctx context.Context) (interface{}, error) {
		member := fmt.Sprintf("%d", userID)
		present, err := c.store.SIsMember(ctx, postLikesKey(id), member)
		if err != nil {
			return nil, err
		}
		p, err := c.load(ctx, id)
		if err != nil {
			return nil, err
		}
		if !present {
			return p.Counters.LikeCount, nil
		}
		if err := c.store.SRem(ctx, postLikesKey(id), member); err != nil {
			return nil, err
		}
		if p.Counters.LikeCount > 0 {
			p.Counters.LikeCount--
		}
		if err := c.save(ctx, p); err != nil {
			return nil, err
		}
		return p.Counters.LikeCount, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

// AddRepost adds userID to the repost set and bumps repostCount. This is the
// canonical repost-counting entry point (spec Open Question resolution);
// IncrementRepostCount below is kept only as the deprecated internal path.
func (c *PostCoord) AddRepost(ctx context.Context, id, userID int64) error {
	_, err := c.registry.Do(ctx, c.key(id), func(ctx context.Context) (interface{}, error) {
		member := fmt.Sprintf("%d", userID)
		already, err := c.store.SIsMember(ctx, postRepostsKey(id), member)
		if err != nil {
			return nil, err
		}
		if already {
			return nil, nil
		}
		p, err := c.load(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := c.store.SAdd(ctx, postRepostsKey(id), member); err != nil {
			return nil, err
		}
		p.Counters.RepostCount++
		return nil, c.save(ctx, p)
	})
	return err
}

// RemoveRepost removes userID from the repost set, flooring repostCount at 0.
func (c *PostCoord) RemoveRepost(ctx context.Context, id, userID int64) error {
	_, err := c.registry.Do(ctx, c.key(id), func(ctx context.Context) (interface{}, error) {
		member := fmt.Sprintf("%d", userID)
		present, err := c.store.SIsMember(ctx, postRepostsKey(id), member)
		if err != nil {
			return nil, err
		}
		if !present {
			return nil, nil
		}
		p, err := c.load(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := c.store.SRem(ctx, postRepostsKey(id), member); err != nil {
			return nil, err
		}
		if p.Counters.RepostCount > 0 {
			p.Counters.RepostCount--
		}
		return nil, c.save(ctx, p)
	})
	return err
}

// IncrementReplyCount bumps replyCount by one, called when a reply post is created.
func (c *PostCoord) IncrementReplyCount(ctx context.Context, id int64) error {
	_, err := c.registry.Do(ctx, c.key(id), func(ctx context.Context) (interface{}, error) {
		p, err := c.load(ctx, id)
		if err != nil {
			return nil, err
		}
		p.Counters.ReplyCount++
		return nil, c.save(ctx, p)
	})
	return err
}

// IncrementQuoteCount bumps quoteCount by one, called when a quote post is created.
func (c *PostCoord) IncrementQuoteCount(ctx context.Context, id int64) error {
	_, err := c.registry.Do(ctx, c.key(id), func(ctx context.Context) (interface{}, error) {
		p, err := c.load(ctx, id)
		if err != nil {
			return nil, err
		}
		p.Counters.QuoteCount++
		return nil, c.save(ctx, p)
	})
	return err
}

// IncrementRepostCount is deprecated: canonical repost counting goes through
// AddRepost. Kept only so the old call shape is documented as dead, per the
// spec's Open Question resolution; nothing in this codebase calls it.
func (c *PostCoord) IncrementRepostCount(ctx context.Context, id int64) error {
	_, err := c.registry.Do(ctx, c.key(id), func(ctx context.Context) (interface{}, error) {
		p, err := c.load(ctx, id)
		if err != nil {
			return nil, err
		}
		p.Counters.RepostCount++
		return nil, c.save(ctx, p)
	})
	return err
}

// HasLiked reports whether userID has liked post id.
func (c *PostCoord) HasLiked(ctx context.Context, id, userID int64) (bool, error) {
	return c.store.SIsMember(ctx, postLikesKey(id), fmt.Sprintf("%d", userID))
}

// HasReposted reports whether userID has reposted post id.
func (c *PostCoord) HasReposted(ctx context.Context, id, userID int64) (bool, error) {
	return c.store.SIsMember(ctx, postRepostsKey(id), fmt.Sprintf("%d", userID))
}

// Delete marks id as a soft-delete tombstone. Content is kept for audit but
// ToPost zeroes counters in the projected snapshot, and readers treat
// isDeleted as gone from post and feed reads.
func (c *PostCoord) Delete(ctx context.Context, id int64) error {
	_, err := c.registry.Do(ctx, c.key(id), func(ctx context.Context) (interface{}, error) {
		p, err := c.load(ctx, id)
		if err != nil {
			return nil, err
		}
		p.IsDeleted = true
		p.DeletedAt = time.Now()
		return nil, c.save(ctx, p)
	})
	return err
}

// Takedown marks id as admin-moderated, independent of soft-delete. Per the
// spec's Open Question resolution, takedown does not touch postCount —
// soft-delete does (the caller is responsible for calling
// UserCoord.DecrementPostCount on delete, not on takedown).
func (c *PostCoord) Takedown(ctx context.Context, id, adminID int64, reason string) error {
	_, err := c.registry.Do(ctx, c.key(id), func(ctx context.Context) (interface{}, error) {
		p, err := c.load(ctx, id)
		if err != nil {
			return nil, err
		}
		p.IsTakenDown = true
		p.TakenDownAt = time.Now()
		p.TakenDownReason = reason
		p.TakenDownBy = adminID
		return nil, c.save(ctx, p)
	})
	return err
}

// ToPost projects a persistedPost into the public model.Post shape.
func (c *PostCoord) ToPost(ctx context.Context, id int64) (*model.Post, error) {
	v, err := c.registry.Do(ctx, c.key(id), func(ctx context.Context) (interface{}, error) {
		p, err := c.load(ctx, id)
		if err != nil {
			return nil, err
		}
		counters := p.Counters
		if p.IsDeleted {
			// Spec §4.3: a deleted post's counters are zeroed for the KV
			// snapshot readers consult; the underlying like/repost sets
			// are left intact for audit.
			counters = model.PostCounters{}
		}
		return &model.Post{
			ID:              p.ID,
			AuthorID:        p.AuthorID,
			Content:         p.Content,
			MediaURLs:       p.MediaURLs,
			ReplyToID:       p.ReplyToID,
			QuoteOfID:       p.QuoteOfID,
			RepostOfID:      p.RepostOfID,
			CreatedAt:       p.CreatedAt,
			Counters:        counters,
			IsDeleted:       p.IsDeleted,
			DeletedAt:       p.DeletedAt,
			IsTakenDown:     p.IsTakenDown,
			TakenDownAt:     p.TakenDownAt,
			TakenDownReason: p.TakenDownReason,
			TakenDownBy:     p.TakenDownBy,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.Post), nil
}
