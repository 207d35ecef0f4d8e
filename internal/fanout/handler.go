// Package fanout is the fan-out worker (C10): it consumes post-lifecycle
// messages from the durable queue and propagates them into each follower's
// FeedCoord and ConnCoord, per spec section 4.7.
package fanout

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"thewire/internal/coordinator"
	"thewire/internal/kvstore"
	"thewire/internal/model"
	"thewire/internal/queue"
	"thewire/internal/search"
)

// Handler processes feed events dequeued from the durable queue.
type Handler struct {
	store         kvstore.Store
	users         *coordinator.UserCoord
	posts         *coordinator.PostCoord
	feeds         *coordinator.FeedCoord
	conns         *coordinator.ConnCoord
	notifications *coordinator.NotificationCoord
}

// NewHandler builds a Handler wired to the coordinators it fans out into.
func NewHandler(store kvstore.Store, users *coordinator.UserCoord, posts *coordinator.PostCoord, feeds *coordinator.FeedCoord, conns *coordinator.ConnCoord, notifications *coordinator.NotificationCoord) *Handler {
	return &Handler{store: store, users: users, posts: posts, feeds: feeds, conns: conns, notifications: notifications}
}

// notify persists a notification for recipientID (unless it is the actor
// notifying itself) and pushes it over any live connection. Failures are
// logged and swallowed: losing a notification never fails the event that
// triggered it.
func (h *Handler) notify(ctx context.Context, recipientID, actorID int64, kind model.NotificationType, postID *int64, preview string) {
	if recipientID == actorID {
		return
	}
	snapshot, err := h.users.ToUserSummary(ctx, actorID)
	if err != nil {
		log.Printf("[Fanout] notify: load actor snapshot failed actor=%d: %v", actorID, err)
		return
	}
	n := model.Notification{
		Type:           kind,
		ActorID:        actorID,
		ActorSnapshot:  snapshot,
		PostID:         postID,
		ContentPreview: truncatePreview(preview),
	}
	stored, err := h.notifications.Create(ctx, recipientID, n)
	if err != nil {
		log.Printf("[Fanout] notify: persist failed recipient=%d kind=%s: %v", recipientID, kind, err)
		return
	}
	h.conns.BroadcastNotification(ctx, recipientID, &stored)
}

func truncatePreview(s string) string {
	if len(s) <= model.NotificationPreviewMaxLen {
		return s
	}
	return s[:model.NotificationPreviewMaxLen]
}

// mentionedHandles extracts the distinct "@handle" tokens from content using
// the same tokenizer the search index builds postings from, so a mention
// notification fires exactly for the handles that are also searchable.
func mentionedHandles(content string) []string {
	var handles []string
	for _, tok := range search.Tokenize(content) {
		if strings.HasPrefix(tok, "@") && len(tok) > 1 {
			handles = append(handles, tok[1:])
		}
	}
	return handles
}

// HandleEvent routes event to the handler for its type.
func (h *Handler) HandleEvent(ctx context.Context, event queue.FeedEvent) error {
	start := time.Now()
	var err error
	switch event.Type {
	case queue.EventNewPost:
		err = h.handleNewPost(ctx, event)
	case queue.EventDeletePost:
		err = h.handleDeletePost(ctx, event)
	case queue.EventPostLiked:
		err = h.handlePostLiked(ctx, event)
	default:
		log.Printf("[Fanout] unknown event type: %s", event.Type)
		return fmt.Errorf("unknown event type: %s", event.Type)
	}
	if err != nil {
		log.Printf("[Fanout] HandleEvent FAILED type=%s duration=%v err=%v", event.Type, time.Since(start), err)
		return err
	}
	log.Printf("[Fanout] HandleEvent OK type=%s duration=%v", event.Type, time.Since(start))
	return nil
}

// handleNewPost: (a) add to author's own feed with source=own, (b) read
// author's follower list, (c) add entry with source=follow to each
// follower's feed, (d) push the post snapshot to each follower's live
// connections. Per-follower operations are idempotent: addEntry dedupes by
// postId.
func (h *Handler) handleNewPost(ctx context.Context, event queue.FeedEvent) error {
	entry := model.FeedEntry{
		PostID:    event.PostID,
		AuthorID:  event.AuthorID,
		Timestamp: time.Unix(event.Timestamp, 0),
		Source:    model.SourceOwn,
	}
	if err := h.feeds.AddEntry(ctx, event.AuthorID, entry); err != nil {
		return fmt.Errorf("add own feed entry: %w", err)
	}

	followers, err := h.users.FollowerIDs(ctx, event.AuthorID)
	if err != nil {
		return fmt.Errorf("get followers: %w", err)
	}

	post, err := h.posts.ToPost(ctx, event.PostID)
	if err != nil {
		return fmt.Errorf("load post snapshot: %w", err)
	}

	h.notifyPostTargets(ctx, post)

	var failCount int
	for _, followerID := range followers {
		if followerID == event.AuthorID {
			continue // self-follow already handled above as source=own
		}
		followEntry := entry
		followEntry.Source = model.SourceFollow
		if err := h.feeds.AddEntry(ctx, followerID, followEntry); err != nil {
			log.Printf("[Fanout] add feed entry failed follower=%d post=%d: %v", followerID, event.PostID, err)
			failCount++
			continue
		}
		h.conns.BroadcastPost(ctx, followerID, post)
	}

	log.Printf("[Fanout] NewPost post=%d author=%d fanout=%d failed=%d", event.PostID, event.AuthorID, len(followers), failCount)
	return nil
}

// notifyPostTargets raises a reply/quote/repost notification for the
// original post's author (when post is one of those) and a mention
// notification for every @handle in post's content. The post's own author
// is never notified, since notify skips self-notifications.
func (h *Handler) notifyPostTargets(ctx context.Context, post *model.Post) {
	postID := post.ID
	switch {
	case post.ReplyToID != nil:
		if parent, err := h.posts.ToPost(ctx, *post.ReplyToID); err == nil {
			h.notify(ctx, parent.AuthorID, post.AuthorID, model.NotifyReply, &postID, post.Content)
		}
	case post.QuoteOfID != nil:
		if parent, err := h.posts.ToPost(ctx, *post.QuoteOfID); err == nil {
			h.notify(ctx, parent.AuthorID, post.AuthorID, model.NotifyQuote, &postID, post.Content)
		}
	case post.RepostOfID != nil:
		if parent, err := h.posts.ToPost(ctx, *post.RepostOfID); err == nil {
			h.notify(ctx, parent.AuthorID, post.AuthorID, model.NotifyRepost, &postID, "")
		}
	}

	for _, handle := range mentionedHandles(post.Content) {
		recipientID, err := coordinator.LookupHandle(ctx, h.store, handle)
		if err != nil {
			continue // unknown handle: not a real mention
		}
		h.notify(ctx, recipientID, post.AuthorID, model.NotifyMention, &postID, post.Content)
	}
}

// handleDeletePost removes the post from the author's feed and every
// follower's feed. removeEntry removes all matches, so repeated delivery is
// harmless.
func (h *Handler) handleDeletePost(ctx context.Context, event queue.FeedEvent) error {
	if err := h.feeds.RemoveEntry(ctx, event.AuthorID, event.PostID); err != nil {
		return fmt.Errorf("remove own feed entry: %w", err)
	}

	followers, err := h.users.FollowerIDs(ctx, event.AuthorID)
	if err != nil {
		return fmt.Errorf("get followers: %w", err)
	}

	var failCount int
	for _, followerID := range followers {
		if err := h.feeds.RemoveEntry(ctx, followerID, event.PostID); err != nil {
			log.Printf("[Fanout] remove feed entry failed follower=%d post=%d: %v", followerID, event.PostID, err)
			failCount++
		}
	}

	log.Printf("[Fanout] DeletePost post=%d author=%d fanout=%d failed=%d", event.PostID, event.AuthorID, len(followers), failCount)
	return nil
}

// handlePostLiked persists a like notification for the post author and
// pushes it live; it never fails the message, since a dropped like
// notification must not hold up queue processing.
func (h *Handler) handlePostLiked(ctx context.Context, event queue.FeedEvent) error {
	postID := event.PostID
	h.notify(ctx, event.AuthorID, event.ActorID, model.NotifyLike, &postID, "")
	return nil
}
