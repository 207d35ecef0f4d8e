package fanout

import (
	"context"
	"testing"
	"time"

	"thewire/internal/coordinator"
	"thewire/internal/kvstore"
	"thewire/internal/model"
	"thewire/internal/queue"
	"thewire/internal/snowflake"
)

func newTestHandler(t *testing.T) (*Handler, *coordinator.UserCoord, *coordinator.PostCoord, *coordinator.FeedCoord) {
	t.Helper()
	h, users, posts, feeds, _ := newTestHandlerWithNotifications(t)
	return h, users, posts, feeds
}

func newTestHandlerWithNotifications(t *testing.T) (*Handler, *coordinator.UserCoord, *coordinator.PostCoord, *coordinator.FeedCoord, *coordinator.NotificationCoord) {
	t.Helper()
	store := kvstore.NewMemoryStore()
	users := coordinator.NewUserCoord(store, 0)
	posts := coordinator.NewPostCoord(store, 0)
	feeds := coordinator.NewFeedCoord(store, 0)
	conns := coordinator.NewConnCoord()
	ids, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("NewNode: %v", err)
	}
	notifications := coordinator.NewNotificationCoord(store, ids, 0)
	t.Cleanup(conns.Stop)
	return NewHandler(store, users, posts, feeds, conns, notifications), users, posts, feeds, notifications
}

func mustInitUser(t *testing.T, users *coordinator.UserCoord, id int64) {
	t.Helper()
	if err := users.Initialize(context.Background(), id, "user", "u@example.com", "h", "s", model.Profile{}, model.Settings{}); err != nil {
		t.Fatalf("Initialize user %d: %v", id, err)
	}
}

func TestHandleNewPostFansOutToFollowers(t *testing.T) {
	h, users, posts, feeds := newTestHandler(t)
	ctx := context.Background()

	mustInitUser(t, users, 1)
	mustInitUser(t, users, 2)
	mustInitUser(t, users, 3)
	if err := users.Follow(ctx, 2, 1); err != nil {
		t.Fatalf("Follow: %v", err)
	}
	if err := users.AddFollower(ctx, 1, 2); err != nil {
		t.Fatalf("AddFollower: %v", err)
	}
	if err := users.Follow(ctx, 3, 1); err != nil {
		t.Fatalf("Follow: %v", err)
	}
	if err := users.AddFollower(ctx, 1, 3); err != nil {
		t.Fatalf("AddFollower: %v", err)
	}

	if err := posts.Initialize(ctx, 100, 1, model.CreatePostRequest{Content: "hello"}, time.Now()); err != nil {
		t.Fatalf("Initialize post: %v", err)
	}

	event := queue.NewPostCreatedEvent(100, 1)
	if err := h.HandleEvent(ctx, event); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	for _, uid := range []int64{1, 2, 3} {
		page, err := feeds.Feed(ctx, uid, 10, coordinator.Cursor{}, nil)
		if err != nil {
			t.Fatalf("Feed(%d): %v", uid, err)
		}
		if len(page.Entries) != 1 || page.Entries[0].PostID != 100 {
			t.Fatalf("user %d feed = %+v, want one entry for post 100", uid, page.Entries)
		}
	}
}

func TestHandleDeletePostRemovesFromAllFeeds(t *testing.T) {
	h, users, posts, feeds := newTestHandler(t)
	ctx := context.Background()

	mustInitUser(t, users, 1)
	mustInitUser(t, users, 2)
	users.Follow(ctx, 2, 1)
	users.AddFollower(ctx, 1, 2)

	if err := posts.Initialize(ctx, 200, 1, model.CreatePostRequest{Content: "bye"}, time.Now()); err != nil {
		t.Fatalf("Initialize post: %v", err)
	}
	if err := h.HandleEvent(ctx, queue.NewPostCreatedEvent(200, 1)); err != nil {
		t.Fatalf("HandleEvent create: %v", err)
	}
	if err := h.HandleEvent(ctx, queue.NewPostDeletedEvent(200, 1)); err != nil {
		t.Fatalf("HandleEvent delete: %v", err)
	}

	for _, uid := range []int64{1, 2} {
		page, err := feeds.Feed(ctx, uid, 10, coordinator.Cursor{}, nil)
		if err != nil {
			t.Fatalf("Feed(%d): %v", uid, err)
		}
		if len(page.Entries) != 0 {
			t.Fatalf("user %d feed = %+v, want empty after delete", uid, page.Entries)
		}
	}
}

func TestHandleNewPostIsIdempotent(t *testing.T) {
	h, users, posts, feeds := newTestHandler(t)
	ctx := context.Background()
	mustInitUser(t, users, 1)

	if err := posts.Initialize(ctx, 300, 1, model.CreatePostRequest{Content: "dup"}, time.Now()); err != nil {
		t.Fatalf("Initialize post: %v", err)
	}
	event := queue.NewPostCreatedEvent(300, 1)
	if err := h.HandleEvent(ctx, event); err != nil {
		t.Fatalf("HandleEvent (first): %v", err)
	}
	if err := h.HandleEvent(ctx, event); err != nil {
		t.Fatalf("HandleEvent (redelivered): %v", err)
	}

	page, err := feeds.Feed(ctx, 1, 10, coordinator.Cursor{}, nil)
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if len(page.Entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1 (deduped across redelivery)", len(page.Entries))
	}
}

func TestHandlePostLikedPersistsNotification(t *testing.T) {
	h, users, posts, _, notifications := newTestHandlerWithNotifications(t)
	ctx := context.Background()
	mustInitUser(t, users, 1)
	mustInitUser(t, users, 2)
	if err := posts.Initialize(ctx, 400, 1, model.CreatePostRequest{Content: "liked post"}, time.Now()); err != nil {
		t.Fatalf("Initialize post: %v", err)
	}

	if err := h.HandleEvent(ctx, queue.NewPostLikedEvent(400, 2, 1)); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	list, err := notifications.List(ctx, 1, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].Type != model.NotifyLike || list[0].ActorID != 2 {
		t.Fatalf("notifications = %+v, want one like notification from actor 2", list)
	}
	unread, err := notifications.UnreadCount(ctx, 1)
	if err != nil {
		t.Fatalf("UnreadCount: %v", err)
	}
	if unread != 1 {
		t.Fatalf("unread = %d, want 1", unread)
	}
}

func TestHandlePostLikedBySelfIsNotNotified(t *testing.T) {
	h, users, posts, _, notifications := newTestHandlerWithNotifications(t)
	ctx := context.Background()
	mustInitUser(t, users, 1)
	if err := posts.Initialize(ctx, 401, 1, model.CreatePostRequest{Content: "own like"}, time.Now()); err != nil {
		t.Fatalf("Initialize post: %v", err)
	}

	if err := h.HandleEvent(ctx, queue.NewPostLikedEvent(401, 1, 1)); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	list, err := notifications.List(ctx, 1, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("notifications = %+v, want none for a self-like", list)
	}
}

func TestHandleNewPostNotifiesMentionedUser(t *testing.T) {
	h, users, posts, _, notifications := newTestHandlerWithNotifications(t)
	ctx := context.Background()
	mustInitUser(t, users, 1)
	if err := users.Initialize(ctx, 2, "bob", "bob@example.com", "h", "s", model.Profile{}, model.Settings{}); err != nil {
		t.Fatalf("Initialize bob: %v", err)
	}
	if _, err := coordinator.ReserveHandle(ctx, h.store, "bob", 2); err != nil {
		t.Fatalf("ReserveHandle: %v", err)
	}

	if err := posts.Initialize(ctx, 500, 1, model.CreatePostRequest{Content: "hey @bob check this out"}, time.Now()); err != nil {
		t.Fatalf("Initialize post: %v", err)
	}
	if err := h.HandleEvent(ctx, queue.NewPostCreatedEvent(500, 1)); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	list, err := notifications.List(ctx, 2, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].Type != model.NotifyMention {
		t.Fatalf("notifications for bob = %+v, want one mention notification", list)
	}
}

func TestHandleUnknownEventTypeErrors(t *testing.T) {
	h, _, _, _ := newTestHandler(t)
	err := h.HandleEvent(context.Background(), queue.FeedEvent{Type: "bogus"})
	if err == nil {
		t.Fatal("expected error for unknown event type")
	}
}
