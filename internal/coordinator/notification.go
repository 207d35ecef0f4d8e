package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"thewire/internal/actor"
	"thewire/internal/kvstore"
	"thewire/internal/model"
	"thewire/internal/snowflake"
)

// NotificationCoord owns one user's notification list: a capped,
// recency-ordered id list plus one JSON blob per notification. It is the
// persistent counterpart to ConnCoord's best-effort live push — a dropped
// WebSocket frame is never the only record of an event, since fanout always
// writes here first.
type NotificationCoord struct {
	store    kvstore.Store
	registry *actor.Registry
	ids      *snowflake.Node
}

// NewNotificationCoord builds a NotificationCoord backed by store.
func NewNotificationCoord(store kvstore.Store, ids *snowflake.Node, idleTimeout time.Duration) *NotificationCoord {
	return &NotificationCoord{store: store, registry: actor.NewRegistry(idleTimeout), ids: ids}
}

func (c *NotificationCoord) key(userID int64) string { return fmt.Sprintf("%d", userID) }

// Create appends n to userID's notification list, capped at
// model.NotificationListCap, and bumps the unread counter. n.ID and
// n.CreatedAt are assigned here; the caller supplies everything else.
func (c *NotificationCoord) Create(ctx context.Context, userID int64, n model.Notification) (model.Notification, error) {
	n.UserID = userID
	n.ID = c.ids.NextID()
	n.CreatedAt = time.Now()
	n.Read = false

	v, err := c.registry.Do(ctx, c.key(userID), func(ctx context.Context) (interface{}, error) {
		raw, err := json.Marshal(n)
		if err != nil {
			return nil, fmt.Errorf("marshal notification: %w", err)
		}
		if err := c.store.SetTTL(ctx, notificationKey(userID, n.ID), string(raw), model.NotificationTTL); err != nil {
			return nil, fmt.Errorf("store notification: %w", err)
		}
		if err := c.store.LPush(ctx, notificationListKey(userID), strconv.FormatInt(n.ID, 10)); err != nil {
			return nil, fmt.Errorf("push notification id: %w", err)
		}
		if err := c.store.LTrim(ctx, notificationListKey(userID), 0, model.NotificationListCap-1); err != nil {
			return nil, fmt.Errorf("trim notification list: %w", err)
		}
		if _, err := c.store.Incr(ctx, notificationUnreadKey(userID), 1); err != nil {
			return nil, fmt.Errorf("bump unread count: %w", err)
		}
		return n, nil
	})
	if err != nil {
		return model.Notification{}, err
	}
	return v.(model.Notification), nil
}

// List returns the limit most recent notifications, newest first. A
// notification id present in the list but whose blob has since expired
// (past NotificationTTL) is silently skipped rather than surfaced as an
// error, since TTL eviction is expected steady-state behavior.
func (c *NotificationCoord) List(ctx context.Context, userID int64, limit int) ([]model.Notification, error) {
	v, err := c.registry.Do(ctx, c.key(userID), func(ctx context.Context) (interface{}, error) {
		ids, err := c.store.LRange(ctx, notificationListKey(userID), 0, int64(limit-1))
		if err != nil {
			return nil, err
		}
		out := make([]model.Notification, 0, len(ids))
		for _, idStr := range ids {
			id, err := strconv.ParseInt(idStr, 10, 64)
			if err != nil {
				continue
			}
			raw, err := c.store.Get(ctx, notificationKey(userID, id))
			if err != nil {
				continue
			}
			var n model.Notification
			if err := json.Unmarshal([]byte(raw), &n); err != nil {
				continue
			}
			out = append(out, n)
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]model.Notification), nil
}

// UnreadCount returns the current unread counter, 0 if never set.
func (c *NotificationCoord) UnreadCount(ctx context.Context, userID int64) (int, error) {
	raw, err := c.store.Get(ctx, notificationUnreadKey(userID))
	if err != nil {
		if err == kvstore.ErrNotFound {
			return 0, nil
		}
		return 0, err
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, nil
	}
	if n < 0 {
		return 0, nil
	}
	return n, nil
}

// MarkRead flips a single notification to read and decrements the unread
// counter, once, the first time it transitions. Marking an already-read or
// absent notification is a no-op success.
func (c *NotificationCoord) MarkRead(ctx context.Context, userID, id int64) error {
	_, err := c.registry.Do(ctx, c.key(userID), func(ctx context.Context) (interface{}, error) {
		raw, err := c.store.Get(ctx, notificationKey(userID, id))
		if err != nil {
			if err == kvstore.ErrNotFound {
				return nil, nil
			}
			return nil, err
		}
		var n model.Notification
		if err := json.Unmarshal([]byte(raw), &n); err != nil {
			return nil, fmt.Errorf("corrupt notification %d: %w", id, err)
		}
		if n.Read {
			return nil, nil
		}
		n.Read = true
		encoded, err := json.Marshal(n)
		if err != nil {
			return nil, fmt.Errorf("marshal notification: %w", err)
		}
		if err := c.store.SetTTL(ctx, notificationKey(userID, id), string(encoded), model.NotificationTTL); err != nil {
			return nil, err
		}
		if _, err := c.store.Incr(ctx, notificationUnreadKey(userID), -1); err != nil {
			return nil, err
		}
		return nil, nil
	})
	return err
}

// MarkAllRead marks every notification in the capped list read and zeroes
// the unread counter.
func (c *NotificationCoord) MarkAllRead(ctx context.Context, userID int64) error {
	_, err := c.registry.Do(ctx, c.key(userID), func(ctx context.Context) (interface{}, error) {
		ids, err := c.store.LRange(ctx, notificationListKey(userID), 0, model.NotificationListCap-1)
		if err != nil {
			return nil, err
		}
		for _, idStr := range ids {
			id, err := strconv.ParseInt(idStr, 10, 64)
			if err != nil {
				continue
			}
			raw, err := c.store.Get(ctx, notificationKey(userID, id))
			if err != nil {
				continue
			}
			var n model.Notification
			if err := json.Unmarshal([]byte(raw), &n); err != nil {
				continue
			}
			if n.Read {
				continue
			}
			n.Read = true
			encoded, err := json.Marshal(n)
			if err != nil {
				continue
			}
			_ = c.store.SetTTL(ctx, notificationKey(userID, id), string(encoded), model.NotificationTTL)
		}
		return nil, c.store.Set(ctx, notificationUnreadKey(userID), "0")
	})
	return err
}
