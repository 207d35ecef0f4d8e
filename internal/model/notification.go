package model

import "time"

// NotificationType enumerates the triggering actions that produce a notification.
type NotificationType string

const (
	NotifyLike   NotificationType = "like"
	NotifyReply  NotificationType = "reply"
	NotifyFollow NotificationType = "follow"
	NotifyMention NotificationType = "mention"
	NotifyRepost NotificationType = "repost"
	NotifyQuote  NotificationType = "quote"
)

const (
	NotificationTTL           = 30 * 24 * time.Hour
	NotificationListCap       = 1000
	NotificationPreviewMaxLen = 100
)

// Notification is a single per-recipient record.
type Notification struct {
	ID             int64            `json:"id"`
	UserID         int64            `json:"userId"`
	Type           NotificationType `json:"type"`
	ActorID        int64            `json:"actorId"`
	ActorSnapshot  UserSummary      `json:"actorSnapshot"`
	PostID         *int64           `json:"postId,omitempty"`
	ContentPreview string           `json:"contentPreview,omitempty"`
	CreatedAt      time.Time        `json:"createdAt"`
	Read           bool             `json:"read"`
}

// AggregatedNotification groups consecutive same-type/same-post notifications
// into a single display row ("alice and 5 others liked your post"). No read
// path builds it: GET /notifications returns the raw per-notification
// records.
type AggregatedNotification struct {
	Type           NotificationType `json:"type"`
	PostID         *int64           `json:"postId,omitempty"`
	ContentPreview string           `json:"contentPreview,omitempty"`
	LeadActor      UserSummary      `json:"leadActor"`
	OtherCount     int              `json:"otherCount"`
	LatestAt       time.Time        `json:"latestAt"`
	Read           bool             `json:"read"`
	Ids            []int64          `json:"-"`
}

// NotificationListResponse is an envelope of aggregated rows plus an unread
// count. GET /notifications does not use it; it returns {notifications} with
// the raw records.
type NotificationListResponse struct {
	Notifications []AggregatedNotification `json:"notifications"`
	UnreadCount   int                       `json:"unreadCount"`
}
