// Package coordinator implements the per-entity single-writer actors (C5–C8):
// UserCoord, PostCoord, FeedCoord, and ConnCoord. Each owns its entity's
// authoritative state exclusively; every other component only ever reads a
// denormalized KV snapshot and must route mutations through here.
package coordinator

import (
	"fmt"
	"time"
)

func userKey(id int64) string        { return fmt.Sprintf("user:%d", id) }
func handleKey(handle string) string { return fmt.Sprintf("handle:%s", handle) }
func emailKey(email string) string   { return fmt.Sprintf("email:%s", email) }
func profileKey(handle string) string { return fmt.Sprintf("profile:%s", handle) }

func followingSetKey(id int64) string { return fmt.Sprintf("following:%d", id) }
func followersSetKey(id int64) string { return fmt.Sprintf("followers:%d", id) }
func blockedSetKey(id int64) string   { return fmt.Sprintf("blocked:%d", id) }
func likedListKey(id int64) string    { return fmt.Sprintf("liked:%d", id) }

func postKey(id int64) string       { return fmt.Sprintf("post:%d", id) }
func postLikesKey(id int64) string  { return fmt.Sprintf("post-likes:%d", id) }
func postRepostsKey(id int64) string { return fmt.Sprintf("post-reposts:%d", id) }
func userPostsKey(authorID int64) string { return fmt.Sprintf("user-posts:%d", authorID) }
func repliesKey(postID int64) string { return fmt.Sprintf("replies:%d", postID) }

func feedKey(userID int64) string { return fmt.Sprintf("feed:%d", userID) }

func exploreRankedKey() string { return "explore:ranked" }

// recentPostsKey names the global timestamp-sorted set of post ids the
// ranking service (C12) scans to build its explore cache. PostCoord.Initialize
// is the only writer.
func recentPostsKey() string { return "posts:recent" }

func banStatusKey(userID int64) string { return fmt.Sprintf("ban-status:%d", userID) }
func resetTokenKey(userID int64) string { return fmt.Sprintf("reset:%d", userID) }
func rateLimitKey(bucket, key string) string { return fmt.Sprintf("rl:%s:%s", bucket, key) }

func notificationKey(userID, id int64) string { return fmt.Sprintf("notifications:%d:%d", userID, id) }
func notificationListKey(userID int64) string { return fmt.Sprintf("notification_list:%d", userID) }
func notificationUnreadKey(userID int64) string { return fmt.Sprintf("notification-unread:%d", userID) }

const (
	ProfileCacheTTLHours = 1
	BanCacheTTLSeconds   = 60
	ResetTokenTTLMinutes = 15
)

// BanCacheTTL is the 60s TTL for the ban-status cache the auth trust
// boundary (C13) reads on every protected request.
const BanCacheTTL = BanCacheTTLSeconds * time.Second

// ResetTokenTTL is the 15-minute TTL for a password-reset token.
const ResetTokenTTL = ResetTokenTTLMinutes * time.Minute

// ProfileCacheTTL is the 1-hour TTL for the profile KV snapshot.
const ProfileCacheTTL = ProfileCacheTTLHours * time.Hour

// BanStatusKey, ResetTokenKey, RateLimitKey, ProfileKey, and
// NotificationListKey are the exported forms of this file's key builders,
// for packages outside coordinator (auth, httpapi) that need to read or
// write the same KV namespace without duplicating key syntax.
func BanStatusKey(userID int64) string        { return banStatusKey(userID) }
func ResetTokenKey(userID int64) string       { return resetTokenKey(userID) }
func RateLimitKey(bucket, key string) string  { return rateLimitKey(bucket, key) }
func ProfileKey(handle string) string         { return profileKey(handle) }
func NotificationListKey(userID int64) string { return notificationListKey(userID) }
