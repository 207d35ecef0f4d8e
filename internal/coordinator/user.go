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

const likedPostsCap = 1000

// UserCoord is the single-writer owner of every user's authoritative state.
// One logical actor exists per user id, created on demand and serialized by
// the underlying actor.Registry.
type UserCoord struct {
	store    kvstore.Store
	registry *actor.Registry
}

// NewUserCoord builds a UserCoord backed by store. idleTimeout of 0 keeps
// every per-user actor alive for the process lifetime.
func NewUserCoord(store kvstore.Store, idleTimeout time.Duration) *UserCoord {
	return &UserCoord{store: store, registry: actor.NewRegistry(idleTimeout)}
}

type persistedUser struct {
	ID           int64          `json:"id"`
	Handle       string         `json:"handle"`
	Email        string         `json:"email"`
	PasswordHash string         `json:"passwordHash"`
	PasswordSalt string         `json:"passwordSalt"`
	CreatedAt    time.Time      `json:"createdAt"`
	LastLogin    time.Time      `json:"lastLogin"`
	Profile      model.Profile  `json:"profile"`
	Counters     model.Counters `json:"counters"`
	Settings     model.Settings `json:"settings"`
}

func (c *UserCoord) load(ctx context.Context, id int64) (*persistedUser, error) {
	raw, err := c.store.Get(ctx, userKey(id))
	if err != nil {
		if err == kvstore.ErrNotFound {
			return nil, model.ErrUserNotFound
		}
		return nil, fmt.Errorf("load user %d: %w", id, err)
	}
	var u persistedUser
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return nil, fmt.Errorf("corrupt user %d state: %w", id, err)
	}
	return &u, nil
}

func (c *UserCoord) save(ctx context.Context, u *persistedUser) error {
	raw, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("marshal user %d: %w", u.ID, err)
	}
	if err := c.store.Set(ctx, userKey(u.ID), string(raw)); err != nil {
		return fmt.Errorf("save user %d: %w", u.ID, err)
	}
	return nil
}

func (c *UserCoord) invalidateProfile(ctx context.Context, handle string) {
	_ = c.store.Delete(ctx, profileKey(handle))
}

func (c *UserCoord) key(id int64) string { return fmt.Sprintf("%d", id) }

// Initialize creates a user's state, idempotent-fails if already initialized.
// It also performs the initial self-follow invariant (every user follows
// itself) as part of the same actor operation.
func (c *UserCoord) Initialize(ctx context.Context, id int64, handle, email, passwordHash, passwordSalt string, profile model.Profile, settings model.Settings) error {
	_, err := c.registry.Do(ctx, c.key(id), func(ctx context.Context) (interface{}, error) {
		if _, err := c.store.Get(ctx, userKey(id)); err == nil {
			return nil, model.ErrAlreadyInitialized
		}
		now := time.Now()
		profile.JoinedAt = now
		u := &persistedUser{
			ID:           id,
			Handle:       handle,
			Email:        email,
			PasswordHash: passwordHash,
			PasswordSalt: passwordSalt,
			CreatedAt:    now,
			Profile:      profile,
			Settings:     settings,
		}
		if err := c.save(ctx, u); err != nil {
			return nil, err
		}
		// Self-follow invariant: every user follows itself.
		idStr := fmt.Sprintf("%d", id)
		if err := c.store.SAdd(ctx, followingSetKey(id), idStr); err != nil {
			return nil, err
		}
		if err := c.store.SAdd(ctx, followersSetKey(id), idStr); err != nil {
			return nil, err
		}
		u.Counters.FollowingCount = 1
		u.Counters.FollowerCount = 1
		return nil, c.save(ctx, u)
	})
	return err
}

// GetProfile returns the current profile snapshot.
func (c *UserCoord) GetProfile(ctx context.Context, id int64) (model.Profile, error) {
	v, err := c.registry.Do(ctx, c.key(id), func(ctx context.Context) (interface{}, error) {
		u, err := c.load(ctx, id)
		if err != nil {
			return nil, err
		}
		return u.Profile, nil
	})
	if err != nil {
		return model.Profile{}, err
	}
	return v.(model.Profile), nil
}

// UpdateProfile applies patch's whitelisted fields. Immutable fields (id,
// handle, joinedAt, counts, isVerified) are never touched here.
func (c *UserCoord) UpdateProfile(ctx context.Context, id int64, patch model.ProfilePatch) (model.Profile, error) {
	v, err := c.registry.Do(ctx, c.key(id), func(ctx context.Context) (interface{}, error) {
		u, err := c.load(ctx, id)
		if err != nil {
			return nil, err
		}
		if patch.DisplayName != nil {
			if len(*patch.DisplayName) > model.DisplayNameMaxLen {
				return nil, model.ErrDisplayNameTooLong
			}
			u.Profile.DisplayName = *patch.DisplayName
		}
		if patch.Bio != nil {
			if len(*patch.Bio) > model.BioMaxLen {
				return nil, model.ErrBioTooLong
			}
			u.Profile.Bio = *patch.Bio
		}
		if patch.Location != nil {
			u.Profile.Location = *patch.Location
		}
		if patch.Website != nil {
			u.Profile.Website = *patch.Website
		}
		if patch.AvatarURL != nil {
			u.Profile.AvatarURL = *patch.AvatarURL
		}
		if patch.BannerURL != nil {
			u.Profile.BannerURL = *patch.BannerURL
		}
		if err := c.save(ctx, u); err != nil {
			return nil, err
		}
		c.invalidateProfile(ctx, u.Handle)
		return u.Profile, nil
	})
	if err != nil {
		return model.Profile{}, err
	}
	return v.(model.Profile), nil
}

// GetSettings returns the user's current settings.
func (c *UserCoord) GetSettings(ctx context.Context, id int64) (model.Settings, error) {
	v, err := c.registry.Do(ctx, c.key(id), func(ctx context.Context) (interface{}, error) {
		u, err := c.load(ctx, id)
		if err != nil {
			return nil, err
		}
		return u.Settings, nil
	})
	if err != nil {
		return model.Settings{}, err
	}
	return v.(model.Settings), nil
}

// UpdateSettings applies patch's whitelisted fields.
func (c *UserCoord) UpdateSettings(ctx context.Context, id int64, patch model.SettingsPatch) (model.Settings, error) {
	v, err := c.registry.Do(ctx, c.key(id), func(ctx context.Context) (interface{}, error) {
		u, err := c.load(ctx, id)
		if err != nil {
			return nil, err
		}
		if patch.EmailNotifications != nil {
			u.Settings.EmailNotifications = *patch.EmailNotifications
		}
		if patch.PrivateAccount != nil {
			u.Settings.PrivateAccount = *patch.PrivateAccount
		}
		if patch.MutedWords != nil {
			u.Settings.MutedWords = patch.MutedWords
		}
		if err := c.save(ctx, u); err != nil {
			return nil, err
		}
		return u.Settings, nil
	})
	if err != nil {
		return model.Settings{}, err
	}
	return v.(model.Settings), nil
}

// Follow adds targetID to id's following set and bumps followingCount.
// Following an already-followed id is a no-op success. Self-follow is only
// ever performed by Initialize; calling Follow with id==targetID afterwards
// is a harmless no-op since the edge already exists.
func (c *UserCoord) Follow(ctx context.Context, id, targetID int64) error {
	_, err := c.registry.Do(ctx, c.key(id), func(ctx context.Context) (interface{}, error) {
		member := fmt.Sprintf("%d", targetID)
		already, err := c.store.SIsMember(ctx, followingSetKey(id), member)
		if err != nil {
			return nil, err
		}
		if already {
			return nil, nil
		}
		u, err := c.load(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := c.store.SAdd(ctx, followingSetKey(id), member); err != nil {
			return nil, err
		}
		u.Counters.FollowingCount++
		return nil, c.save(ctx, u)
	})
	return err
}

// Unfollow removes targetID from id's following set and floors
// followingCount at 0. Self-unfollow is rejected (spec Open Question: treat
// self-follow as invariant).
func (c *UserCoord) Unfollow(ctx context.Context, id, targetID int64) error {
	if id == targetID {
		return model.ErrCannotUnfollowSelf
	}
	_, err := c.registry.Do(ctx, c.key(id), func(ctx context.Context) (interface{}, error) {
		member := fmt.Sprintf("%d", targetID)
		present, err := c.store.SIsMember(ctx, followingSetKey(id), member)
		if err != nil {
			return nil, err
		}
		if !present {
			return nil, nil
		}
		u, err := c.load(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := c.store.SRem(ctx, followingSetKey(id), member); err != nil {
			return nil, err
		}
		if u.Counters.FollowingCount > 0 {
			u.Counters.FollowingCount--
		}
		return nil, c.save(ctx, u)
	})
	return err
}

// AddFollower mirrors Follow on the target side, bumping followerCount.
func (c *UserCoord) AddFollower(ctx context.Context, id, followerID int64) error {
	_, err := c.registry.Do(ctx, c.key(id), func(ctx context.Context) (interface{}, error) {
		member := fmt.Sprintf("%d", followerID)
		already, err := c.store.SIsMember(ctx, followersSetKey(id), member)
		if err != nil {
			return nil, err
		}
		if already {
			return nil, nil
		}
		u, err := c.load(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := c.store.SAdd(ctx, followersSetKey(id), member); err != nil {
			return nil, err
		}
		u.Counters.FollowerCount++
		return nil, c.save(ctx, u)
	})
	return err
}

// RemoveFollower mirrors Unfollow on the target side, flooring followerCount at 0.
func (c *UserCoord) RemoveFollower(ctx context.Context, id, followerID int64) error {
	_, err := c.registry.Do(ctx, c.key(id), func(ctx context.Context) (interface{}, error) {
		member := fmt.Sprintf("%d", followerID)
		present, err := c.store.SIsMember(ctx, followersSetKey(id), member)
		if err != nil {
			return nil, err
		}
		if !present {
			return nil, nil
		}
		u, err := c.load(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := c.store.SRem(ctx, followersSetKey(id), member); err != nil {
			return nil, err
		}
		if u.Counters.FollowerCount > 0 {
			u.Counters.FollowerCount--
		}
		return nil, c.save(ctx, u)
	})
	return err
}

// Block adds targetID to id's blocked set then mutually unfollows: after
// Block, no follow edges exist between the pair in either user's sets. The
// edges are removed by sequential calls on each user's own coordinator
// (cross-entity choreography, no locking across the pair).
func (c *UserCoord) Block(ctx context.Context, id, targetID int64) error {
	_, err := c.registry.Do(ctx, c.key(id), func(ctx context.Context) (interface{}, error) {
		if err := c.store.SAdd(ctx, blockedSetKey(id), fmt.Sprintf("%d", targetID)); err != nil {
			return nil, err
		}
		return nil, nil
	})
	if err != nil {
		return err
	}
	if err := c.Unfollow(ctx, id, targetID); err != nil && err != model.ErrCannotUnfollowSelf {
		return err
	}
	if err := c.RemoveFollower(ctx, id, targetID); err != nil {
		return err
	}
	if err := c.Unfollow(ctx, targetID, id); err != nil && err != model.ErrCannotUnfollowSelf {
		return err
	}
	return c.RemoveFollower(ctx, targetID, id)
}

// Unblock removes targetID from id's blocked set.
func (c *UserCoord) Unblock(ctx context.Context, id, targetID int64) error {
	_, err := c.registry.Do(ctx, c.key(id), func(ctx context.Context) (interface{}, error) {
		return nil, c.store.SRem(ctx, blockedSetKey(id), fmt.Sprintf("%d", targetID))
	})
	return err
}

// IsFollowing reports whether id follows targetID.
func (c *UserCoord) IsFollowing(ctx context.Context, id, targetID int64) (bool, error) {
	return c.store.SIsMember(ctx, followingSetKey(id), fmt.Sprintf("%d", targetID))
}

// IsBlocked reports whether id has blocked targetID.
func (c *UserCoord) IsBlocked(ctx context.Context, id, targetID int64) (bool, error) {
	return c.store.SIsMember(ctx, blockedSetKey(id), fmt.Sprintf("%d", targetID))
}

// BlockedIDs returns the raw blocked set for id, used by FeedCoord filtering.
func (c *UserCoord) BlockedIDs(ctx context.Context, id int64) (map[int64]bool, error) {
	members, err := c.store.SMembers(ctx, blockedSetKey(id))
	if err != nil {
		return nil, err
	}
	out := make(map[int64]bool, len(members))
	for _, m := range members {
		var v int64
		fmt.Sscanf(m, "%d", &v)
		out[v] = true
	}
	return out, nil
}

// FollowingIDs returns the raw following set for id.
func (c *UserCoord) FollowingIDs(ctx context.Context, id int64) (map[int64]bool, error) {
	members, err := c.store.SMembers(ctx, followingSetKey(id))
	if err != nil {
		return nil, err
	}
	out := make(map[int64]bool, len(members))
	for _, m := range members {
		var v int64
		fmt.Sscanf(m, "%d", &v)
		out[v] = true
	}
	return out, nil
}

// FollowerIDs returns the raw follower set for id, used by fan-out.
func (c *UserCoord) FollowerIDs(ctx context.Context, id int64) ([]int64, error) {
	members, err := c.store.SMembers(ctx, followersSetKey(id))
	if err != nil {
		return nil, err
	}
	out := make([]int64, 0, len(members))
	for _, m := range members {
		var v int64
		fmt.Sscanf(m, "%d", &v)
		out = append(out, v)
	}
	return out, nil
}

// IsBanned reports the user's current ban flag.
func (c *UserCoord) IsBanned(ctx context.Context, id int64) (bool, error) {
	v, err := c.registry.Do(ctx, c.key(id), func(ctx context.Context) (interface{}, error) {
		u, err := c.load(ctx, id)
		if err != nil {
			return nil, err
		}
		return u.Profile.IsBanned, nil
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

// IsAdmin reports the user's current admin flag.
func (c *UserCoord) IsAdmin(ctx context.Context, id int64) (bool, error) {
	v, err := c.registry.Do(ctx, c.key(id), func(ctx context.Context) (interface{}, error) {
		u, err := c.load(ctx, id)
		if err != nil {
			return nil, err
		}
		return u.Profile.IsAdmin, nil
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

// IncrementPostCount bumps postCount by one.
func (c *UserCoord) IncrementPostCount(ctx context.Context, id int64) error {
	_, err := c.registry.Do(ctx, c.key(id), func(ctx context.Context) (interface{}, error) {
		u, err := c.load(ctx, id)
		if err != nil {
			return nil, err
		}
		u.Counters.PostCount++
		return nil, c.save(ctx, u)
	})
	return err
}

// DecrementPostCount floors postCount at 0.
func (c *UserCoord) DecrementPostCount(ctx context.Context, id int64) error {
	_, err := c.registry.Do(ctx, c.key(id), func(ctx context.Context) (interface{}, error) {
		u, err := c.load(ctx, id)
		if err != nil {
			return nil, err
		}
		if u.Counters.PostCount > 0 {
			u.Counters.PostCount--
		}
		return nil, c.save(ctx, u)
	})
	return err
}

// Ban sets the ban flag and reason; the short-TTL ban cache the auth layer
// reads is left to expire naturally rather than being invalidated here, per
// spec's 60s fail-closed design — a banned user loses access within one TTL
// window at most.
func (c *UserCoord) Ban(ctx context.Context, id int64, reason string) error {
	_, err := c.registry.Do(ctx, c.key(id), func(ctx context.Context) (interface{}, error) {
		u, err := c.load(ctx, id)
		if err != nil {
			return nil, err
		}
		u.Profile.IsBanned = true
		u.Profile.BannedAt = time.Now()
		u.Profile.BannedReason = reason
		return nil, c.save(ctx, u)
	})
	return err
}

// Unban clears the ban flag.
func (c *UserCoord) Unban(ctx context.Context, id int64) error {
	_, err := c.registry.Do(ctx, c.key(id), func(ctx context.Context) (interface{}, error) {
		u, err := c.load(ctx, id)
		if err != nil {
			return nil, err
		}
		u.Profile.IsBanned = false
		u.Profile.BannedAt = time.Time{}
		u.Profile.BannedReason = ""
		return nil, c.save(ctx, u)
	})
	return err
}

// SetPassword overwrites the password verifier, used by the password-reset
// confirm flow (C13) once the reset token has been validated.
func (c *UserCoord) SetPassword(ctx context.Context, id int64, passwordHash, passwordSalt string) error {
	_, err := c.registry.Do(ctx, c.key(id), func(ctx context.Context) (interface{}, error) {
		u, err := c.load(ctx, id)
		if err != nil {
			return nil, err
		}
		u.PasswordHash = passwordHash
		u.PasswordSalt = passwordSalt
		return nil, c.save(ctx, u)
	})
	return err
}

// SetAdmin toggles the admin flag.
func (c *UserCoord) SetAdmin(ctx context.Context, id int64, admin bool) error {
	_, err := c.registry.Do(ctx, c.key(id), func(ctx context.Context) (interface{}, error) {
		u, err := c.load(ctx, id)
		if err != nil {
			return nil, err
		}
		u.Profile.IsAdmin = admin
		return nil, c.save(ctx, u)
	})
	return err
}

// RecordLike prepends postID to id's bounded liked-posts index, trimmed to
// likedPostsCap.
func (c *UserCoord) RecordLike(ctx context.Context, id, postID int64) error {
	_, err := c.registry.Do(ctx, c.key(id), func(ctx context.Context) (interface{}, error) {
		if err := c.store.LPush(ctx, likedListKey(id), fmt.Sprintf("%d", postID)); err != nil {
			return nil, err
		}
		return nil, c.store.LTrim(ctx, likedListKey(id), 0, likedPostsCap-1)
	})
	return err
}

// LikedPosts returns the limit most-recently-liked post ids, newest first.
func (c *UserCoord) LikedPosts(ctx context.Context, id int64, limit int) ([]int64, error) {
	members, err := c.store.LRange(ctx, likedListKey(id), 0, int64(limit-1))
	if err != nil {
		return nil, err
	}
	out := make([]int64, 0, len(members))
	for _, m := range members {
		var v int64
		fmt.Sscanf(m, "%d", &v)
		out = append(out, v)
	}
	return out, nil
}

// ReserveHandle and ReserveEmail perform the atomic check-and-set reservation the
// auth signup flow relies on; they are thin wrappers over the KV tier's SetNX
// rather than actor operations, since they guard a global namespace, not a
// single entity's state.
func ReserveHandle(ctx context.Context, store kvstore.Store, handle string, id int64) (bool, error) {
	return store.SetNX(ctx, handleKey(handle), fmt.Sprintf("%d", id), 0)
}

func ReserveEmail(ctx context.Context, store kvstore.Store, email string, id int64) (bool, error) {
	return store.SetNX(ctx, emailKey(email), fmt.Sprintf("%d", id), 0)
}

// ReleaseHandle/ReleaseEmail roll back a reservation when signup fails after
// partially reserving the namespace.
func ReleaseHandle(ctx context.Context, store kvstore.Store, handle string) error {
	return store.Delete(ctx, handleKey(handle))
}

func ReleaseEmail(ctx context.Context, store kvstore.Store, email string) error {
	return store.Delete(ctx, emailKey(email))
}

// LookupHandle resolves a handle to a user id via the reservation key.
func LookupHandle(ctx context.Context, store kvstore.Store, handle string) (int64, error) {
	raw, err := store.Get(ctx, handleKey(handle))
	if err != nil {
		if err == kvstore.ErrNotFound {
			return 0, model.ErrUserNotFound
		}
		return 0, err
	}
	var id int64
	fmt.Sscanf(raw, "%d", &id)
	return id, nil
}

// ToUser projects a persistedUser into the public model.User shape (minus
// relation sets, which callers fetch separately via FollowingIDs/FollowerIDs).
func (c *UserCoord) ToUser(ctx context.Context, id int64) (*model.User, error) {
	v, err := c.registry.Do(ctx, c.key(id), func(ctx context.Context) (interface{}, error) {
		u, err := c.load(ctx, id)
		if err != nil {
			return nil, err
		}
		return &model.User{
			ID:           u.ID,
			Handle:       u.Handle,
			Email:        u.Email,
			PasswordHash: u.PasswordHash,
			PasswordSalt: u.PasswordSalt,
			CreatedAt:    u.CreatedAt,
			LastLogin:    u.LastLogin,
			Profile:      u.Profile,
			Counters:     u.Counters,
			Settings:     u.Settings,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.User), nil
}

// ToUserSummary projects the compact {id,handle,displayName,avatarUrl} shape
// embedded in feed/notification payloads, so callers never have to fetch a
// full User just to render an actor byline.
func (c *UserCoord) ToUserSummary(ctx context.Context, id int64) (model.UserSummary, error) {
	v, err := c.registry.Do(ctx, c.key(id), func(ctx context.Context) (interface{}, error) {
		u, err := c.load(ctx, id)
		if err != nil {
			return nil, err
		}
		return model.UserSummary{
			ID:          u.ID,
			Handle:      u.Handle,
			DisplayName: u.Profile.DisplayName,
			AvatarURL:   u.Profile.AvatarURL,
		}, nil
	})
	if err != nil {
		return model.UserSummary{}, err
	}
	return v.(model.UserSummary), nil
}

// RecordLogin stamps lastLogin with now.
func (c *UserCoord) RecordLogin(ctx context.Context, id int64) error {
	_, err := c.registry.Do(ctx, c.key(id), func(ctx context.Context) (interface{}, error) {
		u, err := c.load(ctx, id)
		if err != nil {
			return nil, err
		}
		u.LastLogin = time.Now()
		return nil, c.save(ctx, u)
	})
	return err
}
