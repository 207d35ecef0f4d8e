package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"thewire/internal/coordinator"
	"thewire/internal/httputil"
	"thewire/internal/kvstore"
	"thewire/internal/model"
)

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	targetID, err := s.resolveHandle(r.Context(), chi.URLParam(r, "handle"))
	if err != nil {
		translateDomainError(w, err)
		return
	}
	user, err := s.users.ToUser(r.Context(), targetID)
	if err != nil {
		translateDomainError(w, err)
		return
	}

	resp := map[string]any{"user": user}
	if viewerID, ok := userIDFromContext(r.Context()); ok {
		following, _ := s.users.IsFollowing(r.Context(), viewerID, targetID)
		blocked, _ := s.users.IsBlocked(r.Context(), viewerID, targetID)
		resp["isFollowing"] = following
		resp["isBlocked"] = blocked
	}
	httputil.WriteOK(w, resp)
}

type updateProfileRequest struct {
	DisplayName *string `json:"displayName"`
	Bio         *string `json:"bio"`
	Location    *string `json:"location"`
	Website     *string `json:"website"`
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	limitBody(w, r)
	userID, _ := userIDFromContext(r.Context())
	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "invalid request body")
		return
	}
	before, err := s.users.ToUser(r.Context(), userID)
	if err != nil {
		translateDomainError(w, err)
		return
	}
	profile, err := s.users.UpdateProfile(r.Context(), userID, model.ProfilePatch{
		DisplayName: req.DisplayName,
		Bio:         req.Bio,
		Location:    req.Location,
		Website:     req.Website,
	})
	if err != nil {
		translateDomainError(w, err)
		return
	}
	if profile.DisplayName != before.Profile.DisplayName {
		_ = s.search.RemoveUser(r.Context(), userID, before.Handle, before.Profile.DisplayName)
		_ = s.search.IndexUser(r.Context(), userID, before.Handle, profile.DisplayName)
	}
	httputil.WriteOK(w, profile)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())
	settings, err := s.users.GetSettings(r.Context(), userID)
	if err != nil {
		translateDomainError(w, err)
		return
	}
	httputil.WriteOK(w, settings)
}

type updateSettingsRequest struct {
	EmailNotifications *bool    `json:"emailNotifications"`
	PrivateAccount     *bool    `json:"privateAccount"`
	MutedWords         []string `json:"mutedWords"`
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	limitBody(w, r)
	userID, _ := userIDFromContext(r.Context())
	var req updateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "invalid request body")
		return
	}
	settings, err := s.users.UpdateSettings(r.Context(), userID, model.SettingsPatch{
		EmailNotifications: req.EmailNotifications,
		PrivateAccount:     req.PrivateAccount,
		MutedWords:         req.MutedWords,
	})
	if err != nil {
		translateDomainError(w, err)
		return
	}
	httputil.WriteOK(w, settings)
}

func (s *Server) handleGetBlocked(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())
	blocked, err := s.users.BlockedIDs(r.Context(), userID)
	if err != nil {
		translateDomainError(w, err)
		return
	}
	summaries := make([]model.UserSummary, 0, len(blocked))
	for id := range blocked {
		if summary, err := s.users.ToUserSummary(r.Context(), id); err == nil {
			summaries = append(summaries, summary)
		}
	}
	httputil.WriteOK(w, map[string]any{"users": summaries})
}

func (s *Server) handleFollow(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())
	targetID, err := s.resolveHandle(r.Context(), chi.URLParam(r, "handle"))
	if err != nil {
		translateDomainError(w, err)
		return
	}
	if userID == targetID {
		translateDomainError(w, model.ErrCannotFollowSelf)
		return
	}
	if err := s.users.Follow(r.Context(), userID, targetID); err != nil {
		translateDomainError(w, err)
		return
	}
	if err := s.users.AddFollower(r.Context(), targetID, userID); err != nil {
		translateDomainError(w, err)
		return
	}
	httputil.WriteOK(w, map[string]string{"status": "following"})
}

func (s *Server) handleUnfollow(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())
	targetID, err := s.resolveHandle(r.Context(), chi.URLParam(r, "handle"))
	if err != nil {
		translateDomainError(w, err)
		return
	}
	if err := s.users.Unfollow(r.Context(), userID, targetID); err != nil {
		translateDomainError(w, err)
		return
	}
	if err := s.users.RemoveFollower(r.Context(), targetID, userID); err != nil {
		translateDomainError(w, err)
		return
	}
	httputil.WriteOK(w, map[string]string{"status": "unfollowed"})
}

func (s *Server) handleBlock(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())
	targetID, err := s.resolveHandle(r.Context(), chi.URLParam(r, "handle"))
	if err != nil {
		translateDomainError(w, err)
		return
	}
	if err := s.users.Block(r.Context(), userID, targetID); err != nil {
		translateDomainError(w, err)
		return
	}
	httputil.WriteOK(w, map[string]string{"status": "blocked"})
}

func (s *Server) handleUnblock(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())
	targetID, err := s.resolveHandle(r.Context(), chi.URLParam(r, "handle"))
	if err != nil {
		translateDomainError(w, err)
		return
	}
	if err := s.users.Unblock(r.Context(), userID, targetID); err != nil {
		translateDomainError(w, err)
		return
	}
	httputil.WriteOK(w, map[string]string{"status": "unblocked"})
}

func (s *Server) handleGetFollowers(w http.ResponseWriter, r *http.Request) {
	targetID, err := s.resolveHandle(r.Context(), chi.URLParam(r, "handle"))
	if err != nil {
		translateDomainError(w, err)
		return
	}
	ids, err := s.users.FollowerIDs(r.Context(), targetID)
	if err != nil {
		translateDomainError(w, err)
		return
	}
	httputil.WriteOK(w, map[string]any{"users": s.summarizeUsers(r, ids)})
}

func (s *Server) handleGetFollowing(w http.ResponseWriter, r *http.Request) {
	targetID, err := s.resolveHandle(r.Context(), chi.URLParam(r, "handle"))
	if err != nil {
		translateDomainError(w, err)
		return
	}
	following, err := s.users.FollowingIDs(r.Context(), targetID)
	if err != nil {
		translateDomainError(w, err)
		return
	}
	ids := make([]int64, 0, len(following))
	for id := range following {
		ids = append(ids, id)
	}
	httputil.WriteOK(w, map[string]any{"users": s.summarizeUsers(r, ids)})
}

func (s *Server) summarizeUsers(r *http.Request, ids []int64) []model.UserSummary {
	out := make([]model.UserSummary, 0, len(ids))
	for _, id := range ids {
		if summary, err := s.users.ToUserSummary(r.Context(), id); err == nil {
			out = append(out, summary)
		}
	}
	return out
}

func (s *Server) handleGetUserPosts(w http.ResponseWriter, r *http.Request) {
	s.servePostIndex(w, r, coordinator.UserPosts)
}

func (s *Server) handleGetUserReplies(w http.ResponseWriter, r *http.Request) {
	s.servePostIndex(w, r, func(ctx context.Context, store kvstore.Store, id int64, limit int) ([]int64, error) {
		ids, err := coordinator.UserPosts(ctx, store, id, limit*4)
		if err != nil {
			return nil, err
		}
		out := make([]int64, 0, limit)
		for _, pid := range ids {
			if p, err := s.posts.ToPost(ctx, pid); err == nil && p.ReplyToID != nil && len(out) < limit {
				out = append(out, pid)
			}
		}
		return out, nil
	})
}

// handleGetUserMedia filters the author's own posts down to ones carrying
// media attachments; there is no separate media index, since the authored
// index already orders everything a profile page needs to page through.
func (s *Server) handleGetUserMedia(w http.ResponseWriter, r *http.Request) {
	targetID, err := s.resolveHandle(r.Context(), chi.URLParam(r, "handle"))
	if err != nil {
		translateDomainError(w, err)
		return
	}
	limit := s.pageLimit(r)
	ids, err := coordinator.UserPosts(r.Context(), s.store, targetID, limit*4)
	if err != nil {
		translateDomainError(w, err)
		return
	}
	viewerID, hasViewer := userIDFromContext(r.Context())
	posts := make([]*model.Post, 0, limit)
	for _, id := range ids {
		if len(posts) >= limit {
			break
		}
		p, err := s.loadPostForRead(r.Context(), id, viewerID, hasViewer)
		if err != nil || len(p.MediaURLs) == 0 {
			continue
		}
		posts = append(posts, p)
	}
	httputil.WriteOK(w, map[string]any{"posts": posts})
}

func (s *Server) handleGetUserLikes(w http.ResponseWriter, r *http.Request) {
	targetID, err := s.resolveHandle(r.Context(), chi.URLParam(r, "handle"))
	if err != nil {
		translateDomainError(w, err)
		return
	}
	limit := s.pageLimit(r)
	ids, err := s.users.LikedPosts(r.Context(), targetID, limit)
	if err != nil {
		translateDomainError(w, err)
		return
	}
	viewerID, hasViewer := userIDFromContext(r.Context())
	posts := make([]*model.Post, 0, len(ids))
	for _, id := range ids {
		p, err := s.loadPostForRead(r.Context(), id, viewerID, hasViewer)
		if err != nil {
			continue
		}
		posts = append(posts, p)
	}
	httputil.WriteOK(w, map[string]any{"posts": posts})
}

// servePostIndex is shared by the authored-posts and replies listing
// endpoints: resolve :handle, read the id list via index, load+enrich each
// post, and write the page.
func (s *Server) servePostIndex(w http.ResponseWriter, r *http.Request, index func(ctx context.Context, store kvstore.Store, id int64, limit int) ([]int64, error)) {
	targetID, err := s.resolveHandle(r.Context(), chi.URLParam(r, "handle"))
	if err != nil {
		translateDomainError(w, err)
		return
	}
	limit := s.pageLimit(r)
	ids, err := index(r.Context(), s.store, targetID, limit)
	if err != nil {
		translateDomainError(w, err)
		return
	}
	viewerID, hasViewer := userIDFromContext(r.Context())
	posts := make([]*model.Post, 0, len(ids))
	for _, id := range ids {
		p, err := s.loadPostForRead(r.Context(), id, viewerID, hasViewer)
		if err != nil {
			continue
		}
		posts = append(posts, p)
	}
	httputil.WriteOK(w, map[string]any{"posts": posts})
}
