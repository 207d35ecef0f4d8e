package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"thewire/internal/coordinator"
	"thewire/internal/httputil"
	"thewire/internal/model"
	"thewire/internal/queue"
)

type createPostRequest struct {
	Content   string   `json:"content"`
	MediaURLs []string `json:"mediaUrls"`
	ReplyToID *int64   `json:"replyToId"`
	QuoteOfID *int64   `json:"quoteOfId"`
}

// handleCreatePost serves post/reply/quote creation (spec §6: reposts have
// their own endpoint and carry no content). It validates content, persists
// the post, wires the authored-posts/replies secondary indices, bumps the
// parent's reply/quote counters, indexes the post for search, and enqueues
// exactly one new_post event — the fan-out worker derives every downstream
// notification (reply/quote/mention) from that single event.
func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	limitBody(w, r)
	authorID, _ := userIDFromContext(r.Context())

	var req createPostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "invalid request body")
		return
	}

	content := strings.TrimSpace(req.Content)
	if content == "" {
		translateDomainError(w, model.ErrPostEmpty)
		return
	}
	if len(content) > model.PostContentMaxLen {
		translateDomainError(w, model.ErrPostTooLong)
		return
	}

	if req.ReplyToID != nil {
		if _, err := s.loadPostForRead(r.Context(), *req.ReplyToID, authorID, true); err != nil {
			translateDomainError(w, err)
			return
		}
	}
	if req.QuoteOfID != nil {
		if _, err := s.loadPostForRead(r.Context(), *req.QuoteOfID, authorID, true); err != nil {
			translateDomainError(w, err)
			return
		}
	}

	id := s.ids.NextID()
	now := time.Now()
	createReq := model.CreatePostRequest{
		Content:   content,
		MediaURLs: req.MediaURLs,
		ReplyToID: req.ReplyToID,
		QuoteOfID: req.QuoteOfID,
	}
	if err := s.posts.Initialize(r.Context(), id, authorID, createReq, now); err != nil {
		translateDomainError(w, err)
		return
	}

	if err := coordinator.AddUserPost(r.Context(), s.store, authorID, id); err != nil {
		httputil.WriteInternalError(w, "failed to index post")
		return
	}
	if err := s.users.IncrementPostCount(r.Context(), authorID); err != nil {
		httputil.WriteInternalError(w, "failed to update post count")
		return
	}

	if req.ReplyToID != nil {
		if err := coordinator.AddReply(r.Context(), s.store, *req.ReplyToID, id); err != nil {
			httputil.WriteInternalError(w, "failed to index reply")
			return
		}
		if err := s.posts.IncrementReplyCount(r.Context(), *req.ReplyToID); err != nil {
			httputil.WriteInternalError(w, "failed to bump reply count")
			return
		}
	}
	if req.QuoteOfID != nil {
		if err := s.posts.IncrementQuoteCount(r.Context(), *req.QuoteOfID); err != nil {
			httputil.WriteInternalError(w, "failed to bump quote count")
			return
		}
	}

	if err := s.search.IndexPost(r.Context(), id, content, now); err != nil {
		httputil.WriteInternalError(w, "failed to index post for search")
		return
	}

	if _, err := s.queue.Enqueue(r.Context(), queue.StreamFeed, queue.NewPostCreatedEvent(id, authorID)); err != nil {
		httputil.WriteInternalError(w, "failed to enqueue post event")
		return
	}

	post, err := s.loadPostForRead(r.Context(), id, authorID, true)
	if err != nil {
		translateDomainError(w, err)
		return
	}
	httputil.WriteCreated(w, post)
}

func (s *Server) handleGetPost(w http.ResponseWriter, r *http.Request) {
	id, ok := parsePathInt64(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	viewerID, hasViewer := userIDFromContext(r.Context())
	post, err := s.loadPostForRead(r.Context(), id, viewerID, hasViewer)
	if err != nil {
		translateDomainError(w, err)
		return
	}
	httputil.WriteOK(w, post)
}

// handleGetThread serves the parent post plus its replies, newest-first,
// backed by the repliesKey secondary index (spec §6).
func (s *Server) handleGetThread(w http.ResponseWriter, r *http.Request) {
	id, ok := parsePathInt64(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	viewerID, hasViewer := userIDFromContext(r.Context())
	parent, err := s.loadPostForRead(r.Context(), id, viewerID, hasViewer)
	if err != nil {
		translateDomainError(w, err)
		return
	}

	limit := s.pageLimit(r)
	replyIDs, err := coordinator.Replies(r.Context(), s.store, id, limit)
	if err != nil {
		translateDomainError(w, err)
		return
	}
	replies := make([]*model.Post, 0, len(replyIDs))
	for _, rid := range replyIDs {
		p, err := s.loadPostForRead(r.Context(), rid, viewerID, hasViewer)
		if err != nil {
			continue
		}
		replies = append(replies, p)
	}
	httputil.WriteOK(w, map[string]any{"post": parent, "replies": replies})
}

// handleDeletePost tombstones a post the caller owns, removes it from the
// author's/followers' feeds and the search index, and — when the deleted
// post was itself a repost — releases its repost slot on the leaf original.
func (s *Server) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	id, ok := parsePathInt64(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	userID, _ := userIDFromContext(r.Context())
	post, err := s.posts.ToPost(r.Context(), id)
	if err != nil {
		translateDomainError(w, err)
		return
	}
	if post.AuthorID != userID {
		translateDomainError(w, model.ErrNotPostOwner)
		return
	}

	if err := s.posts.Delete(r.Context(), id); err != nil {
		translateDomainError(w, err)
		return
	}
	if err := s.users.DecrementPostCount(r.Context(), userID); err != nil {
		httputil.WriteInternalError(w, "failed to update post count")
		return
	}
	if post.RepostOfID != nil {
		_ = s.posts.RemoveRepost(r.Context(), *post.RepostOfID, userID)
	}
	_ = s.search.RemovePost(r.Context(), id)

	if _, err := s.queue.Enqueue(r.Context(), queue.StreamFeed, queue.NewPostDeletedEvent(id, userID)); err != nil {
		httputil.WriteInternalError(w, "failed to enqueue delete event")
		return
	}
	httputil.WriteOK(w, map[string]string{"status": "deleted"})
}

func (s *Server) handleLikePost(w http.ResponseWriter, r *http.Request) {
	id, ok := parsePathInt64(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	userID, _ := userIDFromContext(r.Context())
	post, err := s.posts.ToPost(r.Context(), id)
	if err != nil {
		translateDomainError(w, err)
		return
	}
	likeCount, err := s.posts.Like(r.Context(), id, userID)
	if err != nil {
		translateDomainError(w, err)
		return
	}
	if err := s.users.RecordLike(r.Context(), userID, id); err != nil {
		httputil.WriteInternalError(w, "failed to record like")
		return
	}
	if _, err := s.queue.Enqueue(r.Context(), queue.StreamFeed, queue.NewPostLikedEvent(id, userID, post.AuthorID)); err != nil {
		httputil.WriteInternalError(w, "failed to enqueue like event")
		return
	}
	httputil.WriteOK(w, map[string]any{"likeCount": likeCount})
}

func (s *Server) handleUnlikePost(w http.ResponseWriter, r *http.Request) {
	id, ok := parsePathInt64(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	userID, _ := userIDFromContext(r.Context())
	likeCount, err := s.posts.Unlike(r.Context(), id, userID)
	if err != nil {
		translateDomainError(w, err)
		return
	}
	httputil.WriteOK(w, map[string]any{"likeCount": likeCount})
}

// handleRepost walks to the leaf original (a repost-of-a-repost stores the
// leaf, not the intermediate), rejects self-repost and repost-with-content,
// mints a new content-less post pointing at the leaf, and lets the fan-out
// worker raise the repost notification off the resulting new_post event.
func (s *Server) handleRepost(w http.ResponseWriter, r *http.Request) {
	id, ok := parsePathInt64(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	userID, _ := userIDFromContext(r.Context())

	target, err := s.posts.ToPost(r.Context(), id)
	if err != nil {
		translateDomainError(w, err)
		return
	}
	if target.IsDeleted || target.IsTakenDown {
		translateDomainError(w, model.ErrPostDeleted)
		return
	}
	leafID := id
	leaf := target
	if target.RepostOfID != nil {
		leafID = *target.RepostOfID
		leaf, err = s.posts.ToPost(r.Context(), leafID)
		if err != nil {
			translateDomainError(w, err)
			return
		}
	}
	if leaf.AuthorID == userID {
		translateDomainError(w, model.ErrSelfRepost)
		return
	}
	if already, err := s.posts.HasReposted(r.Context(), leafID, userID); err == nil && already {
		translateDomainError(w, model.ErrAlreadyReposted)
		return
	}

	repostID := s.ids.NextID()
	now := time.Now()
	createReq := model.CreatePostRequest{RepostOfID: &leafID}
	if err := s.posts.Initialize(r.Context(), repostID, userID, createReq, now); err != nil {
		translateDomainError(w, err)
		return
	}
	if err := s.posts.AddRepost(r.Context(), leafID, userID); err != nil {
		httputil.WriteInternalError(w, "failed to record repost")
		return
	}
	if err := coordinator.AddUserPost(r.Context(), s.store, userID, repostID); err != nil {
		httputil.WriteInternalError(w, "failed to index repost")
		return
	}
	if err := s.users.IncrementPostCount(r.Context(), userID); err != nil {
		httputil.WriteInternalError(w, "failed to update post count")
		return
	}
	if _, err := s.queue.Enqueue(r.Context(), queue.StreamFeed, queue.NewPostCreatedEvent(repostID, userID)); err != nil {
		httputil.WriteInternalError(w, "failed to enqueue repost event")
		return
	}

	post, err := s.loadPostForRead(r.Context(), repostID, userID, true)
	if err != nil {
		translateDomainError(w, err)
		return
	}
	httputil.WriteCreated(w, post)
}
