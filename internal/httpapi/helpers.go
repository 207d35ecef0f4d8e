package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"thewire/internal/coordinator"
	"thewire/internal/httputil"
	"thewire/internal/model"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 50
)

// pageLimit parses the "limit" query param, defaulting to the feed page size
// and clamping to the max pagination cap (spec §6 Config).
func (s *Server) pageLimit(r *http.Request) int {
	limit := s.cfg.FeedPageSize
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}
	cap := s.cfg.MaxPaginationCap
	if cap <= 0 {
		cap = maxPageLimit
	}
	if limit > cap {
		limit = cap
	}
	return limit
}

// parsePathInt64 parses a chi path parameter as an int64, writing a 400 and
// reporting failure if it isn't one.
func parsePathInt64(w http.ResponseWriter, raw string) (int64, bool) {
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		httputil.WriteBadRequest(w, "invalid id")
		return 0, false
	}
	return v, true
}

// clientIP extracts the caller's address, preferring the de-facto
// X-Forwarded-For/X-Real-IP proxy headers over RemoteAddr, same fallback
// chain as the teacher's auth handler.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		return real
	}
	return r.RemoteAddr
}

// resolveHandle looks up the user id behind a :handle path parameter.
func (s *Server) resolveHandle(ctx context.Context, handle string) (int64, error) {
	return coordinator.LookupHandle(ctx, s.store, strings.ToLower(handle))
}

// attachAuthor fills p.Author with the compact author projection.
func (s *Server) attachAuthor(ctx context.Context, p *model.Post) {
	summary, err := s.users.ToUserSummary(ctx, p.AuthorID)
	if err != nil {
		return
	}
	p.Author = &summary
}

// enrichViewerState fills IsLiked/IsReposted for the given viewer, a no-op
// when hasViewer is false (unauthenticated request).
func (s *Server) enrichViewerState(ctx context.Context, p *model.Post, viewerID int64, hasViewer bool) {
	if !hasViewer {
		return
	}
	if liked, err := s.posts.HasLiked(ctx, p.ID, viewerID); err == nil {
		p.IsLiked = liked
	}
	if reposted, err := s.posts.HasReposted(ctx, p.ID, viewerID); err == nil {
		p.IsReposted = reposted
	}
}

// loadPostForRead loads a post and attaches author + (optional) viewer
// state, rejecting deleted/taken-down posts the same way every read
// endpoint must (spec §3: a deleted post keeps its id but is filtered from
// reads).
func (s *Server) loadPostForRead(ctx context.Context, id int64, viewerID int64, hasViewer bool) (*model.Post, error) {
	p, err := s.posts.ToPost(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.IsDeleted {
		return nil, model.ErrPostDeleted
	}
	if p.IsTakenDown {
		return nil, model.ErrPostTakenDown
	}
	s.attachAuthor(ctx, p)
	s.enrichViewerState(ctx, p, viewerID, hasViewer)
	return p, nil
}
