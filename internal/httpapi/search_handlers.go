package httpapi

import (
	"net/http"
	"sort"

	"thewire/internal/httputil"
	"thewire/internal/model"
	"thewire/internal/ranking"
	"thewire/internal/search"
)

type scoredPost struct {
	post  *model.Post
	score float64
}

// handleSearch serves both result kinds: type=top (default) ranks matching
// posts by ranking.Score (engagement/age-decay) boosted by literal term
// frequency, per spec §4.9; type=people resolves the handle/display-name
// prefix index.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		httputil.WriteBadRequest(w, "missing q parameter")
		return
	}
	limit := s.pageLimit(r)
	viewerID, hasViewer := userIDFromContext(r.Context())

	switch r.URL.Query().Get("type") {
	case "people":
		ids, err := s.search.SearchUsers(r.Context(), query)
		if err != nil {
			httputil.WriteInternalError(w, "search failed")
			return
		}
		if len(ids) > limit {
			ids = ids[:limit]
		}
		httputil.WriteOK(w, map[string]any{"users": s.summarizeUsers(r, ids)})
	default:
		ids, err := s.search.SearchPosts(r.Context(), query)
		if err != nil {
			httputil.WriteInternalError(w, "search failed")
			return
		}
		weights := ranking.DefaultWeights()
		scored := make([]scoredPost, 0, len(ids))
		for _, id := range ids {
			p, err := s.loadPostForRead(r.Context(), id, viewerID, hasViewer)
			if err != nil {
				continue
			}
			relevance := ranking.Score(weights, p.Counters.LikeCount, p.Counters.ReplyCount, p.Counters.RepostCount, p.CreatedAt)*10 +
				float64(search.TermFrequency(p.Content, query))*5
			scored = append(scored, scoredPost{post: p, score: relevance})
		}
		sort.Slice(scored, func(i, j int) bool { return scored[i].score > scored[j].score })
		if len(scored) > limit {
			scored = scored[:limit]
		}
		posts := make([]*model.Post, len(scored))
		for i, sp := range scored {
			posts[i] = sp.post
		}
		httputil.WriteOK(w, map[string]any{"posts": posts})
	}
}
