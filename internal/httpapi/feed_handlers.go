package httpapi

import (
	"net/http"
	"strings"

	"thewire/internal/coordinator"
	"thewire/internal/httputil"
	"thewire/internal/model"
)

func (s *Server) handleHomeFeed(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())
	cursor, err := coordinator.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		httputil.WriteBadRequest(w, "invalid cursor")
		return
	}
	page, err := s.timelineSvc.Home(r.Context(), userID, s.pageLimit(r), cursor)
	if err != nil {
		translateDomainError(w, err)
		return
	}
	httputil.WriteOK(w, page)
}

// handleChronologicalFeed serves the followed-only feed in strict reverse
// chronological order, bypassing the round-robin explore merge Home() does
// (spec §6's second feed variant).
func (s *Server) handleChronologicalFeed(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())
	cursor, err := coordinator.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		httputil.WriteBadRequest(w, "invalid cursor")
		return
	}
	blocked, err := s.users.BlockedIDs(r.Context(), userID)
	if err != nil {
		translateDomainError(w, err)
		return
	}
	limit := s.pageLimit(r)
	feedPage, err := s.feeds.Feed(r.Context(), userID, limit, cursor, blocked)
	if err != nil {
		translateDomainError(w, err)
		return
	}

	settings, err := s.users.GetSettings(r.Context(), userID)
	if err != nil {
		translateDomainError(w, err)
		return
	}

	posts := make([]*model.Post, 0, len(feedPage.Entries))
	for _, entry := range feedPage.Entries {
		p, err := s.loadPostForRead(r.Context(), entry.PostID, userID, true)
		if err != nil {
			continue
		}
		if containsMutedWord(p.Content, settings.MutedWords) {
			continue
		}
		posts = append(posts, p)
	}

	httputil.WriteOK(w, model.TimelinePage{
		Posts:   posts,
		Cursor:  feedPage.Cursor,
		HasMore: feedPage.HasMore,
	})
}

func containsMutedWord(content string, mutedWords []string) bool {
	lower := strings.ToLower(content)
	for _, word := range mutedWords {
		if word == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(word)) {
			return true
		}
	}
	return false
}
