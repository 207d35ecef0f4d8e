package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"thewire/internal/httputil"
)

type moderationReasonRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleBanUser(w http.ResponseWriter, r *http.Request) {
	limitBody(w, r)
	targetID, err := s.resolveHandle(r.Context(), chi.URLParam(r, "handle"))
	if err != nil {
		translateDomainError(w, err)
		return
	}
	var req moderationReasonRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	if err := s.users.Ban(r.Context(), targetID, req.Reason); err != nil {
		translateDomainError(w, err)
		return
	}
	httputil.WriteOK(w, map[string]string{"status": "banned"})
}

func (s *Server) handleUnbanUser(w http.ResponseWriter, r *http.Request) {
	targetID, err := s.resolveHandle(r.Context(), chi.URLParam(r, "handle"))
	if err != nil {
		translateDomainError(w, err)
		return
	}
	if err := s.users.Unban(r.Context(), targetID); err != nil {
		translateDomainError(w, err)
		return
	}
	httputil.WriteOK(w, map[string]string{"status": "unbanned"})
}

func (s *Server) handleTakedownPost(w http.ResponseWriter, r *http.Request) {
	limitBody(w, r)
	adminID, _ := userIDFromContext(r.Context())
	id, ok := parsePathInt64(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	var req moderationReasonRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	if err := s.posts.Takedown(r.Context(), id, adminID, req.Reason); err != nil {
		translateDomainError(w, err)
		return
	}
	_ = s.search.RemovePost(r.Context(), id)
	httputil.WriteOK(w, map[string]string{"status": "taken down"})
}
