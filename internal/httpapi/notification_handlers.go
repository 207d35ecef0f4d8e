package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"thewire/internal/httputil"
)

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())
	notifications, err := s.notifications.List(r.Context(), userID, s.pageLimit(r))
	if err != nil {
		translateDomainError(w, err)
		return
	}
	httputil.WriteOK(w, map[string]any{"notifications": notifications})
}

func (s *Server) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())
	count, err := s.notifications.UnreadCount(r.Context(), userID)
	if err != nil {
		translateDomainError(w, err)
		return
	}
	httputil.WriteOK(w, map[string]int{"unreadCount": count})
}

func (s *Server) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())
	id, ok := parsePathInt64(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	if err := s.notifications.MarkRead(r.Context(), userID, id); err != nil {
		translateDomainError(w, err)
		return
	}
	httputil.WriteOK(w, map[string]string{"status": "read"})
}

func (s *Server) handleMarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())
	if err := s.notifications.MarkAllRead(r.Context(), userID); err != nil {
		translateDomainError(w, err)
		return
	}
	httputil.WriteOK(w, map[string]string{"status": "all read"})
}
