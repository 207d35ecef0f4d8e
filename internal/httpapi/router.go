package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"thewire/internal/httputil"
)

// Router assembles the chi router serving every endpoint in the public API
// (spec §6): public routes, optionally-authenticated routes, and routes
// requiring a bearer token or admin privileges.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteOK(w, map[string]string{"status": "ok"})
	})

	r.Get("/media/{key}", s.handleMediaRedirect)

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/signup", s.handleSignup)
		r.Post("/login", s.handleLogin)
		r.Post("/refresh", s.handleRefresh)
		r.Post("/reset/request", s.handleResetRequest)
		r.Post("/reset/confirm", s.handleResetConfirm)
		r.With(s.requireAuth).Get("/me", s.handleMe)
		r.With(s.requireAuth).Post("/logout", s.handleLogout)
	})

	r.Route("/api/users", func(r chi.Router) {
		r.With(s.optionalAuth).Get("/{handle}", s.handleGetUser)
		r.With(s.optionalAuth).Get("/{handle}/followers", s.handleGetFollowers)
		r.With(s.optionalAuth).Get("/{handle}/following", s.handleGetFollowing)
		r.With(s.optionalAuth).Get("/{handle}/posts", s.handleGetUserPosts)
		r.With(s.optionalAuth).Get("/{handle}/replies", s.handleGetUserReplies)
		r.With(s.optionalAuth).Get("/{handle}/media", s.handleGetUserMedia)
		r.With(s.optionalAuth).Get("/{handle}/likes", s.handleGetUserLikes)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Put("/me", s.handleUpdateProfile)
			r.Get("/me/settings", s.handleGetSettings)
			r.Put("/me/settings", s.handleUpdateSettings)
			r.Get("/me/blocked", s.handleGetBlocked)
			r.Post("/{handle}/follow", s.handleFollow)
			r.Delete("/{handle}/follow", s.handleUnfollow)
			r.Post("/{handle}/block", s.handleBlock)
			r.Delete("/{handle}/block", s.handleUnblock)
		})
	})

	r.Route("/api/posts", func(r chi.Router) {
		r.With(s.optionalAuth).Get("/{id}", s.handleGetPost)
		r.With(s.optionalAuth).Get("/{id}/thread", s.handleGetThread)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Post("/", s.handleCreatePost)
			r.Delete("/{id}", s.handleDeletePost)
			r.Post("/{id}/like", s.handleLikePost)
			r.Delete("/{id}/like", s.handleUnlikePost)
			r.Post("/{id}/repost", s.handleRepost)
		})
	})

	r.Route("/api/media", func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Post("/upload", s.handleMediaUpload)
		r.Put("/users/me/avatar", s.handleUploadAvatar)
		r.Put("/users/me/banner", s.handleUploadBanner)
	})

	r.Route("/api/feed", func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Get("/home", s.handleHomeFeed)
		r.Get("/chronological", s.handleChronologicalFeed)
	})

	r.Route("/api/notifications", func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Get("/", s.handleListNotifications)
		r.Get("/unread-count", s.handleUnreadCount)
		r.Put("/{id}/read", s.handleMarkNotificationRead)
		r.Put("/read-all", s.handleMarkAllNotificationsRead)
	})

	r.With(s.optionalAuth).Get("/api/search", s.handleSearch)

	r.Route("/api/moderation", func(r chi.Router) {
		r.Use(s.requireAdmin)
		r.Post("/users/{handle}/ban", s.handleBanUser)
		r.Post("/users/{handle}/unban", s.handleUnbanUser)
		r.Post("/posts/{id}/takedown", s.handleTakedownPost)
	})

	r.Get("/api/ws", s.handleWebSocket)

	return r
}
