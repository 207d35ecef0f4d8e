package httpapi

import (
	"context"
	"net/http"
	"strings"

	"thewire/internal/auth"
	"thewire/internal/httputil"
	"thewire/internal/model"
)

type contextKey string

const userIDKey contextKey = "user_id"

// maxJSONBodyBytes enforces the 1 MB JSON payload limit (spec §4.11).
const maxJSONBodyBytes = 1 << 20

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return parts[1]
	}
	return ""
}

// requireAuth verifies the bearer token and the cached ban status, rejecting
// with 401 (missing/invalid/expired token) or 403 (banned), per spec §7.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			httputil.WriteUnauthorized(w, "missing bearer token")
			return
		}
		claims, err := s.auth.VerifyToken(token)
		if err != nil {
			if err == auth.ErrTokenExpired {
				httputil.WriteUnauthorized(w, "token expired")
				return
			}
			httputil.WriteUnauthorized(w, "invalid token")
			return
		}

		banned, err := s.auth.CheckBan(r.Context(), claims.Sub)
		if err != nil {
			httputil.WriteServiceUnavailable(w, "ban check unavailable")
			return
		}
		if banned {
			httputil.WriteForbidden(w, "account is banned")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, claims.Sub)
		next(w, r.WithContext(ctx))
	}
}

// optionalAuth attaches the caller's user id to the context if a valid
// bearer token is present, but never rejects the request for its absence.
func (s *Server) optionalAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			next(w, r)
			return
		}
		claims, err := s.auth.VerifyToken(token)
		if err != nil {
			next(w, r)
			return
		}
		banned, err := s.auth.CheckBan(r.Context(), claims.Sub)
		if err == nil && banned {
			next(w, r)
			return
		}
		ctx := context.WithValue(r.Context(), userIDKey, claims.Sub)
		next(w, r.WithContext(ctx))
	}
}

// requireAdmin chains on top of requireAuth's context, rejecting non-admins
// with 403 (spec §7's Authorization error kind).
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return s.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		userID, _ := userIDFromContext(r.Context())
		isAdmin, err := s.users.IsAdmin(r.Context(), userID)
		if err != nil {
			httputil.WriteInternalError(w, "failed to check admin status")
			return
		}
		if !isAdmin {
			httputil.WriteForbidden(w, "admin privileges required")
			return
		}
		next(w, r)
	})
}

func userIDFromContext(ctx context.Context) (int64, bool) {
	v, ok := ctx.Value(userIDKey).(int64)
	return v, ok
}

// limitBody wraps the request body in the 1 MB JSON payload cap.
func limitBody(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
}

func translateDomainError(w http.ResponseWriter, err error) {
	switch err {
	case model.ErrUserNotFound, model.ErrPostNotFound:
		httputil.WriteNotFound(w, err.Error())
	case model.ErrHandleTaken, model.ErrEmailTaken, model.ErrSelfRepost, model.ErrAlreadyReposted:
		httputil.WriteConflict(w, err.Error())
	case model.ErrInvalidHandle, model.ErrInvalidEmail, model.ErrInvalidPassword,
		model.ErrDisplayNameTooLong, model.ErrBioTooLong, model.ErrPostEmpty,
		model.ErrPostTooLong, model.ErrRepostWithContent:
		httputil.WriteBadRequest(w, err.Error())
	case model.ErrInvalidCredentials:
		httputil.WriteUnauthorized(w, err.Error())
	case model.ErrUserBanned:
		httputil.WriteForbidden(w, err.Error())
	case model.ErrCannotFollowSelf, model.ErrCannotUnfollowSelf, model.ErrNotAdmin, model.ErrNotPostOwner:
		httputil.WriteForbidden(w, err.Error())
	case model.ErrPostDeleted, model.ErrPostTakenDown:
		httputil.WriteNotFound(w, err.Error())
	case auth.ErrRateLimited:
		httputil.WriteRateLimited(w, err.Error())
	case auth.ErrAccountLocked:
		httputil.WriteForbidden(w, err.Error())
	case auth.ErrResetInvalid:
		httputil.WriteBadRequest(w, err.Error())
	case model.ErrFileTooLarge:
		httputil.WritePayloadTooLarge(w, err.Error())
	case model.ErrInvalidMediaType, model.ErrMediaMismatch:
		httputil.WriteBadRequest(w, err.Error())
	default:
		httputil.WriteInternalError(w, "internal error")
	}
}
