package httpapi

import (
	"encoding/json"
	"net/http"

	"thewire/internal/auth"
	"thewire/internal/httputil"
)

type signupRequest struct {
	Handle      string `json:"handle"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	limitBody(w, r)
	if err := s.auth.CheckSignupRate(r.Context(), clientIP(r)); err != nil {
		translateDomainError(w, err)
		return
	}

	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "invalid request body")
		return
	}

	result, err := s.auth.Signup(r.Context(), req.Handle, req.Email, req.Password, req.DisplayName)
	if err != nil {
		translateDomainError(w, err)
		return
	}
	httputil.WriteCreated(w, map[string]any{
		"user":  result.User,
		"token": result.Token,
	})
}

type loginRequest struct {
	Handle   string `json:"handle"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	limitBody(w, r)
	if err := s.auth.CheckLoginRate(r.Context(), clientIP(r)); err != nil {
		translateDomainError(w, err)
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "invalid request body")
		return
	}

	result, err := s.auth.Login(r.Context(), req.Handle, req.Password)
	if err != nil {
		translateDomainError(w, err)
		return
	}
	httputil.WriteOK(w, map[string]any{
		"user":  result.User,
		"token": result.Token,
	})
}

// handleRefresh mints a fresh token for the caller's already-valid bearer
// token, extending its session without requiring a password (spec §6).
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
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
	fresh, err := s.auth.MintToken(claims.Sub, claims.Email, claims.Handle)
	if err != nil {
		httputil.WriteInternalError(w, "failed to mint token")
		return
	}
	httputil.WriteOK(w, map[string]any{"token": fresh})
}

// handleLogout is a no-op acknowledgement: sessions are client-local bearer
// tokens with no server-side blocklist (spec §4.10), so there is nothing to
// revoke server-side. The client simply discards the token.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	httputil.WriteOK(w, map[string]string{"status": "logged out"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())
	user, err := s.users.ToUser(r.Context(), userID)
	if err != nil {
		translateDomainError(w, err)
		return
	}
	httputil.WriteOK(w, user)
}

type resetRequestRequest struct {
	Handle string `json:"handle"`
	Email  string `json:"email"`
}

func (s *Server) handleResetRequest(w http.ResponseWriter, r *http.Request) {
	limitBody(w, r)
	var req resetRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := s.auth.RequestReset(r.Context(), req.Handle, req.Email); err != nil {
		httputil.WriteInternalError(w, "failed to process reset request")
		return
	}
	httputil.WriteOK(w, map[string]string{"status": "if the account exists, a reset token has been issued"})
}

type resetConfirmRequest struct {
	Handle      string `json:"handle"`
	Email       string `json:"email"`
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

func (s *Server) handleResetConfirm(w http.ResponseWriter, r *http.Request) {
	limitBody(w, r)
	var req resetConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := s.auth.ConfirmReset(r.Context(), req.Handle, req.Email, req.Token, req.NewPassword); err != nil {
		translateDomainError(w, err)
		return
	}
	httputil.WriteOK(w, map[string]string{"status": "password updated"})
}
