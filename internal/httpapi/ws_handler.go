package httpapi

import (
	"log"
	"net/http"
)

// handleWebSocket authenticates the caller via the ?token= query parameter
// (a bearer token cannot be set as a header from a browser WebSocket client),
// upgrades the connection, and hands it to ConnCoord for the life of the
// session (spec §6).
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}
	claims, err := s.auth.VerifyToken(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	banned, err := s.auth.CheckBan(r.Context(), claims.Sub)
	if err != nil {
		http.Error(w, "ban check unavailable", http.StatusServiceUnavailable)
		return
	}
	if banned {
		http.Error(w, "account is banned", http.StatusForbidden)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WS] upgrade failed user=%d: %v", claims.Sub, err)
		return
	}

	if _, err := s.conns.Connect(r.Context(), claims.Sub, ws); err != nil {
		log.Printf("[WS] connect failed user=%d: %v", claims.Sub, err)
		ws.Close()
	}
}
