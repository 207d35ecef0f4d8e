package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"thewire/internal/httputil"
	"thewire/internal/model"
)

const maxUploadBytes = model.MaxVideoSizeBytes + 1<<20

func (s *Server) handleMediaUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		httputil.WritePayloadTooLarge(w, "upload too large")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.WriteBadRequest(w, "missing file field")
		return
	}
	defer file.Close()

	result, err := s.media.UploadPostMedia(r.Context(), file, header)
	if err != nil {
		writeMediaError(w, err)
		return
	}
	httputil.WriteCreated(w, result)
}

func (s *Server) handleUploadAvatar(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())
	r.Body = http.MaxBytesReader(w, r.Body, model.MaxImageSizeBytes+1<<16)
	if err := r.ParseMultipartForm(model.MaxImageSizeBytes + 1<<16); err != nil {
		httputil.WritePayloadTooLarge(w, "upload too large")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.WriteBadRequest(w, "missing file field")
		return
	}
	defer file.Close()

	result, err := s.media.UploadAvatar(r.Context(), file, header)
	if err != nil {
		writeMediaError(w, err)
		return
	}
	url := result.URL
	profile, err := s.users.UpdateProfile(r.Context(), userID, model.ProfilePatch{AvatarURL: &url})
	if err != nil {
		translateDomainError(w, err)
		return
	}
	httputil.WriteOK(w, profile)
}

func (s *Server) handleUploadBanner(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())
	r.Body = http.MaxBytesReader(w, r.Body, model.MaxImageSizeBytes+1<<16)
	if err := r.ParseMultipartForm(model.MaxImageSizeBytes + 1<<16); err != nil {
		httputil.WritePayloadTooLarge(w, "upload too large")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.WriteBadRequest(w, "missing file field")
		return
	}
	defer file.Close()

	result, err := s.media.UploadBanner(r.Context(), file, header)
	if err != nil {
		writeMediaError(w, err)
		return
	}
	url := result.URL
	profile, err := s.users.UpdateProfile(r.Context(), userID, model.ProfilePatch{BannerURL: &url})
	if err != nil {
		translateDomainError(w, err)
		return
	}
	httputil.WriteOK(w, profile)
}

// handleMediaRedirect serves GET /media/:key by redirecting to the
// R2-backed public URL; the object store never proxies bytes through the
// API process.
func (s *Server) handleMediaRedirect(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, s.cfg.R2PublicURL+"/"+chi.URLParam(r, "key"), http.StatusFound)
}

func writeMediaError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrFileTooLarge):
		httputil.WritePayloadTooLarge(w, err.Error())
	case errors.Is(err, model.ErrInvalidMediaType), errors.Is(err, model.ErrMediaMismatch):
		httputil.WriteBadRequest(w, err.Error())
	default:
		httputil.WriteInternalError(w, "upload failed")
	}
}
