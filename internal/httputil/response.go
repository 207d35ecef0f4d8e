// Package httputil holds the HTTP envelope helpers shared by every handler
// in internal/httpapi.
package httputil

import (
	"encoding/json"
	"net/http"
)

// Envelope is the canonical response shape: {success, data?, error?}.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// WriteJSON writes an arbitrary JSON body with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; nothing left to do but give up.
			return
		}
	}
}

// WriteData writes {success:true, data} with status.
func WriteData(w http.ResponseWriter, status int, data interface{}) {
	WriteJSON(w, status, Envelope{Success: true, Data: data})
}

// WriteOK writes {success:true, data} with 200.
func WriteOK(w http.ResponseWriter, data interface{}) {
	WriteData(w, http.StatusOK, data)
}

// WriteCreated writes {success:true, data} with 201.
func WriteCreated(w http.ResponseWriter, data interface{}) {
	WriteData(w, http.StatusCreated, data)
}

// WriteErr writes {success:false, error:message} with status.
func WriteErr(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, Envelope{Success: false, Error: message})
}

func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteErr(w, http.StatusBadRequest, message)
}

func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteErr(w, http.StatusUnauthorized, message)
}

func WriteForbidden(w http.ResponseWriter, message string) {
	WriteErr(w, http.StatusForbidden, message)
}

func WriteNotFound(w http.ResponseWriter, message string) {
	WriteErr(w, http.StatusNotFound, message)
}

func WriteConflict(w http.ResponseWriter, message string) {
	WriteErr(w, http.StatusConflict, message)
}

func WritePayloadTooLarge(w http.ResponseWriter, message string) {
	WriteErr(w, http.StatusRequestEntityTooLarge, message)
}

func WriteRateLimited(w http.ResponseWriter, message string) {
	WriteErr(w, http.StatusTooManyRequests, message)
}

func WriteServiceUnavailable(w http.ResponseWriter, message string) {
	WriteErr(w, http.StatusServiceUnavailable, message)
}

func WriteInternalError(w http.ResponseWriter, message string) {
	WriteErr(w, http.StatusInternalServerError, message)
}
