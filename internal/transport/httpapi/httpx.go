package httpapi

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// Error codes used by the HTTP surface. Rule failures reuse the game's wire codes.
const (
	CodeBadRequest  = "E_BAD_REQUEST"
	CodeNotFound    = "E_NOT_FOUND"
	CodeForbidden   = "E_FORBIDDEN"
	CodeUnavailable = "E_UNAVAILABLE"
)

func NewRequestID() string { return "req_" + uuid.NewString() }

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func ReadJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 64*1024))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, map[string]any{
		"request_id": NewRequestID(),
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
