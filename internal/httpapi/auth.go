package httpapi

import (
	"net/http"
	"strings"
)

// requireSession guards the staff/admin endpoints behind the shared-secret
// session issued by the admin guard.
func (h *Handler) requireSession(w http.ResponseWriter, r *http.Request) bool {
	token := sessionTokenFromRequest(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing session")
		return false
	}
	if !h.guard.Validate(token) {
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid or expired session")
		return false
	}
	return true
}

func sessionTokenFromRequest(r *http.Request) string {
	if token := bearerToken(r.Header.Get("Authorization")); token != "" {
		return token
	}
	return strings.TrimSpace(r.Header.Get("X-Session-ID"))
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.Fields(header)
	if len(parts) != 2 {
		return ""
	}
	if strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return parts[1]
}
