package controller

import (
	"encoding/json"
	"net/http"
	"strings"
)

const (
	tokenQueryParam      = "token"
	rejectedFieldsHeader = "X-Rejected-Fields"
)

type envelope map[string]any

func (c controller) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		c.logger.Warn("failed to write response", "error", err)
	}
}

func (c controller) writeError(w http.ResponseWriter, status int, message string) {
	c.writeJSON(w, status, envelope{"error": message})
}

// tokenFromRequest takes the control token from the query string, falling
// back to a bearer Authorization header.
func tokenFromRequest(r *http.Request) string {
	if token := r.URL.Query().Get(tokenQueryParam); token != "" {
		return token
	}

	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return ""
	}

	return strings.TrimSpace(token)
}
