// Package handlers is the thin HTTP/websocket surface over the
// orchestration core. Handlers translate transport concerns; all
// conversation semantics live in the services they call.
package handlers

import (
	"net/http"
	"strings"

	"github.com/paideia-labs/paideia/internal/services"
)

type Handler struct {
	svc *services.Services
}

func NewHandler(svc *services.Services) *Handler {
	return &Handler{svc: svc}
}

// extractToken pulls a bearer token from the Authorization header, falling
// back to the token query parameter for websocket clients that cannot set
// headers.
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
		return ""
	}
	return r.URL.Query().Get("token")
}
