package handlers

import (
	"net/http"

	"github.com/ztlan/warden/internal/adapters/web/middleware"
	"github.com/ztlan/warden/internal/core/domain"
	"github.com/ztlan/warden/internal/core/services/auth"
)

// AuthHandler serves operator login and logout.
type AuthHandler struct {
	Auth *auth.Service
}

func NewAuthHandler(svc *auth.Service) *AuthHandler {
	return &AuthHandler{Auth: svc}
}

func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var creds domain.Credentials
	if err := decodeBody(r, &creds); err != nil {
		writeError(w, err)
		return
	}
	token, err := h.Auth.Login(r.Context(), creds)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"status":  "error",
			"message": "invalid credentials",
		})
		return
	}
	writeSuccess(w, map[string]string{"token": token})
}

func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("X-Auth-Token")
	h.Auth.Logout(r.Context(), token)
	writeMessage(w, "logged out")
}

func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value(middleware.UserContextKey).(*domain.User)
	if !ok || user == nil {
		writeSuccess(w, map[string]any{"authenticated": false})
		return
	}
	writeSuccess(w, map[string]any{
		"authenticated": true,
		"username":      user.Username,
		"role":          user.Role,
	})
}
