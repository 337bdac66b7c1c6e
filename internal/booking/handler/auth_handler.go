package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"carpool/pkg/auth"
	"carpool/pkg/logger"
)

// AuthHandler issues tokens for local development. The real deployment puts
// an identity service in front of this API; the endpoint exists so the
// booking flow can be exercised standalone.
type AuthHandler struct {
	jwtManager *auth.JWTManager
	logger     logger.Logger
}

func NewAuthHandler(jwtManager *auth.JWTManager, logger logger.Logger) *AuthHandler {
	return &AuthHandler{
		jwtManager: jwtManager,
		logger:     logger,
	}
}

type TokenRequest struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
}

type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
	UserID    string `json:"user_id"`
	Role      string `json:"role"`
}

// GenerateTestToken handles POST /auth/token
func (h *AuthHandler) GenerateTestToken(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id is required"})
		return
	}

	var role auth.Role
	switch req.Role {
	case "", "PASSENGER":
		role = auth.RolePassenger
	case "DRIVER":
		role = auth.RoleDriver
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "role must be PASSENGER or DRIVER"})
		return
	}

	token, err := h.jwtManager.GenerateToken(req.UserID, req.Name, role)
	if err != nil {
		h.logger.Error("generate_token_failed", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to generate token"})
		return
	}

	writeJSON(w, http.StatusOK, TokenResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(h.jwtManager.TokenDuration()).Format(time.RFC3339),
		UserID:    req.UserID,
		Role:      string(role),
	})
}
