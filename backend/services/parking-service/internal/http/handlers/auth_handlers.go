package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"parkcard/backend/services/parking-service/internal/service"
)

// AuthHandlers serves login endpoints.
type AuthHandlers struct {
	auth   *service.AuthService
	logger *zap.Logger
}

// NewAuthHandlers returns handler struct.
func NewAuthHandlers(auth *service.AuthService, logger *zap.Logger) *AuthHandlers {
	return &AuthHandlers{auth: auth, logger: logger}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles POST /auth/login.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	result, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, result)
}

// AdminLogin handles POST /auth/admin/login.
func (h *AuthHandlers) AdminLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	result, err := h.auth.AdminLogin(r.Context(), req.Email, req.Password)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, result)
}
