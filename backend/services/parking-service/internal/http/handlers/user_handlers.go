package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"parkcard/backend/services/parking-service/internal/service"
)

// UserHandlers serves /admin/users.
type UserHandlers struct {
	users  *service.UserService
	logger *zap.Logger
}

// NewUserHandlers returns handler struct.
func NewUserHandlers(users *service.UserService, logger *zap.Logger) *UserHandlers {
	return &UserHandlers{users: users, logger: logger}
}

type createUserRequest struct {
	UserID   string `json:"user_id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// Create handles POST /admin/users.
func (h *UserHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	user, err := h.users.CreateUser(r.Context(), service.CreateUserInput{
		UserID:   req.UserID,
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusCreated, user)
}

// List handles GET /admin/users.
func (h *UserHandlers) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListUsers(r.Context())
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]interface{}{"count": len(users), "users": users})
}

// Get handles GET /admin/users/{user_id}.
func (h *UserHandlers) Get(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetUser(r.Context(), chi.URLParam(r, "user_id"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, user)
}

// Delete handles DELETE /admin/users/{user_id}.
func (h *UserHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	if err := h.users.DeleteUser(r.Context(), userID); err != nil {
		respondError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]string{"user_id": userID})
}
