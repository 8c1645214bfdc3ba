package handler

import (
	"net/http"

	"github.com/aditya/rideshare/internal/service"
	"github.com/aditya/rideshare/pkg/utils"
	"github.com/go-chi/chi/v5"
)

// UserHandler serves read-only profiles. Registration lives elsewhere.
type UserHandler struct {
	users service.UserService
}

func NewUserHandler(users service.UserService) *UserHandler {
	return &UserHandler{users: users}
}

func (h *UserHandler) RegisterRoutes(r chi.Router) {
	r.Get("/users/me", h.GetMe)
	r.Get("/users/{id}", h.GetUser)
}

// GET /v1/users/me
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	h.writeUser(w, r, userID)
}

// GET /v1/users/{id}
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	if _, ok := caller(w, r); !ok {
		return
	}

	id := chi.URLParam(r, "id")
	if !utils.IsValidUUID(id) {
		utils.NotFound(w, "user")
		return
	}
	h.writeUser(w, r, id)
}

func (h *UserHandler) writeUser(w http.ResponseWriter, r *http.Request, id string) {
	user, err := h.users.GetUser(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	utils.Success(w, http.StatusOK, user.ToResponse())
}
