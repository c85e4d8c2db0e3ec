package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/lobbysync/internal/api/response"
	"github.com/mcoot/lobbysync/internal/model"
	"github.com/mcoot/lobbysync/internal/services/roster"
)

// UserHandler exposes the roster table
type UserHandler struct {
	roster *roster.Service
}

func NewUserHandler(roster *roster.Service) *UserHandler {
	return &UserHandler{roster: roster}
}

// List handles GET /api/v1/users
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.roster.ListUsers(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.UsersFromModel(users))
}

// Get handles GET /api/v1/users/{identity}
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	u, err := h.roster.GetUser(r.Context(), model.Identity(mux.Vars(r)["identity"]))
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.UserFromModel(u))
}
