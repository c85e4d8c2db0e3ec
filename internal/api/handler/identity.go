package handler

import (
	"net/http"

	"github.com/mcoot/lobbysync/internal/api/middleware"
	"github.com/mcoot/lobbysync/internal/api/response"
	"github.com/mcoot/lobbysync/internal/services/auth"
)

// IdentityHandler issues identities and echoes the caller's
type IdentityHandler struct {
	authService *auth.Service
}

// NewIdentityHandler creates a new identity handler
func NewIdentityHandler(authService *auth.Service) *IdentityHandler {
	return &IdentityHandler{authService: authService}
}

// Issue handles POST /api/v1/identities
func (h *IdentityHandler) Issue(w http.ResponseWriter, r *http.Request) {
	session, err := h.authService.IssueIdentity(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, response.IdentityFromSession(session))
}

// Me handles GET /api/v1/identities/me
func (h *IdentityHandler) Me(w http.ResponseWriter, r *http.Request) {
	id := middleware.MustGetIdentity(r.Context())
	response.JSON(w, http.StatusOK, response.Identity{Identity: string(id)})
}
