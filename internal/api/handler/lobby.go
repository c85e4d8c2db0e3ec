package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/lobbysync/internal/api/middleware"
	"github.com/mcoot/lobbysync/internal/api/request"
	"github.com/mcoot/lobbysync/internal/api/response"
	"github.com/mcoot/lobbysync/internal/services/lobby"
	"github.com/mcoot/lobbysync/internal/sse"
)

// LobbyHandler handles lobby-related endpoints
type LobbyHandler struct {
	lobbyController lobby.ControllerInterface
	publisher       sse.Publisher
}

// NewLobbyHandler creates a new lobby handler
func NewLobbyHandler(lobbyController lobby.ControllerInterface, publisher sse.Publisher) *LobbyHandler {
	return &LobbyHandler{
		lobbyController: lobbyController,
		publisher:       publisher,
	}
}

// Create handles POST /api/v1/lobbies
func (h *LobbyHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller := middleware.MustGetIdentity(r.Context())

	var req request.CreateLobbyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	l, err := h.lobbyController.CreateLobby(r.Context(), caller, req.Code)
	if err != nil {
		WriteError(w, err)
		return
	}

	h.publisher.PublishLobby(l)
	response.JSON(w, http.StatusCreated, response.LobbyFromModel(l))
}

// List handles GET /api/v1/lobbies
func (h *LobbyHandler) List(w http.ResponseWriter, r *http.Request) {
	lobbies, err := h.lobbyController.ListLobbies(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.LobbiesFromModel(lobbies))
}

// Get handles GET /api/v1/lobbies/{code}
func (h *LobbyHandler) Get(w http.ResponseWriter, r *http.Request) {
	l, err := h.lobbyController.GetLobby(r.Context(), mux.Vars(r)["code"])
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.LobbyFromModel(l))
}

// Join handles POST /api/v1/lobbies/{code}/join
func (h *LobbyHandler) Join(w http.ResponseWriter, r *http.Request) {
	caller := middleware.MustGetIdentity(r.Context())

	l, err := h.lobbyController.JoinLobby(r.Context(), caller, mux.Vars(r)["code"])
	if err != nil {
		WriteError(w, err)
		return
	}

	h.publisher.PublishLobby(l)
	response.JSON(w, http.StatusOK, response.LobbyFromModel(l))
}

// Increment handles POST /api/v1/lobbies/{code}/increment
func (h *LobbyHandler) Increment(w http.ResponseWriter, r *http.Request) {
	caller := middleware.MustGetIdentity(r.Context())

	l, err := h.lobbyController.Increment(r.Context(), caller, mux.Vars(r)["code"])
	if err != nil {
		WriteError(w, err)
		return
	}

	h.publisher.PublishLobby(l)
	response.JSON(w, http.StatusOK, response.LobbyFromModel(l))
}
