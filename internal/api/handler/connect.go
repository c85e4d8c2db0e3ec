package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/mcoot/lobbysync/internal/api/middleware"
	"github.com/mcoot/lobbysync/internal/model"
	"github.com/mcoot/lobbysync/internal/services/lobby"
	"github.com/mcoot/lobbysync/internal/services/roster"
	"github.com/mcoot/lobbysync/internal/sse"
)

// ConnectHandler serves the client connection stream. The stream's
// lifetime is the client's connection: opening it marks the caller online
// and closing it marks them offline.
type ConnectHandler struct {
	roster          *roster.Service
	lobbyController lobby.ControllerInterface
	hub             *sse.Hub
	publisher       sse.Publisher
	logger          *slog.Logger
}

// NewConnectHandler creates a new connect handler
func NewConnectHandler(roster *roster.Service, lobbyController lobby.ControllerInterface, hub *sse.Hub, publisher sse.Publisher, logger *slog.Logger) *ConnectHandler {
	return &ConnectHandler{
		roster:          roster,
		lobbyController: lobbyController,
		hub:             hub,
		publisher:       publisher,
		logger:          logger.With(slog.String("component", "connect")),
	}
}

// Connect handles GET /api/v1/connect[?lobby=CODE]
func (h *ConnectHandler) Connect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := middleware.MustGetIdentity(ctx)

	var filter model.LobbyCode
	if raw := r.URL.Query().Get("lobby"); raw != "" {
		code, err := model.ParseLobbyCode(raw)
		if err != nil {
			WriteError(w, err)
			return
		}
		if _, err := h.lobbyController.GetLobby(ctx, string(code)); err != nil {
			WriteError(w, err)
			return
		}
		filter = code
	}

	// the server's write timeout would otherwise cut the stream
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	// roster failures are logged by the roster service and never fail the connection
	if user, err := h.roster.HandleConnect(ctx, id); err == nil {
		h.publisher.PublishUser(user)
	}

	sse.ServeSSE(w, r, h.hub, sse.NewClient(id, filter), h.snapshot(ctx, filter))

	if user, err := h.roster.HandleDisconnect(context.WithoutCancel(ctx), id); err == nil && user != nil {
		h.publisher.PublishUser(user)
	}
}

// snapshot renders the current lobby rows (one when filtered) and users
func (h *ConnectHandler) snapshot(ctx context.Context, filter model.LobbyCode) []sse.Frame {
	var lobbies []*model.Lobby
	if filter != "" {
		if l, err := h.lobbyController.GetLobby(ctx, string(filter)); err == nil {
			lobbies = append(lobbies, l)
		}
	} else {
		all, err := h.lobbyController.ListLobbies(ctx)
		if err != nil {
			h.logger.Error("snapshot lobbies failed", slog.Any("error", err))
		}
		lobbies = all
	}

	users, err := h.roster.ListUsers(ctx)
	if err != nil {
		h.logger.Error("snapshot users failed", slog.Any("error", err))
	}

	frames := make([]sse.Frame, 0, len(lobbies)+len(users))
	for _, l := range lobbies {
		if frame, err := sse.LobbyFrame(l); err == nil {
			frames = append(frames, frame)
		}
	}
	for _, u := range users {
		if frame, err := sse.UserFrame(u); err == nil {
			frames = append(frames, frame)
		}
	}
	return frames
}
