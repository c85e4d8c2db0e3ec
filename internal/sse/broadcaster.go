package sse

import (
	"encoding/json"
	"log/slog"

	"github.com/mcoot/lobbysync/internal/api/response"
	"github.com/mcoot/lobbysync/internal/model"
)

// Event names on the connection stream
const (
	EventConnected   = "connected"
	EventLobbyUpdate = "lobby-update"
	EventUserUpdate  = "user-update"
)

// Publisher receives every committed row change
type Publisher interface {
	PublishLobby(lobby *model.Lobby)
	PublishUser(user *model.User)
}

// Broadcaster publishes row changes onto a Hub as JSON events.
// Rows may be published in any order; the hub drops stale versions.
type Broadcaster struct {
	hub    *Hub
	logger *slog.Logger
}

var _ Publisher = (*Broadcaster)(nil)

// NewBroadcaster creates a new Broadcaster
func NewBroadcaster(hub *Hub, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		hub:    hub,
		logger: logger.With(slog.String("component", "sse-broadcaster")),
	}
}

// PublishLobby sends the lobby row to clients watching it
func (b *Broadcaster) PublishLobby(lobby *model.Lobby) {
	frame, err := LobbyFrame(lobby)
	if err != nil {
		b.logger.Error("sse failed to encode lobby",
			slog.String("lobby", string(lobby.Code)),
			slog.Any("error", err))
		return
	}
	b.hub.BroadcastFrame(lobby.Code, frame)
}

// PublishUser sends the user row to every client
func (b *Broadcaster) PublishUser(user *model.User) {
	frame, err := UserFrame(user)
	if err != nil {
		b.logger.Error("sse failed to encode user",
			slog.String("identity", string(user.Identity)),
			slog.Any("error", err))
		return
	}
	b.hub.BroadcastFrame("", frame)
}

// LobbyFrame formats a lobby row as a lobby-update frame
func LobbyFrame(lobby *model.Lobby) (Frame, error) {
	data, err := json.Marshal(response.LobbyFromModel(lobby))
	if err != nil {
		return Frame{}, err
	}
	return Frame{
		row:     "lobby:" + string(lobby.Code),
		version: lobby.Version,
		data:    formatSSEMessage(EventLobbyUpdate, string(data)),
	}, nil
}

// UserFrame formats a user row as a user-update frame
func UserFrame(user *model.User) (Frame, error) {
	data, err := json.Marshal(response.UserFromModel(user))
	if err != nil {
		return Frame{}, err
	}
	return Frame{
		row:     "user:" + string(user.Identity),
		version: user.Version,
		data:    formatSSEMessage(EventUserUpdate, string(data)),
	}, nil
}
