package storage

import (
	"context"

	"github.com/mcoot/lobbysync/internal/model"
)

// LobbyMutation edits a freshly read lobby row in place.
// Returning an error aborts the update with nothing written.
type LobbyMutation func(lobby *model.Lobby) error

// UserMutation receives the current user row (nil if absent) and returns
// the row to write, or nil to leave the table untouched.
type UserMutation func(existing *model.User) *model.User

// Storage defines the interface for data persistence.
//
// Every method is atomic with respect to the row it touches: mutations on
// the same key are serialized, mutations on different keys never conflict.
// Rows handed out are copies; callers may keep or modify them freely.
//
// Backends own the Version of lobby and user rows: an insert writes version
// 1 and every committed write advances it by one inside the same critical
// section, so versions order commits to a row.
type Storage interface {
	// Lobby table
	GetLobby(ctx context.Context, code model.LobbyCode) (*model.Lobby, error)
	ListLobbies(ctx context.Context) ([]*model.Lobby, error)
	// InsertLobby fails with model.ErrDuplicateCode if the code is taken.
	// On success lobby.Version is set to 1.
	InsertLobby(ctx context.Context, lobby *model.Lobby) error
	// UpdateLobby fails with model.ErrLobbyNotFound if the code is absent
	UpdateLobby(ctx context.Context, code model.LobbyCode, fn LobbyMutation) (*model.Lobby, error)

	// User table
	GetUser(ctx context.Context, id model.Identity) (*model.User, error)
	ListUsers(ctx context.Context) ([]*model.User, error)
	// UpsertUser returns the row as committed, or nil if nothing exists
	UpsertUser(ctx context.Context, id model.Identity, fn UserMutation) (*model.User, error)

	// Credential operations
	SaveCredential(ctx context.Context, cred *model.Credential) error
	GetCredential(ctx context.Context, id model.Identity) (*model.Credential, error)

	Close() error
}
