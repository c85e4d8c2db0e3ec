package model

import "errors"

// Common errors used across the application
var (
	// Lobby rejections
	ErrInvalidCode   = errors.New("invalid lobby code")
	ErrDuplicateCode = errors.New("lobby code already exists")
	ErrLobbyNotFound = errors.New("lobby not found")
	ErrLobbyFull     = errors.New("lobby is full")
	ErrNotAMember    = errors.New("you are not a member of this lobby")

	// Roster errors
	ErrUserNotFound = errors.New("user not found")

	// Identity errors
	ErrCredentialNotFound = errors.New("credential not found")
)
