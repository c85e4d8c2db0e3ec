package redis

import (
	"fmt"

	"github.com/mcoot/lobbysync/internal/model"
)

// Key prefix for all lobbysync data
const keyPrefix = "lobbysync"

// lobbyKey returns the Redis key for a Lobby
func lobbyKey(code model.LobbyCode) string {
	return fmt.Sprintf("%s:lobby:%s", keyPrefix, code)
}

// lobbiesIndexKey returns the Redis key for the SET of all lobby keys
func lobbiesIndexKey() string {
	return fmt.Sprintf("%s:idx:lobbies", keyPrefix)
}

// userKey returns the Redis key for a User
func userKey(id model.Identity) string {
	return fmt.Sprintf("%s:user:%s", keyPrefix, id)
}

// usersIndexKey returns the Redis key for the SET of all user keys
func usersIndexKey() string {
	return fmt.Sprintf("%s:idx:users", keyPrefix)
}

// credentialKey returns the Redis key for an identity's Credential
func credentialKey(id model.Identity) string {
	return fmt.Sprintf("%s:credential:%s", keyPrefix, id)
}
