package response

import (
	"time"

	"github.com/mcoot/lobbysync/internal/model"
	"github.com/mcoot/lobbysync/internal/services/auth"
)

// Identity is returned when a client is issued or echoes its identity
type Identity struct {
	Identity string `json:"identity"`
	Token    string `json:"token,omitempty"`
}

// IdentityFromSession converts an auth session, including its token
func IdentityFromSession(s *auth.Session) Identity {
	return Identity{
		Identity: string(s.Identity),
		Token:    s.Token,
	}
}

// Lobby is the lobby row as seen by clients
type Lobby struct {
	Code      string    `json:"code"`
	Red       *string   `json:"red"`
	Blue      *string   `json:"blue"`
	RedCount  uint32    `json:"red_count"`
	BlueCount uint32    `json:"blue_count"`
	Created   time.Time `json:"created"`
	Version   uint64    `json:"version"`
}

// LobbyFromModel converts model.Lobby
func LobbyFromModel(l *model.Lobby) Lobby {
	return Lobby{
		Code:      string(l.Code),
		Red:       identityPtr(l.Red),
		Blue:      identityPtr(l.Blue),
		RedCount:  l.RedCount,
		BlueCount: l.BlueCount,
		Created:   l.Created,
		Version:   l.Version,
	}
}

// LobbiesFromModel converts a lobby table listing
func LobbiesFromModel(ls []*model.Lobby) []Lobby {
	out := make([]Lobby, len(ls))
	for i, l := range ls {
		out[i] = LobbyFromModel(l)
	}
	return out
}

// User is the roster row as seen by clients
type User struct {
	Identity string  `json:"identity"`
	Name     *string `json:"name"`
	Online   bool    `json:"online"`
	Version  uint64  `json:"version"`
}

// UserFromModel converts model.User
func UserFromModel(u *model.User) User {
	var name *string
	if u.Name != nil {
		n := *u.Name
		name = &n
	}
	return User{
		Identity: string(u.Identity),
		Name:     name,
		Online:   u.Online,
		Version:  u.Version,
	}
}

// UsersFromModel converts a user table listing
func UsersFromModel(us []*model.User) []User {
	out := make([]User, len(us))
	for i, u := range us {
		out[i] = UserFromModel(u)
	}
	return out
}

// Health is the body of the health check
type Health struct {
	Status string `json:"status"`
}

func identityPtr(id *model.Identity) *string {
	if id == nil {
		return nil
	}
	s := string(*id)
	return &s
}
