package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/mcoot/lobbysync/internal/model"
	"github.com/mcoot/lobbysync/internal/storage"
)

// Storage is an in-memory implementation of the storage interface
type Storage struct {
	mu sync.RWMutex

	lobbies     map[model.LobbyCode]*model.Lobby
	users       map[model.Identity]*model.User
	credentials map[model.Identity]*model.Credential
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		lobbies:     make(map[model.LobbyCode]*model.Lobby),
		users:       make(map[model.Identity]*model.User),
		credentials: make(map[model.Identity]*model.Credential),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Lobby operations

func (s *Storage) GetLobby(ctx context.Context, code model.LobbyCode) (*model.Lobby, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lobby, ok := s.lobbies[code]
	if !ok {
		return nil, model.ErrLobbyNotFound
	}
	return lobby.Clone(), nil
}

func (s *Storage) ListLobbies(ctx context.Context) ([]*model.Lobby, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lobbies := make([]*model.Lobby, 0, len(s.lobbies))
	for _, lobby := range s.lobbies {
		lobbies = append(lobbies, lobby.Clone())
	}
	sort.Slice(lobbies, func(i, j int) bool { return lobbies[i].Code < lobbies[j].Code })
	return lobbies, nil
}

func (s *Storage) InsertLobby(ctx context.Context, lobby *model.Lobby) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lobbies[lobby.Code]; ok {
		return model.ErrDuplicateCode
	}
	lobby.Version = 1
	s.lobbies[lobby.Code] = lobby.Clone()
	return nil
}

func (s *Storage) UpdateLobby(ctx context.Context, code model.LobbyCode, fn storage.LobbyMutation) (*model.Lobby, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.lobbies[code]
	if !ok {
		return nil, model.ErrLobbyNotFound
	}
	working := current.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	working.Version = current.Version + 1
	s.lobbies[code] = working
	return working.Clone(), nil
}

// User operations

func (s *Storage) GetUser(ctx context.Context, id model.Identity) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	return user.Clone(), nil
}

func (s *Storage) ListUsers(ctx context.Context) ([]*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]*model.User, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, user.Clone())
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Identity < users[j].Identity })
	return users, nil
}

func (s *Storage) UpsertUser(ctx context.Context, id model.Identity, fn storage.UserMutation) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var existing *model.User
	var version uint64
	if user, ok := s.users[id]; ok {
		existing = user.Clone()
		version = user.Version
	}
	next := fn(existing)
	if next == nil {
		return existing, nil
	}
	next = next.Clone()
	next.Identity = id
	next.Version = version + 1
	s.users[id] = next
	return next.Clone(), nil
}

// Credential operations

func (s *Storage) SaveCredential(ctx context.Context, cred *model.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *cred
	s.credentials[cred.Identity] = &c
	return nil
}

func (s *Storage) GetCredential(ctx context.Context, id model.Identity) (*model.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cred, ok := s.credentials[id]
	if !ok {
		return nil, model.ErrCredentialNotFound
	}
	c := *cred
	return &c, nil
}

// Close is a no-op for in-memory storage
func (s *Storage) Close() error {
	return nil
}
