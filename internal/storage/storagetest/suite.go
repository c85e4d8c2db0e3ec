// Package storagetest holds the behaviour every storage backend must share.
package storagetest

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/lobbysync/internal/model"
	"github.com/mcoot/lobbysync/internal/storage"
)

// Suite runs the shared storage contract against a backend.
// NewStorage is called once per test with that test's T.
type Suite struct {
	suite.Suite
	NewStorage func(t *testing.T) storage.Storage

	Storage storage.Storage
	Ctx     context.Context
}

// sub-millisecond precision must survive every backend
var created = time.Date(2024, 1, 1, 12, 0, 0, 123456789, time.UTC)

func (s *Suite) SetupTest() {
	s.Storage = s.NewStorage(s.T())
	s.Ctx = context.Background()
}

func (s *Suite) TearDownTest() {
	if s.Storage != nil {
		_ = s.Storage.Close()
	}
}

func ident(v string) *model.Identity {
	id := model.Identity(v)
	return &id
}

func (s *Suite) insertLobby(code model.LobbyCode, red string) {
	err := s.Storage.InsertLobby(s.Ctx, &model.Lobby{Code: code, Red: ident(red), Created: created})
	s.Require().NoError(err)
}

// Lobby tests

func (s *Suite) TestInsertAndGetLobby() {
	s.insertLobby("GAME1", "alice")

	lobby, err := s.Storage.GetLobby(s.Ctx, "GAME1")
	s.Require().NoError(err)
	s.Equal(model.LobbyCode("GAME1"), lobby.Code)
	s.Require().NotNil(lobby.Red)
	s.Equal(model.Identity("alice"), *lobby.Red)
	s.Nil(lobby.Blue)
	s.Zero(lobby.RedCount)
	s.Zero(lobby.BlueCount)
	s.True(created.Equal(lobby.Created), "created timestamp should round-trip, got %s", lobby.Created)
}

func (s *Suite) TestGetLobbyNotFound() {
	_, err := s.Storage.GetLobby(s.Ctx, "NOPE")
	s.ErrorIs(err, model.ErrLobbyNotFound)
}

func (s *Suite) TestInsertLobbyDuplicate() {
	s.insertLobby("GAME1", "alice")

	err := s.Storage.InsertLobby(s.Ctx, &model.Lobby{Code: "GAME1", Red: ident("bob"), Created: created})
	s.ErrorIs(err, model.ErrDuplicateCode)

	lobby, err := s.Storage.GetLobby(s.Ctx, "GAME1")
	s.Require().NoError(err)
	s.Equal(model.Identity("alice"), *lobby.Red)
}

func (s *Suite) TestListLobbies() {
	lobbies, err := s.Storage.ListLobbies(s.Ctx)
	s.Require().NoError(err)
	s.Empty(lobbies)

	s.insertLobby("BBBB", "alice")
	s.insertLobby("AAAA", "bob")

	lobbies, err = s.Storage.ListLobbies(s.Ctx)
	s.Require().NoError(err)
	s.Require().Len(lobbies, 2)
	s.Equal(model.LobbyCode("AAAA"), lobbies[0].Code)
	s.Equal(model.LobbyCode("BBBB"), lobbies[1].Code)
}

func (s *Suite) TestUpdateLobby() {
	s.insertLobby("GAME1", "alice")

	updated, err := s.Storage.UpdateLobby(s.Ctx, "GAME1", func(l *model.Lobby) error {
		l.Blue = ident("bob")
		l.BlueCount = 3
		return nil
	})
	s.Require().NoError(err)
	s.Equal(model.Identity("bob"), *updated.Blue)

	lobby, err := s.Storage.GetLobby(s.Ctx, "GAME1")
	s.Require().NoError(err)
	s.Equal(model.Identity("alice"), *lobby.Red)
	s.Equal(model.Identity("bob"), *lobby.Blue)
	s.Equal(uint32(3), lobby.BlueCount)
}

func (s *Suite) TestUpdateLobbyNotFound() {
	called := false
	_, err := s.Storage.UpdateLobby(s.Ctx, "NOPE", func(l *model.Lobby) error {
		called = true
		return nil
	})
	s.ErrorIs(err, model.ErrLobbyNotFound)
	s.False(called)
}

func (s *Suite) TestUpdateLobbyAbortWritesNothing() {
	s.insertLobby("GAME1", "alice")
	abort := errors.New("abort")

	_, err := s.Storage.UpdateLobby(s.Ctx, "GAME1", func(l *model.Lobby) error {
		l.RedCount = 99
		return abort
	})
	s.ErrorIs(err, abort)

	lobby, err := s.Storage.GetLobby(s.Ctx, "GAME1")
	s.Require().NoError(err)
	s.Zero(lobby.RedCount)
}

func (s *Suite) TestLobbyCounterMaximumRoundTrips() {
	s.insertLobby("GAME1", "alice")

	_, err := s.Storage.UpdateLobby(s.Ctx, "GAME1", func(l *model.Lobby) error {
		l.RedCount = math.MaxUint32
		return nil
	})
	s.Require().NoError(err)

	lobby, err := s.Storage.GetLobby(s.Ctx, "GAME1")
	s.Require().NoError(err)
	s.Equal(uint32(math.MaxUint32), lobby.RedCount)
}

func (s *Suite) TestConcurrentUpdatesAreSerialized() {
	s.insertLobby("GAME1", "alice")

	const workers, perWorker = 8, 5
	var wg sync.WaitGroup
	errs := make(chan error, workers*perWorker)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				_, err := s.Storage.UpdateLobby(s.Ctx, "GAME1", func(l *model.Lobby) error {
					l.Advance(model.SlotRed)
					return nil
				})
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		s.Require().NoError(err)
	}

	lobby, err := s.Storage.GetLobby(s.Ctx, "GAME1")
	s.Require().NoError(err)
	s.Equal(uint32(workers*perWorker), lobby.RedCount)
}

func (s *Suite) TestLobbyVersionAdvancesPerCommit() {
	lobby := &model.Lobby{Code: "GAME1", Red: ident("alice"), Created: created}
	s.Require().NoError(s.Storage.InsertLobby(s.Ctx, lobby))
	s.Equal(uint64(1), lobby.Version)

	updated, err := s.Storage.UpdateLobby(s.Ctx, "GAME1", func(l *model.Lobby) error {
		l.Version = 40
		l.Advance(model.SlotRed)
		return nil
	})
	s.Require().NoError(err)
	s.Equal(uint64(2), updated.Version)

	_, err = s.Storage.UpdateLobby(s.Ctx, "GAME1", func(l *model.Lobby) error {
		return model.ErrNotAMember
	})
	s.ErrorIs(err, model.ErrNotAMember)

	stored, err := s.Storage.GetLobby(s.Ctx, "GAME1")
	s.Require().NoError(err)
	s.Equal(uint64(2), stored.Version)
}

// User tests

func (s *Suite) TestUserVersionAdvancesPerCommit() {
	user, err := s.Storage.UpsertUser(s.Ctx, "alice", func(*model.User) *model.User {
		return &model.User{Online: true}
	})
	s.Require().NoError(err)
	s.Equal(uint64(1), user.Version)

	user, err = s.Storage.UpsertUser(s.Ctx, "alice", func(existing *model.User) *model.User {
		existing.Online = false
		return existing
	})
	s.Require().NoError(err)
	s.Equal(uint64(2), user.Version)

	user, err = s.Storage.UpsertUser(s.Ctx, "alice", func(*model.User) *model.User { return nil })
	s.Require().NoError(err)
	s.Equal(uint64(2), user.Version)

	stored, err := s.Storage.GetUser(s.Ctx, "alice")
	s.Require().NoError(err)
	s.Equal(uint64(2), stored.Version)
}

func (s *Suite) TestUpsertUserInsertsWhenAbsent() {
	user, err := s.Storage.UpsertUser(s.Ctx, "alice", func(existing *model.User) *model.User {
		s.Nil(existing)
		return &model.User{Online: true}
	})
	s.Require().NoError(err)
	s.Equal(model.Identity("alice"), user.Identity)
	s.True(user.Online)

	stored, err := s.Storage.GetUser(s.Ctx, "alice")
	s.Require().NoError(err)
	s.True(stored.Online)
	s.Nil(stored.Name)
}

func (s *Suite) TestUpsertUserUpdatesExisting() {
	_, err := s.Storage.UpsertUser(s.Ctx, "alice", func(*model.User) *model.User {
		return &model.User{Online: true}
	})
	s.Require().NoError(err)

	user, err := s.Storage.UpsertUser(s.Ctx, "alice", func(existing *model.User) *model.User {
		s.Require().NotNil(existing)
		existing.Online = false
		return existing
	})
	s.Require().NoError(err)
	s.False(user.Online)

	stored, err := s.Storage.GetUser(s.Ctx, "alice")
	s.Require().NoError(err)
	s.False(stored.Online)
}

func (s *Suite) TestUpsertUserSkipWritesNothing() {
	user, err := s.Storage.UpsertUser(s.Ctx, "ghost", func(*model.User) *model.User {
		return nil
	})
	s.Require().NoError(err)
	s.Nil(user)

	_, err = s.Storage.GetUser(s.Ctx, "ghost")
	s.ErrorIs(err, model.ErrUserNotFound)
}

func (s *Suite) TestUserNamePreserved() {
	name := "Alice"
	_, err := s.Storage.UpsertUser(s.Ctx, "alice", func(*model.User) *model.User {
		return &model.User{Name: &name, Online: true}
	})
	s.Require().NoError(err)

	stored, err := s.Storage.GetUser(s.Ctx, "alice")
	s.Require().NoError(err)
	s.Require().NotNil(stored.Name)
	s.Equal("Alice", *stored.Name)
}

func (s *Suite) TestListUsers() {
	for _, id := range []model.Identity{"bob", "alice"} {
		_, err := s.Storage.UpsertUser(s.Ctx, id, func(*model.User) *model.User {
			return &model.User{Online: true}
		})
		s.Require().NoError(err)
	}

	users, err := s.Storage.ListUsers(s.Ctx)
	s.Require().NoError(err)
	s.Require().Len(users, 2)
	s.Equal(model.Identity("alice"), users[0].Identity)
	s.Equal(model.Identity("bob"), users[1].Identity)
}

// Credential tests

func (s *Suite) TestSaveAndGetCredential() {
	cred := &model.Credential{Identity: "alice", SecretHash: "hash123", CreatedAt: created}
	s.Require().NoError(s.Storage.SaveCredential(s.Ctx, cred))

	stored, err := s.Storage.GetCredential(s.Ctx, "alice")
	s.Require().NoError(err)
	s.Equal("hash123", stored.SecretHash)
	s.True(created.Equal(stored.CreatedAt))
}

func (s *Suite) TestGetCredentialNotFound() {
	_, err := s.Storage.GetCredential(s.Ctx, "nobody")
	s.ErrorIs(err, model.ErrCredentialNotFound)
}
