package lobby

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/lobbysync/internal/dependencies/mocks"
	"github.com/mcoot/lobbysync/internal/model"
	"github.com/mcoot/lobbysync/internal/storage/memory"
	"github.com/mcoot/lobbysync/internal/testutil"
)

type ControllerSuite struct {
	suite.Suite
	storage    *memory.Storage
	clock      *mocks.MockClock
	controller *Controller
	ctx        context.Context
}

func TestControllerSuite(t *testing.T) {
	suite.Run(t, new(ControllerSuite))
}

func (s *ControllerSuite) SetupTest() {
	s.storage = memory.New()
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.controller = NewController(s.storage, s.clock, testutil.NopLogger())
	s.ctx = context.Background()
}

const (
	alice = model.Identity("alice")
	bob   = model.Identity("bob")
	carol = model.Identity("carol")
)

func (s *ControllerSuite) createLobby(code string) *model.Lobby {
	lobby, err := s.controller.CreateLobby(s.ctx, alice, code)
	s.Require().NoError(err)
	return lobby
}

func (s *ControllerSuite) stored(code model.LobbyCode) *model.Lobby {
	lobby, err := s.storage.GetLobby(s.ctx, code)
	s.Require().NoError(err)
	return lobby
}

// CreateLobby tests

func (s *ControllerSuite) TestCreateLobbySeatsCreatorAsRed() {
	lobby := s.createLobby("game1")

	s.Equal(model.LobbyCode("GAME1"), lobby.Code)
	s.Require().NotNil(lobby.Red)
	s.Equal(alice, *lobby.Red)
	s.Nil(lobby.Blue)
	s.Zero(lobby.RedCount)
	s.Zero(lobby.BlueCount)
	s.Equal(s.clock.Now(), lobby.Created)
}

func (s *ControllerSuite) TestCreateLobbyIsPersistedUnderUppercaseCode() {
	s.createLobby("abcd1234")

	stored := s.stored("ABCD1234")
	s.Equal(alice, *stored.Red)
	s.Nil(stored.Blue)
	s.Zero(stored.RedCount)
	s.Zero(stored.BlueCount)
}

func (s *ControllerSuite) TestCreateLobbyAcceptsEveryValidLength() {
	for n := model.MinLobbyCodeLength; n <= model.MaxLobbyCodeLength; n++ {
		code := "abcdefghijkl"[:n]
		lobby, err := s.controller.CreateLobby(s.ctx, alice, code)
		s.Require().NoError(err, "length %d", n)
		s.Len(string(lobby.Code), n)
	}
}

func (s *ControllerSuite) TestCreateLobbyRejectsInvalidCodes() {
	for _, code := range []string{"ab", "TOOLONGCODE12", "AB!D", "", "AB D"} {
		_, err := s.controller.CreateLobby(s.ctx, alice, code)
		s.ErrorIs(err, model.ErrInvalidCode, "code %q", code)
	}

	lobbies, err := s.storage.ListLobbies(s.ctx)
	s.Require().NoError(err)
	s.Empty(lobbies)
}

func (s *ControllerSuite) TestCreateLobbyRejectsDuplicateCaseInsensitively() {
	s.createLobby("game1")

	_, err := s.controller.CreateLobby(s.ctx, bob, "GAME1")
	s.ErrorIs(err, model.ErrDuplicateCode)

	s.Equal(alice, *s.stored("GAME1").Red)
}

func (s *ControllerSuite) TestConcurrentCreatesHaveOneWinner() {
	const callers = 10
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(id model.Identity) {
			defer wg.Done()
			_, err := s.controller.CreateLobby(s.ctx, id, "RACE")
			errs <- err
		}(model.Identity(string(rune('a' + i))))
	}
	wg.Wait()
	close(errs)

	wins := 0
	for err := range errs {
		if err == nil {
			wins++
			continue
		}
		s.ErrorIs(err, model.ErrDuplicateCode)
	}
	s.Equal(1, wins)
}

// JoinLobby tests

func (s *ControllerSuite) TestJoinLobbyByCreatorIsNoOp() {
	s.createLobby("GAME1")

	lobby, err := s.controller.JoinLobby(s.ctx, alice, "game1")
	s.Require().NoError(err)

	s.Equal(alice, *lobby.Red)
	s.Nil(lobby.Blue)
	s.Nil(s.stored("GAME1").Blue)
}

func (s *ControllerSuite) TestJoinLobbyFillsBlue() {
	s.createLobby("GAME1")

	lobby, err := s.controller.JoinLobby(s.ctx, bob, "GAME1")
	s.Require().NoError(err)

	s.Require().NotNil(lobby.Blue)
	s.Equal(bob, *lobby.Blue)
	s.Equal(alice, *lobby.Red)
}

func (s *ControllerSuite) TestJoinLobbyRejoinByBlueIsNoOp() {
	s.createLobby("GAME1")
	_, err := s.controller.JoinLobby(s.ctx, bob, "GAME1")
	s.Require().NoError(err)

	lobby, err := s.controller.JoinLobby(s.ctx, bob, "GAME1")
	s.Require().NoError(err)
	s.Equal(alice, *lobby.Red)
	s.Equal(bob, *lobby.Blue)
}

func (s *ControllerSuite) TestJoinLobbyFullRejectsThirdIdentity() {
	s.createLobby("GAME1")
	_, err := s.controller.JoinLobby(s.ctx, bob, "GAME1")
	s.Require().NoError(err)

	_, err = s.controller.JoinLobby(s.ctx, carol, "GAME1")
	s.ErrorIs(err, model.ErrLobbyFull)

	stored := s.stored("GAME1")
	s.Equal(alice, *stored.Red)
	s.Equal(bob, *stored.Blue)
}

func (s *ControllerSuite) TestJoinLobbyPrefersEmptyRed() {
	b := bob
	s.Require().NoError(s.storage.InsertLobby(s.ctx, &model.Lobby{Code: "HALF", Blue: &b}))

	lobby, err := s.controller.JoinLobby(s.ctx, carol, "HALF")
	s.Require().NoError(err)
	s.Equal(carol, *lobby.Red)
	s.Equal(bob, *lobby.Blue)
}

func (s *ControllerSuite) TestJoinLobbyNotFound() {
	_, err := s.controller.JoinLobby(s.ctx, bob, "NOPE")
	s.ErrorIs(err, model.ErrLobbyNotFound)
}

func (s *ControllerSuite) TestJoinLobbyValidatesBeforeLookup() {
	_, err := s.controller.JoinLobby(s.ctx, bob, "a!")
	s.ErrorIs(err, model.ErrInvalidCode)
}

func (s *ControllerSuite) TestConcurrentJoinsSeatExactlyOne() {
	s.createLobby("GAME1")

	const joiners = 10
	var wg sync.WaitGroup
	errs := make(chan error, joiners)
	for i := 0; i < joiners; i++ {
		wg.Add(1)
		go func(id model.Identity) {
			defer wg.Done()
			_, err := s.controller.JoinLobby(s.ctx, id, "GAME1")
			errs <- err
		}(model.Identity("joiner-" + string(rune('a'+i))))
	}
	wg.Wait()
	close(errs)

	seated := 0
	for err := range errs {
		if err == nil {
			seated++
			continue
		}
		s.ErrorIs(err, model.ErrLobbyFull)
	}
	s.Equal(1, seated)
}

// Increment tests

func (s *ControllerSuite) TestIncrementRedOnlyTouchesRed() {
	s.createLobby("GAME1")
	_, _ = s.controller.JoinLobby(s.ctx, bob, "GAME1")

	lobby, err := s.controller.Increment(s.ctx, alice, "game1")
	s.Require().NoError(err)
	s.Equal(uint32(1), lobby.RedCount)
	s.Equal(uint32(0), lobby.BlueCount)

	stored := s.stored("GAME1")
	s.Equal(uint32(1), stored.RedCount)
	s.Equal(uint32(0), stored.BlueCount)
}

func (s *ControllerSuite) TestIncrementBlueOnlyTouchesBlue() {
	s.createLobby("GAME1")
	_, _ = s.controller.JoinLobby(s.ctx, bob, "GAME1")

	for i := 0; i < 3; i++ {
		_, err := s.controller.Increment(s.ctx, bob, "GAME1")
		s.Require().NoError(err)
	}

	stored := s.stored("GAME1")
	s.Equal(uint32(0), stored.RedCount)
	s.Equal(uint32(3), stored.BlueCount)
}

func (s *ControllerSuite) TestIncrementSaturates() {
	s.createLobby("GAME1")
	_, err := s.storage.UpdateLobby(s.ctx, "GAME1", func(l *model.Lobby) error {
		l.RedCount = math.MaxUint32 - 1
		return nil
	})
	s.Require().NoError(err)

	lobby, err := s.controller.Increment(s.ctx, alice, "GAME1")
	s.Require().NoError(err)
	s.Equal(uint32(math.MaxUint32), lobby.RedCount)

	lobby, err = s.controller.Increment(s.ctx, alice, "GAME1")
	s.Require().NoError(err)
	s.Equal(uint32(math.MaxUint32), lobby.RedCount)
	s.Zero(lobby.BlueCount)
}

func (s *ControllerSuite) TestIncrementNotFound() {
	_, err := s.controller.Increment(s.ctx, alice, "NOPE")
	s.ErrorIs(err, model.ErrLobbyNotFound)
}

func (s *ControllerSuite) TestIncrementMalformedCodeIsNotFound() {
	_, err := s.controller.Increment(s.ctx, alice, "a!")
	s.ErrorIs(err, model.ErrLobbyNotFound)
}

func (s *ControllerSuite) TestIncrementByNonMember() {
	s.createLobby("GAME1")

	_, err := s.controller.Increment(s.ctx, carol, "GAME1")
	s.ErrorIs(err, model.ErrNotAMember)

	stored := s.stored("GAME1")
	s.Zero(stored.RedCount)
	s.Zero(stored.BlueCount)
}

func (s *ControllerSuite) TestConcurrentIncrementsAreAdditive() {
	s.createLobby("GAME1")

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.controller.Increment(s.ctx, alice, "GAME1")
		}()
	}
	wg.Wait()

	s.Equal(uint32(n), s.stored("GAME1").RedCount)
}

// Read tests

func (s *ControllerSuite) TestGetLobbyNormalizes() {
	s.createLobby("GAME1")

	lobby, err := s.controller.GetLobby(s.ctx, "game1")
	s.Require().NoError(err)
	s.Equal(model.LobbyCode("GAME1"), lobby.Code)
}

func (s *ControllerSuite) TestListLobbies() {
	s.createLobby("BBBB")
	s.createLobby("AAAA")

	lobbies, err := s.controller.ListLobbies(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(lobbies, 2)
	s.Equal(model.LobbyCode("AAAA"), lobbies[0].Code)
}
