package lobby

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mcoot/lobbysync/internal/dependencies/clock"
	"github.com/mcoot/lobbysync/internal/model"
	"github.com/mcoot/lobbysync/internal/storage"
)

// Controller owns lobby creation, slot assignment and counter increments.
//
// Every operation is a single storage call keyed by the lobby code, so the
// storage backend's per-row atomicity is the only serialization it relies on.
// A rejection returns one of the model sentinel errors and writes nothing.
type Controller struct {
	storage storage.Storage
	clock   clock.Clock
	logger  *slog.Logger
}

// NewController creates a new lobby Controller
func NewController(storage storage.Storage, clock clock.Clock, logger *slog.Logger) *Controller {
	return &Controller{
		storage: storage,
		clock:   clock,
		logger:  logger.With(slog.String("component", "lobby")),
	}
}

// CreateLobby creates a lobby with the caller seated in the red slot
func (c *Controller) CreateLobby(ctx context.Context, caller model.Identity, rawCode string) (*model.Lobby, error) {
	code, err := model.ParseLobbyCode(rawCode)
	if err != nil {
		return nil, err
	}

	if _, err := c.storage.GetLobby(ctx, code); err == nil {
		return nil, model.ErrDuplicateCode
	} else if !errors.Is(err, model.ErrLobbyNotFound) {
		return nil, err
	}

	red := caller
	lobby := &model.Lobby{
		Code:    code,
		Red:     &red,
		Created: c.clock.Now(),
	}

	// The insert re-checks the code, so a concurrent create still loses cleanly
	if err := c.storage.InsertLobby(ctx, lobby); err != nil {
		return nil, err
	}

	c.logger.Info("lobby created",
		slog.String("lobby", string(code)),
		slog.String("red", string(caller)))
	return lobby, nil
}

// JoinLobby seats the caller in the first free slot, red before blue.
// Joining a lobby the caller already sits in is a no-op.
func (c *Controller) JoinLobby(ctx context.Context, caller model.Identity, rawCode string) (*model.Lobby, error) {
	code, err := model.ParseLobbyCode(rawCode)
	if err != nil {
		return nil, err
	}

	var seated model.Slot
	lobby, err := c.storage.UpdateLobby(ctx, code, func(l *model.Lobby) error {
		seated = ""
		if _, ok := l.SlotOf(caller); ok {
			return nil
		}
		slot, ok := l.Seat(caller)
		if !ok {
			return model.ErrLobbyFull
		}
		seated = slot
		return nil
	})
	if err != nil {
		return nil, err
	}

	if seated != "" {
		c.logger.Info("lobby joined",
			slog.String("lobby", string(code)),
			slog.String("slot", string(seated)),
			slog.String("identity", string(caller)))
	}
	return lobby, nil
}

// Increment advances the counter of the slot the caller occupies.
// The code is only normalized: a lookup miss already covers malformed codes.
func (c *Controller) Increment(ctx context.Context, caller model.Identity, rawCode string) (*model.Lobby, error) {
	code := model.NormalizeCode(rawCode)

	return c.storage.UpdateLobby(ctx, code, func(l *model.Lobby) error {
		slot, ok := l.SlotOf(caller)
		if !ok {
			return model.ErrNotAMember
		}
		l.Advance(slot)
		return nil
	})
}

// GetLobby retrieves a lobby by code, normalizing it first
func (c *Controller) GetLobby(ctx context.Context, rawCode string) (*model.Lobby, error) {
	return c.storage.GetLobby(ctx, model.NormalizeCode(rawCode))
}

// ListLobbies returns every lobby ordered by code
func (c *Controller) ListLobbies(ctx context.Context) ([]*model.Lobby, error) {
	return c.storage.ListLobbies(ctx)
}

// Interface for dependency injection
type ControllerInterface interface {
	CreateLobby(ctx context.Context, caller model.Identity, rawCode string) (*model.Lobby, error)
	JoinLobby(ctx context.Context, caller model.Identity, rawCode string) (*model.Lobby, error)
	Increment(ctx context.Context, caller model.Identity, rawCode string) (*model.Lobby, error)
	GetLobby(ctx context.Context, rawCode string) (*model.Lobby, error)
	ListLobbies(ctx context.Context) ([]*model.Lobby, error)
}

var _ ControllerInterface = (*Controller)(nil)
