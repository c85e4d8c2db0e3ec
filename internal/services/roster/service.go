// Package roster tracks which identities are currently connected.
package roster

import (
	"context"
	"log/slog"

	"github.com/mcoot/lobbysync/internal/model"
	"github.com/mcoot/lobbysync/internal/storage"
)

// Service reflects connect and disconnect events into the user table
type Service struct {
	storage storage.Storage
	logger  *slog.Logger
}

// New creates a new roster Service
func New(storage storage.Storage, logger *slog.Logger) *Service {
	return &Service{
		storage: storage,
		logger:  logger.With(slog.String("component", "roster")),
	}
}

// HandleConnect marks id online, creating its roster row on first sight.
// The only possible error is a storage failure.
func (s *Service) HandleConnect(ctx context.Context, id model.Identity) (*model.User, error) {
	user, err := s.storage.UpsertUser(ctx, id, func(existing *model.User) *model.User {
		if existing == nil {
			return &model.User{Identity: id, Online: true}
		}
		existing.Online = true
		return existing
	})
	if err != nil {
		s.logger.Error("failed to mark user online",
			slog.String("identity", string(id)),
			slog.Any("error", err))
		return nil, err
	}
	s.logger.Info("user connected", slog.String("identity", string(id)))
	return user, nil
}

// HandleDisconnect marks id offline. Unknown identities are left alone;
// the returned user is nil in that case.
func (s *Service) HandleDisconnect(ctx context.Context, id model.Identity) (*model.User, error) {
	user, err := s.storage.UpsertUser(ctx, id, func(existing *model.User) *model.User {
		if existing == nil {
			return nil
		}
		existing.Online = false
		return existing
	})
	if err != nil {
		s.logger.Error("failed to mark user offline",
			slog.String("identity", string(id)),
			slog.Any("error", err))
		return nil, err
	}
	if user != nil {
		s.logger.Info("user disconnected", slog.String("identity", string(id)))
	}
	return user, nil
}

// GetUser returns the roster row for id
func (s *Service) GetUser(ctx context.Context, id model.Identity) (*model.User, error) {
	return s.storage.GetUser(ctx, id)
}

// ListUsers returns every roster row ordered by identity
func (s *Service) ListUsers(ctx context.Context) ([]*model.User, error) {
	return s.storage.ListUsers(ctx)
}
