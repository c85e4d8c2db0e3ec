package factory

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/mcoot/lobbysync/internal/config"
	"github.com/mcoot/lobbysync/internal/dependencies/clock"
	"github.com/mcoot/lobbysync/internal/dependencies/random"
	"github.com/mcoot/lobbysync/internal/services/auth"
	"github.com/mcoot/lobbysync/internal/services/lobby"
	"github.com/mcoot/lobbysync/internal/services/roster"
	"github.com/mcoot/lobbysync/internal/sse"
	"github.com/mcoot/lobbysync/internal/storage"
	"github.com/mcoot/lobbysync/internal/storage/memory"
	redisstorage "github.com/mcoot/lobbysync/internal/storage/redis"
	sqlitestorage "github.com/mcoot/lobbysync/internal/storage/sqlite"
)

// App contains all wired application components
type App struct {
	Storage storage.Storage

	Clock  clock.Clock
	Random random.Random

	LobbyController *lobby.Controller
	RosterService   *roster.Service
	AuthService     *auth.Service
	Hub             *sse.Hub
	Broadcaster     *sse.Broadcaster
}

// Config holds configuration for the application factory
type Config struct {
	// AuthConfig zero fields fall back to auth.DefaultConfig()
	AuthConfig auth.Config
	// Logger defaults to a discarding logger
	Logger *slog.Logger
	// StorageType is "memory" (default), "redis" or "sqlite"
	StorageType string
	// RedisConfig is required for redis
	RedisConfig *redisstorage.Config
	// SQLitePath is required for sqlite
	SQLitePath string
}

// New creates a new application with all dependencies wired. The event
// hub is already running; call Close when done.
func New(cfg Config) (*App, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	store, err := openStorage(cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("storage ready", slog.String("type", storageName(cfg.StorageType)))

	return newWithDependencies(store, clock.New(), random.New(), cfg.AuthConfig, logger), nil
}

func storageName(t string) string {
	if t == "" {
		return config.StorageTypeMemory
	}
	return t
}

func openStorage(cfg Config) (storage.Storage, error) {
	switch storageName(cfg.StorageType) {
	case config.StorageTypeMemory:
		return memory.New(), nil
	case config.StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		return redisstorage.New(*cfg.RedisConfig)
	case config.StorageTypeSQLite:
		if cfg.SQLitePath == "" {
			return nil, errors.New("SQLitePath required when StorageType is sqlite")
		}
		return sqlitestorage.Open(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("invalid StorageType %q: must be memory, redis or sqlite", cfg.StorageType)
	}
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(store storage.Storage, clk clock.Clock, rnd random.Random, authCfg auth.Config, logger *slog.Logger) *App {
	hub := sse.NewHub(logger)
	go hub.Run()

	return &App{
		Storage:         store,
		Clock:           clk,
		Random:          rnd,
		LobbyController: lobby.NewController(store, clk, logger),
		RosterService:   roster.New(store, logger),
		AuthService:     auth.New(store, clk, rnd, authCfg, logger),
		Hub:             hub,
		Broadcaster:     sse.NewBroadcaster(hub, logger),
	}
}

// Close disconnects event streams and releases storage
func (a *App) Close() error {
	a.Hub.Close()
	return a.Storage.Close()
}
