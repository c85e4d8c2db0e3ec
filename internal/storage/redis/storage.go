package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/lobbysync/internal/model"
	"github.com/mcoot/lobbysync/internal/storage"
)

// ErrTxContention is returned when a watched transaction keeps losing races
var ErrTxContention = errors.New("redis transaction retries exhausted")

// Storage is a Redis-backed implementation of the storage interface
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return NewWithClient(client, cfg), nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	if cfg.MaxTxRetries <= 0 {
		cfg.MaxTxRetries = DefaultConfig().MaxTxRetries
	}
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// watch runs fn as an optimistic transaction over keys, retrying while
// another client commits to one of them first
func (s *Storage) watch(ctx context.Context, fn func(tx *redis.Tx) error, keys ...string) error {
	for i := 0; i < s.cfg.MaxTxRetries; i++ {
		err := s.client.Watch(ctx, fn, keys...)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return ErrTxContention
}

// Lobby operations

func (s *Storage) GetLobby(ctx context.Context, code model.LobbyCode) (*model.Lobby, error) {
	return getJSON[model.Lobby](ctx, s.client, lobbyKey(code), model.ErrLobbyNotFound)
}

func (s *Storage) ListLobbies(ctx context.Context) ([]*model.Lobby, error) {
	lobbies, err := listJSON[model.Lobby](ctx, s.client, lobbiesIndexKey())
	if err != nil {
		return nil, err
	}
	sort.Slice(lobbies, func(i, j int) bool { return lobbies[i].Code < lobbies[j].Code })
	return lobbies, nil
}

func (s *Storage) InsertLobby(ctx context.Context, lobby *model.Lobby) error {
	row := *lobby
	row.Version = 1
	data, err := json.Marshal(&row)
	if err != nil {
		return err
	}

	key := lobbyKey(lobby.Code)
	err = s.watch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if exists > 0 {
			return model.ErrDuplicateCode
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.SAdd(ctx, lobbiesIndexKey(), key)
			return nil
		})
		return err
	}, key)
	if err != nil {
		return err
	}
	lobby.Version = row.Version
	return nil
}

func (s *Storage) UpdateLobby(ctx context.Context, code model.LobbyCode, fn storage.LobbyMutation) (*model.Lobby, error) {
	key := lobbyKey(code)
	var committed *model.Lobby

	err := s.watch(ctx, func(tx *redis.Tx) error {
		lobby, err := getJSON[model.Lobby](ctx, tx, key, model.ErrLobbyNotFound)
		if err != nil {
			return err
		}
		version := lobby.Version
		if err := fn(lobby); err != nil {
			return err
		}
		lobby.Version = version + 1
		data, err := json.Marshal(lobby)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		if err != nil {
			return err
		}
		committed = lobby
		return nil
	}, key)
	if err != nil {
		return nil, err
	}
	return committed, nil
}

// User operations

func (s *Storage) GetUser(ctx context.Context, id model.Identity) (*model.User, error) {
	return getJSON[model.User](ctx, s.client, userKey(id), model.ErrUserNotFound)
}

func (s *Storage) ListUsers(ctx context.Context) ([]*model.User, error) {
	users, err := listJSON[model.User](ctx, s.client, usersIndexKey())
	if err != nil {
		return nil, err
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Identity < users[j].Identity })
	return users, nil
}

func (s *Storage) UpsertUser(ctx context.Context, id model.Identity, fn storage.UserMutation) (*model.User, error) {
	key := userKey(id)
	var committed *model.User

	err := s.watch(ctx, func(tx *redis.Tx) error {
		existing, err := getJSON[model.User](ctx, tx, key, model.ErrUserNotFound)
		if err != nil && !errors.Is(err, model.ErrUserNotFound) {
			return err
		}
		var version uint64
		if existing != nil {
			version = existing.Version
		}
		next := fn(existing)
		if next == nil {
			committed = existing
			return nil
		}
		next.Identity = id
		next.Version = version + 1
		data, err := json.Marshal(next)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.SAdd(ctx, usersIndexKey(), key)
			return nil
		})
		if err != nil {
			return err
		}
		committed = next.Clone()
		return nil
	}, key)
	if err != nil {
		return nil, err
	}
	return committed, nil
}

// Credential operations

func (s *Storage) SaveCredential(ctx context.Context, cred *model.Credential) error {
	data, err := json.Marshal(cred)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, credentialKey(cred.Identity), data, 0).Err()
}

func (s *Storage) GetCredential(ctx context.Context, id model.Identity) (*model.Credential, error) {
	return getJSON[model.Credential](ctx, s.client, credentialKey(id), model.ErrCredentialNotFound)
}

// getter is satisfied by both *redis.Client and *redis.Tx
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// getJSON loads and decodes one row, mapping a missing key to notFound
func getJSON[T any](ctx context.Context, c getter, key string, notFound error) (*T, error) {
	data, err := c.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, notFound
		}
		return nil, err
	}

	var row T
	if err := json.Unmarshal(data, &row); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return &row, nil
}

// listJSON loads every row referenced by an index set
func listJSON[T any](ctx context.Context, c redis.Cmdable, indexKey string) ([]*T, error) {
	keys, err := c.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, err
	}

	if len(keys) == 0 {
		return []*T{}, nil
	}

	values, err := c.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	rows := make([]*T, 0, len(values))
	for _, val := range values {
		str, ok := val.(string)
		if !ok {
			continue
		}
		var row T
		if err := json.Unmarshal([]byte(str), &row); err != nil {
			continue // Skip invalid data
		}
		rows = append(rows, &row)
	}

	return rows, nil
}
