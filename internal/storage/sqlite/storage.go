// Package sqlite provides a SQLite-backed storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/mcoot/lobbysync/internal/model"
	"github.com/mcoot/lobbysync/internal/storage"
	"github.com/mcoot/lobbysync/internal/storage/sqlite/migrations"
)

// Storage persists lobbysync tables in SQLite.
//
// The pool is limited to one connection so every transaction runs alone,
// which gives the serializable read-modify-write the storage contract needs.
type Storage struct {
	sqlDB *sql.DB
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

func toNanos(value time.Time) int64 {
	return value.UTC().UnixNano()
}

func fromNanos(value int64) time.Time {
	return time.Unix(0, value).UTC()
}

// Open opens a SQLite database at path and applies embedded migrations.
func Open(path string) (*Storage, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Storage{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Storage) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// queryer is satisfied by *sql.DB and *sql.Tx
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// inTx runs fn in a transaction, committing only if fn succeeds
func (s *Storage) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Lobby operations

const lobbyColumns = `code, red, blue, red_count, blue_count, created_at, version`

func scanLobby(row interface{ Scan(dest ...any) error }) (*model.Lobby, error) {
	var (
		lobby     model.Lobby
		code      string
		red, blue sql.NullString
		redCount  int64
		blueCount int64
		createdAt int64
		version   int64
	)
	if err := row.Scan(&code, &red, &blue, &redCount, &blueCount, &createdAt, &version); err != nil {
		return nil, err
	}
	lobby.Code = model.LobbyCode(code)
	lobby.Red = nullIdentity(red)
	lobby.Blue = nullIdentity(blue)
	lobby.RedCount = uint32(redCount)
	lobby.BlueCount = uint32(blueCount)
	lobby.Created = fromNanos(createdAt)
	lobby.Version = uint64(version)
	return &lobby, nil
}

func nullIdentity(v sql.NullString) *model.Identity {
	if !v.Valid {
		return nil
	}
	id := model.Identity(v.String)
	return &id
}

func identityArg(id *model.Identity) sql.NullString {
	if id == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*id), Valid: true}
}

func getLobby(ctx context.Context, q queryer, code model.LobbyCode) (*model.Lobby, error) {
	row := q.QueryRowContext(ctx, `SELECT `+lobbyColumns+` FROM lobbies WHERE code = ?`, string(code))
	lobby, err := scanLobby(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrLobbyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get lobby: %w", err)
	}
	return lobby, nil
}

func (s *Storage) GetLobby(ctx context.Context, code model.LobbyCode) (*model.Lobby, error) {
	return getLobby(ctx, s.sqlDB, code)
}

func (s *Storage) ListLobbies(ctx context.Context) ([]*model.Lobby, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT `+lobbyColumns+` FROM lobbies ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("list lobbies: %w", err)
	}
	defer func() { _ = rows.Close() }()

	lobbies := []*model.Lobby{}
	for rows.Next() {
		lobby, err := scanLobby(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lobby: %w", err)
		}
		lobbies = append(lobbies, lobby)
	}
	return lobbies, rows.Err()
}

func (s *Storage) InsertLobby(ctx context.Context, lobby *model.Lobby) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO lobbies (`+lobbyColumns+`) VALUES (?, ?, ?, ?, ?, ?, 1)`,
		string(lobby.Code),
		identityArg(lobby.Red),
		identityArg(lobby.Blue),
		int64(lobby.RedCount),
		int64(lobby.BlueCount),
		toNanos(lobby.Created),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.ErrDuplicateCode
		}
		return fmt.Errorf("insert lobby: %w", err)
	}
	lobby.Version = 1
	return nil
}

func (s *Storage) UpdateLobby(ctx context.Context, code model.LobbyCode, fn storage.LobbyMutation) (*model.Lobby, error) {
	var committed *model.Lobby
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		lobby, err := getLobby(ctx, tx, code)
		if err != nil {
			return err
		}
		version := lobby.Version
		if err := fn(lobby); err != nil {
			return err
		}
		lobby.Version = version + 1
		// code and created are immutable once inserted
		if _, err := tx.ExecContext(ctx,
			`UPDATE lobbies SET red = ?, blue = ?, red_count = ?, blue_count = ?, version = ? WHERE code = ?`,
			identityArg(lobby.Red),
			identityArg(lobby.Blue),
			int64(lobby.RedCount),
			int64(lobby.BlueCount),
			int64(lobby.Version),
			string(code),
		); err != nil {
			return fmt.Errorf("update lobby: %w", err)
		}
		committed = lobby
		return nil
	})
	if err != nil {
		return nil, err
	}
	return committed, nil
}

// User operations

func scanUser(row interface{ Scan(dest ...any) error }) (*model.User, error) {
	var (
		identity string
		name     sql.NullString
		online   bool
		version  int64
	)
	if err := row.Scan(&identity, &name, &online, &version); err != nil {
		return nil, err
	}
	user := &model.User{Identity: model.Identity(identity), Online: online, Version: uint64(version)}
	if name.Valid {
		user.Name = &name.String
	}
	return user, nil
}

func getUser(ctx context.Context, q queryer, id model.Identity) (*model.User, error) {
	row := q.QueryRowContext(ctx, `SELECT identity, name, online, version FROM users WHERE identity = ?`, string(id))
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func (s *Storage) GetUser(ctx context.Context, id model.Identity) (*model.User, error) {
	return getUser(ctx, s.sqlDB, id)
}

func (s *Storage) ListUsers(ctx context.Context) ([]*model.User, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT identity, name, online, version FROM users ORDER BY identity`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	users := []*model.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (s *Storage) UpsertUser(ctx context.Context, id model.Identity, fn storage.UserMutation) (*model.User, error) {
	var committed *model.User
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		existing, err := getUser(ctx, tx, id)
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
		var name sql.NullString
		if next.Name != nil {
			name = sql.NullString{String: *next.Name, Valid: true}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO users (identity, name, online, version) VALUES (?, ?, ?, ?)
			 ON CONFLICT(identity) DO UPDATE SET name = excluded.name, online = excluded.online, version = excluded.version`,
			string(id), name, next.Online, int64(next.Version),
		); err != nil {
			return fmt.Errorf("upsert user: %w", err)
		}
		committed = next.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return committed, nil
}

// Credential operations

func (s *Storage) SaveCredential(ctx context.Context, cred *model.Credential) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO credentials (identity, secret_hash, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(identity) DO UPDATE SET secret_hash = excluded.secret_hash`,
		string(cred.Identity), cred.SecretHash, toNanos(cred.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}

func (s *Storage) GetCredential(ctx context.Context, id model.Identity) (*model.Credential, error) {
	var (
		hash      string
		createdAt int64
	)
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT secret_hash, created_at FROM credentials WHERE identity = ?`, string(id),
	).Scan(&hash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrCredentialNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get credential: %w", err)
	}
	return &model.Credential{Identity: id, SecretHash: hash, CreatedAt: fromNanos(createdAt)}, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
