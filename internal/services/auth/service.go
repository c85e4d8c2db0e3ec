package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/lobbysync/internal/dependencies/clock"
	"github.com/mcoot/lobbysync/internal/dependencies/random"
	"github.com/mcoot/lobbysync/internal/model"
	"github.com/mcoot/lobbysync/internal/storage"
)

// Errors
var (
	ErrInvalidToken = errors.New("invalid identity token")
)

const (
	secretLength   = 32
	secretAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	tokenSeparator = "."
)

// Session is a validated identity token held in memory
type Session struct {
	Token     string
	Identity  model.Identity
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Service issues identities and resolves client tokens back to them.
//
// A token is "<identity>.<secret>". Only a bcrypt hash of the secret is
// stored, so a client that keeps its token can reconnect as the same
// identity after a server restart when storage is persistent.
type Service struct {
	storage storage.Storage
	clock   clock.Clock
	random  random.Random
	logger  *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session

	sessionDuration time.Duration
	hashCost        int
}

// Config holds configuration for the auth service
type Config struct {
	// SessionDuration is how long a validated token skips the hash check
	SessionDuration time.Duration
	// HashCost is the bcrypt cost for stored secrets
	HashCost int
}

// DefaultConfig returns default auth configuration
func DefaultConfig() Config {
	return Config{
		SessionDuration: 24 * time.Hour,
		HashCost:        bcrypt.DefaultCost,
	}
}

// New creates a new auth Service
func New(storage storage.Storage, clock clock.Clock, random random.Random, cfg Config, logger *slog.Logger) *Service {
	defaults := DefaultConfig()
	if cfg.SessionDuration == 0 {
		cfg.SessionDuration = defaults.SessionDuration
	}
	if cfg.HashCost == 0 {
		cfg.HashCost = defaults.HashCost
	}
	return &Service{
		storage:         storage,
		clock:           clock,
		random:          random,
		logger:          logger.With(slog.String("component", "auth")),
		sessions:        make(map[string]*Session),
		sessionDuration: cfg.SessionDuration,
		hashCost:        cfg.HashCost,
	}
}

// IssueIdentity mints a fresh identity and returns a session holding its token
func (s *Service) IssueIdentity(ctx context.Context) (*Session, error) {
	id := model.Identity(uuid.NewString())
	secret := s.random.String(secretLength, secretAlphabet)
	if secret == "" {
		return nil, errors.New("random source produced an empty secret")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), s.hashCost)
	if err != nil {
		return nil, err
	}

	cred := &model.Credential{
		Identity:   id,
		SecretHash: string(hash),
		CreatedAt:  s.clock.Now(),
	}
	if err := s.storage.SaveCredential(ctx, cred); err != nil {
		return nil, err
	}

	s.logger.Info("identity issued", slog.String("identity", string(id)))
	return s.createSession(string(id)+tokenSeparator+secret, id), nil
}

// Authenticate resolves a token to its session, checking the stored hash
// the first time a token is seen and whenever its cached session expired
func (s *Service) Authenticate(ctx context.Context, token string) (*Session, error) {
	s.mu.RLock()
	session, ok := s.sessions[token]
	s.mu.RUnlock()

	if ok {
		if s.clock.Now().Before(session.ExpiresAt) {
			return session, nil
		}
		s.InvalidateSession(token)
	}

	rawID, secret, found := strings.Cut(token, tokenSeparator)
	if !found || rawID == "" || secret == "" {
		return nil, ErrInvalidToken
	}
	id := model.Identity(rawID)

	cred, err := s.storage.GetCredential(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrCredentialNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(cred.SecretHash), []byte(secret)); err != nil {
		return nil, ErrInvalidToken
	}

	return s.createSession(token, id), nil
}

// InvalidateSession drops a cached session; the token itself stays valid
func (s *Service) InvalidateSession(token string) {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
}

// createSession caches a validated token
func (s *Service) createSession(token string, id model.Identity) *Session {
	now := s.clock.Now()

	session := &Session{
		Token:     token,
		Identity:  id,
		CreatedAt: now,
		ExpiresAt: now.Add(s.sessionDuration),
	}

	s.mu.Lock()
	s.sessions[token] = session
	s.mu.Unlock()

	return session
}
