// Package auth owns the singleton owner account: first-run setup, password
// login, and the sessions that mark a browser as the owner.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"notedrop/internal/apperr"
	"notedrop/internal/logging"
	"notedrop/internal/store"
)

var (
	ErrAlreadyConfigured = apperr.New(apperr.ErrConflict, "Owner already configured")
	ErrNotConfigured     = apperr.New(apperr.ErrNotFound, "Owner not configured")
	ErrInvalidPassword   = apperr.New(apperr.ErrAuth, "Invalid password")
	ErrLocked            = apperr.New(apperr.ErrAuth, "Too many failed attempts, try again later")
)

func loginKey(client string) string { return "owner|" + client }

// OwnerRepository is the persistence the service needs.
type OwnerRepository interface {
	CreateOwner(ctx context.Context, phone, passwordHash string) (*store.Owner, error)
	OwnerExists(ctx context.Context) (bool, error)
	GetOwner(ctx context.Context) (*store.Owner, error)
}

// Config tunes a Service. Zero values fall back to defaults.
type Config struct {
	SessionTTL time.Duration
	BcryptCost int
	Now        func() time.Time
}

type Service struct {
	owners   OwnerRepository
	sessions SessionStore
	lockout  *Lockout
	log      *slog.Logger

	sessionTTL time.Duration
	cost       int
	now        func() time.Time
}

// NewService wires the service. lockout may be nil to disable lockouts.
func NewService(owners OwnerRepository, sessions SessionStore, lockout *Lockout, log *slog.Logger, cfg Config) *Service {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 24 * time.Hour
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		owners:     owners,
		sessions:   sessions,
		lockout:    lockout,
		log:        log.With("component", "auth"),
		sessionTTL: cfg.SessionTTL,
		cost:       cfg.BcryptCost,
		now:        cfg.Now,
	}
}

// BcryptCost is the cost new hashes are generated with.
func (s *Service) BcryptCost() int {
	if s.cost == 0 {
		return DefaultBcryptCost
	}
	return s.cost
}

// SetupOwner creates the owner account. It never overwrites an existing one;
// concurrent calls are settled by the database.
func (s *Service) SetupOwner(ctx context.Context, phone, password string) (*store.Owner, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" || password == "" {
		return nil, apperr.ErrMissingFields
	}

	hash, err := HashPassword(password, s.cost)
	if err != nil {
		return nil, apperr.Storage(err)
	}

	owner, err := s.owners.CreateOwner(ctx, phone, hash)
	if errors.Is(err, store.ErrOwnerExists) {
		return nil, ErrAlreadyConfigured
	}
	if err != nil {
		return nil, apperr.Storage(err)
	}

	logging.FromContext(ctx, s.log).Info("owner configured")
	return owner, nil
}

// OwnerConfigured reports whether setup has happened.
func (s *Service) OwnerConfigured(ctx context.Context) (bool, error) {
	ok, err := s.owners.OwnerExists(ctx)
	if err != nil {
		return false, apperr.Storage(err)
	}
	return ok, nil
}

// Login checks password against the owner's hash and opens a session.
// Failures are counted per client, so a locked client never blocks another.
func (s *Service) Login(ctx context.Context, password, client string) (*Session, error) {
	log := logging.FromContext(ctx, s.log)

	if password == "" {
		return nil, apperr.ErrMissingFields
	}
	key := loginKey(client)
	if s.lockout != nil {
		if locked, until := s.lockout.Locked(key); locked {
			log.Warn("login rejected while locked", "client", client, "until", until)
			return nil, ErrLocked
		}
	}

	owner, err := s.owners.GetOwner(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotConfigured
	}
	if err != nil {
		return nil, apperr.Storage(err)
	}

	if !VerifyPassword(owner.PasswordHash, password) {
		if s.lockout != nil {
			if locked, until := s.lockout.Fail(key); locked {
				log.Warn("owner login locked", "client", client, "until", until)
			}
		}
		log.Warn("owner login failed", "client", client)
		return nil, ErrInvalidPassword
	}
	if s.lockout != nil {
		s.lockout.Reset(key)
	}

	id, err := newSessionID()
	if err != nil {
		return nil, apperr.Storage(err)
	}
	now := s.now()
	sess := &Session{ID: id, Owner: true, CreatedAt: now, ExpiresAt: now.Add(s.sessionTTL)}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, apperr.Storage(err)
	}
	log.Info("owner logged in")
	return sess, nil
}

// Logout drops the session. Unknown ids are ignored.
func (s *Service) Logout(ctx context.Context, sessionID string) {
	if sessionID == "" {
		return
	}
	s.sessions.Delete(ctx, sessionID)
}

// Session resolves a live session id.
func (s *Service) Session(ctx context.Context, sessionID string) (*Session, bool) {
	if sessionID == "" {
		return nil, false
	}
	return s.sessions.Get(ctx, sessionID)
}
