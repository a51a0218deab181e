// Package recovery resets the owner password through a one-time code bound
// to the owner's phone number.
package recovery

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"notedrop/internal/apperr"
	"notedrop/internal/auth"
	"notedrop/internal/logging"
	"notedrop/internal/store"
)

var (
	ErrPhoneNotRecognized = apperr.New(apperr.ErrNotFound, "Phone not recognized")
	ErrNoOTP              = apperr.New(apperr.ErrNotFound, "No OTP requested")
	ErrInvalidCode        = apperr.New(apperr.ErrAuth, "Invalid code")
	ErrOTPConsumed        = apperr.New(apperr.ErrAuth, "Code already used")
	ErrLocked             = apperr.New(apperr.ErrAuth, "Too many failed attempts, try again later")
	ErrOTPExpired         = apperr.New(apperr.ErrExpired, "OTP expired")
)

const (
	codeMin = 100000
	codeMax = 999999
)

// Repository is the persistence the service needs.
type Repository interface {
	GetOwnerByPhone(ctx context.Context, phone string) (*store.Owner, error)
	CreateOTP(ctx context.Context, phone, code string, expiresAt time.Time) (*store.OTP, error)
	LatestOTP(ctx context.Context, phone string) (*store.OTP, error)
	ResetOwnerPassword(ctx context.Context, otpID int64, phone, passwordHash string, at time.Time) error
}

// Notifier delivers an issued code to the owner.
type Notifier interface {
	Notify(ctx context.Context, phone, code string) error
}

// LogNotifier writes codes to the log. It stands in for an SMS gateway.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Notify(ctx context.Context, phone, code string) error {
	logging.FromContext(ctx, n.Logger).Info("otp issued", "phone", phone, "code", code)
	return nil
}

// Config tunes a Service. Zero values fall back to defaults.
type Config struct {
	TTL        time.Duration
	BcryptCost int
	Now        func() time.Time
	// LoginLockout, if set, is cleared after a successful reset so the new
	// password works at once.
	LoginLockout *auth.Lockout
}

type Service struct {
	repo     Repository
	notifier Notifier
	lockout  *auth.Lockout
	login    *auth.Lockout
	log      *slog.Logger

	ttl  time.Duration
	cost int
	now  func() time.Time
}

// NewService wires the service. notifier and lockout may be nil.
func NewService(repo Repository, notifier Notifier, lockout *auth.Lockout, log *slog.Logger, cfg Config) *Service {
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		repo:     repo,
		notifier: notifier,
		lockout:  lockout,
		login:    cfg.LoginLockout,
		log:      log.With("component", "recovery"),
		ttl:      cfg.TTL,
		cost:     cfg.BcryptCost,
		now:      cfg.Now,
	}
}

// RequestOTP issues a fresh code for the owner's phone and returns it. Older
// codes for the phone stay stored but are superseded.
func (s *Service) RequestOTP(ctx context.Context, phone string) (string, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return "", apperr.ErrMissingFields
	}

	if _, err := s.repo.GetOwnerByPhone(ctx, phone); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrPhoneNotRecognized
		}
		return "", apperr.Storage(err)
	}

	code, err := generateCode()
	if err != nil {
		return "", apperr.Storage(err)
	}
	if _, err := s.repo.CreateOTP(ctx, phone, code, s.now().Add(s.ttl)); err != nil {
		return "", apperr.Storage(err)
	}

	log := logging.FromContext(ctx, s.log)
	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, phone, code); err != nil {
			log.Warn("otp notify failed", "err", err)
		}
	}
	return code, nil
}

// VerifyAndReset checks code against the latest challenge for phone and, on
// a match, replaces the owner password and consumes the challenge.
func (s *Service) VerifyAndReset(ctx context.Context, phone, code, newPassword string) error {
	log := logging.FromContext(ctx, s.log)

	phone = strings.TrimSpace(phone)
	if phone == "" || code == "" || newPassword == "" {
		return apperr.ErrMissingFields
	}
	if s.lockout != nil {
		if locked, _ := s.lockout.Locked(phone); locked {
			return ErrLocked
		}
	}

	otp, err := s.repo.LatestOTP(ctx, phone)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNoOTP
	}
	if err != nil {
		return apperr.Storage(err)
	}

	if subtle.ConstantTimeCompare([]byte(otp.Code), []byte(code)) != 1 {
		if s.lockout != nil {
			if locked, until := s.lockout.Fail(phone); locked {
				log.Warn("otp verification locked", "until", until)
			}
		}
		log.Warn("otp verification failed")
		return ErrInvalidCode
	}

	now := s.now()
	if otp.Expired(now) {
		return ErrOTPExpired
	}
	if otp.ConsumedAt != nil {
		return ErrOTPConsumed
	}

	hash, err := auth.HashPassword(newPassword, s.cost)
	if err != nil {
		return apperr.Storage(err)
	}

	switch err := s.repo.ResetOwnerPassword(ctx, otp.ID, phone, hash, now); {
	case errors.Is(err, store.ErrAlreadyConsumed):
		return ErrOTPConsumed
	case errors.Is(err, store.ErrNotFound):
		return ErrPhoneNotRecognized
	case err != nil:
		return apperr.Storage(err)
	}

	if s.lockout != nil {
		s.lockout.Reset(phone)
	}
	if s.login != nil {
		s.login.Clear()
	}
	log.Info("owner password reset")
	return nil
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeMax-codeMin+1))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+codeMin), nil
}
