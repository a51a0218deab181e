// Package store persists notes, download records, the owner account and
// recovery codes. One SQL implementation serves both supported dialects;
// queries are written with "?" placeholders and rebound for PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"notedrop/internal/db"
	"notedrop/internal/dbx"
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrOwnerExists     = errors.New("owner already exists")
	ErrAlreadyConsumed = errors.New("otp already consumed")
)

// SQLStore implements every repository used by the services.
type SQLStore struct {
	db      *sql.DB
	dialect string
}

// New wraps an open connection. dialect is db.DriverSQLite or db.DriverPostgres.
func New(conn *sql.DB, dialect string) *SQLStore {
	return &SQLStore{db: conn, dialect: dialect}
}

// Ping checks the connection; used by the health endpoint.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) rebind(query string) string {
	if s.dialect != db.DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func toMillis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func dbErr(err error) error {
	return fmt.Errorf("db error: %w", err)
}

// ---- owner ----

// CreateOwner inserts the singleton owner row. A second insert is rejected by
// the fixed primary key and reported as ErrOwnerExists.
func (s *SQLStore) CreateOwner(ctx context.Context, phone, passwordHash string) (*Owner, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO owner (id, phone, password_hash) VALUES (1, ?, ?)
		 ON CONFLICT (id) DO NOTHING`),
		phone, passwordHash)
	if err != nil {
		return nil, dbErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, dbErr(err)
	}
	if n == 0 {
		return nil, ErrOwnerExists
	}
	return &Owner{ID: 1, Phone: phone, PasswordHash: passwordHash}, nil
}

// OwnerExists reports whether the owner has been configured.
func (s *SQLStore) OwnerExists(ctx context.Context) (bool, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM owner`).Scan(&n); err != nil {
		return false, dbErr(err)
	}
	return n > 0, nil
}

// GetOwner returns the owner row or ErrNotFound.
func (s *SQLStore) GetOwner(ctx context.Context) (*Owner, error) {
	o := &Owner{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, phone, password_hash FROM owner ORDER BY id LIMIT 1`,
	).Scan(&o.ID, &o.Phone, &o.PasswordHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, dbErr(err)
	}
	return o, nil
}

// GetOwnerByPhone returns the owner registered with phone or ErrNotFound.
func (s *SQLStore) GetOwnerByPhone(ctx context.Context, phone string) (*Owner, error) {
	o := &Owner{}
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT id, phone, password_hash FROM owner WHERE phone = ? LIMIT 1`), phone,
	).Scan(&o.ID, &o.Phone, &o.PasswordHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, dbErr(err)
	}
	return o, nil
}

// ---- otps ----

// CreateOTP stores a new recovery challenge and returns it with its id.
func (s *SQLStore) CreateOTP(ctx context.Context, phone, code string, expiresAt time.Time) (*OTP, error) {
	o := &OTP{Phone: phone, Code: code, ExpiresAt: fromMillis(toMillis(expiresAt))}
	err := s.db.QueryRowContext(ctx, s.rebind(
		`INSERT INTO otps (phone, code, expires_at) VALUES (?, ?, ?) RETURNING id`),
		phone, code, toMillis(expiresAt),
	).Scan(&o.ID)
	if err != nil {
		return nil, dbErr(err)
	}
	return o, nil
}

// LatestOTP returns the most recently issued challenge for phone. Ties on
// creation are impossible because ids are monotonic.
func (s *SQLStore) LatestOTP(ctx context.Context, phone string) (*OTP, error) {
	var (
		o          OTP
		expiresAt  int64
		consumedAt sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT id, phone, code, expires_at, consumed_at FROM otps
		 WHERE phone = ? ORDER BY id DESC LIMIT 1`), phone,
	).Scan(&o.ID, &o.Phone, &o.Code, &expiresAt, &consumedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, dbErr(err)
	}
	o.ExpiresAt = fromMillis(expiresAt)
	if consumedAt.Valid {
		t := fromMillis(consumedAt.Int64)
		o.ConsumedAt = &t
	}
	return &o, nil
}

// ResetOwnerPassword consumes the challenge and overwrites the owner's hash
// in one transaction. A challenge consumed concurrently yields
// ErrAlreadyConsumed and leaves the password untouched.
func (s *SQLStore) ResetOwnerPassword(ctx context.Context, otpID int64, phone, passwordHash string, at time.Time) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		res, err := tx.ExecContext(ctx, s.rebind(
			`UPDATE otps SET consumed_at = ? WHERE id = ? AND consumed_at IS NULL`),
			toMillis(at), otpID)
		if err != nil {
			return dbErr(err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return dbErr(err)
		} else if n == 0 {
			return ErrAlreadyConsumed
		}

		res, err = tx.ExecContext(ctx, s.rebind(
			`UPDATE owner SET password_hash = ? WHERE phone = ?`),
			passwordHash, phone)
		if err != nil {
			return dbErr(err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return dbErr(err)
		} else if n == 0 {
			return ErrNotFound
		}
		return nil
	})
}
