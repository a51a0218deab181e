package recovery

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"notedrop/internal/apperr"
	"notedrop/internal/auth"
	"notedrop/internal/db"
	"notedrop/internal/logging"
	"notedrop/internal/store"
)

type fixture struct {
	repo *store.SQLStore
	svc  *Service
	now  time.Time
}

func newFixture(t *testing.T, notifier Notifier, lockout *auth.Lockout) *fixture {
	t.Helper()
	path := filepath.Join(t.TempDir(), "recovery.db")
	_, err := db.RunMigrations(db.DriverSQLite, path)
	require.NoError(t, err)
	conn, err := db.Open(db.DriverSQLite, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	f := &fixture{
		repo: store.New(conn, db.DriverSQLite),
		now:  time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC),
	}
	f.svc = NewService(f.repo, notifier, lockout, logging.Discard(), Config{
		BcryptCost: bcrypt.MinCost,
		Now:        func() time.Time { return f.now },
	})

	hash, err := auth.HashPassword("old-pw", bcrypt.MinCost)
	require.NoError(t, err)
	_, err = f.repo.CreateOwner(context.Background(), "555", hash)
	require.NoError(t, err)
	return f
}

func (f *fixture) ownerHash(t *testing.T) string {
	t.Helper()
	o, err := f.repo.GetOwner(context.Background())
	require.NoError(t, err)
	return o.PasswordHash
}

type recordingNotifier struct {
	mu    sync.Mutex
	codes []string
	err   error
}

func (r *recordingNotifier) Notify(_ context.Context, _, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codes = append(r.codes, code)
	return r.err
}

func TestRequestOTP(t *testing.T) {
	n := &recordingNotifier{}
	f := newFixture(t, n, nil)
	ctx := context.Background()

	_, err := f.svc.RequestOTP(ctx, "")
	assert.ErrorIs(t, err, apperr.ErrMissingFields)

	_, err = f.svc.RequestOTP(ctx, "999")
	assert.ErrorIs(t, err, ErrPhoneNotRecognized)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	code, err := f.svc.RequestOTP(ctx, "555")
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^\d{6}$`), code)
	assert.Equal(t, []string{code}, n.codes)

	otp, err := f.repo.LatestOTP(ctx, "555")
	require.NoError(t, err)
	assert.Equal(t, code, otp.Code)
	assert.Equal(t, int64(600000), otp.ExpiresAt.UnixMilli()-f.now.UnixMilli())
}

func TestRequestOTPNotifierFailureIsNotFatal(t *testing.T) {
	f := newFixture(t, &recordingNotifier{err: errors.New("gateway down")}, nil)
	_, err := f.svc.RequestOTP(context.Background(), "555")
	assert.NoError(t, err)
}

func TestVerifyAndReset(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	code, err := f.svc.RequestOTP(ctx, "555")
	require.NoError(t, err)

	f.now = f.now.Add(5 * time.Minute)
	require.NoError(t, f.svc.VerifyAndReset(ctx, "555", code, "new-pw"))

	hash := f.ownerHash(t)
	assert.True(t, auth.VerifyPassword(hash, "new-pw"))
	assert.False(t, auth.VerifyPassword(hash, "old-pw"))

	err = f.svc.VerifyAndReset(ctx, "555", code, "third-pw")
	assert.ErrorIs(t, err, ErrOTPConsumed)
	assert.True(t, auth.VerifyPassword(f.ownerHash(t), "new-pw"))
}

func TestVerifyAndResetErrors(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	assert.ErrorIs(t, f.svc.VerifyAndReset(ctx, "555", "", "pw"), apperr.ErrMissingFields)
	assert.ErrorIs(t, f.svc.VerifyAndReset(ctx, "", "123456", "pw"), apperr.ErrMissingFields)
	assert.ErrorIs(t, f.svc.VerifyAndReset(ctx, "555", "123456", ""), apperr.ErrMissingFields)

	err := f.svc.VerifyAndReset(ctx, "555", "123456", "pw")
	assert.ErrorIs(t, err, ErrNoOTP)

	code, err := f.svc.RequestOTP(ctx, "555")
	require.NoError(t, err)

	err = f.svc.VerifyAndReset(ctx, "555", wrongCode(code), "pw")
	assert.ErrorIs(t, err, ErrInvalidCode)
	assert.ErrorIs(t, err, apperr.ErrAuth)

	err = f.svc.VerifyAndReset(ctx, "555", " "+code, "pw")
	assert.ErrorIs(t, err, ErrInvalidCode, "codes are compared exactly")

	assert.True(t, auth.VerifyPassword(f.ownerHash(t), "old-pw"))
}

func TestVerifyAndResetExpiry(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	code, err := f.svc.RequestOTP(ctx, "555")
	require.NoError(t, err)

	f.now = f.now.Add(10*time.Minute + time.Millisecond)
	err = f.svc.VerifyAndReset(ctx, "555", code, "pw")
	assert.ErrorIs(t, err, ErrOTPExpired)
	assert.Equal(t, 410, apperr.HTTPStatus(err))
	assert.True(t, auth.VerifyPassword(f.ownerHash(t), "old-pw"))
}

func TestVerifyAndResetAtExactExpiry(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	code, err := f.svc.RequestOTP(ctx, "555")
	require.NoError(t, err)

	f.now = f.now.Add(10 * time.Minute)
	assert.NoError(t, f.svc.VerifyAndReset(ctx, "555", code, "pw"))
}

func TestOnlyLatestCodeCounts(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	first, err := f.svc.RequestOTP(ctx, "555")
	require.NoError(t, err)
	second, err := f.svc.RequestOTP(ctx, "555")
	require.NoError(t, err)

	if first != second {
		err = f.svc.VerifyAndReset(ctx, "555", first, "pw")
		assert.ErrorIs(t, err, ErrInvalidCode)
	}
	assert.NoError(t, f.svc.VerifyAndReset(ctx, "555", second, "pw"))
}

func TestVerifyLockout(t *testing.T) {
	lock := auth.NewLockout(3, time.Hour, time.Hour)
	t.Cleanup(lock.Close)
	f := newFixture(t, nil, lock)
	ctx := context.Background()

	code, err := f.svc.RequestOTP(ctx, "555")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, f.svc.VerifyAndReset(ctx, "555", wrongCode(code), "pw"), ErrInvalidCode)
	}
	err = f.svc.VerifyAndReset(ctx, "555", code, "pw")
	assert.ErrorIs(t, err, ErrLocked)
	assert.True(t, auth.VerifyPassword(f.ownerHash(t), "old-pw"))
}

func TestResetClearsLoginLockout(t *testing.T) {
	login := auth.NewLockout(1, time.Hour, time.Hour)
	t.Cleanup(login.Close)
	f := newFixture(t, nil, nil)
	svc := NewService(f.repo, nil, nil, logging.Discard(), Config{BcryptCost: bcrypt.MinCost, LoginLockout: login})
	ctx := context.Background()

	locked, _ := login.Fail("owner|198.51.100.7")
	require.True(t, locked)

	code, err := svc.RequestOTP(ctx, "555")
	require.NoError(t, err)
	require.NoError(t, svc.VerifyAndReset(ctx, "555", code, "new-pw"))

	locked, _ = login.Locked("owner|198.51.100.7")
	assert.False(t, locked)
}

func TestResetAcceptsWhitespacePassword(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	code, err := f.svc.RequestOTP(ctx, "555")
	require.NoError(t, err)
	require.NoError(t, f.svc.VerifyAndReset(ctx, "555", code, "  "))
	assert.True(t, auth.VerifyPassword(f.ownerHash(t), "  "))
}

func TestGenerateCodeRange(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := generateCode()
		require.NoError(t, err)
		require.Len(t, code, 6)
		n, err := strconv.Atoi(code)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, codeMin)
		assert.LessOrEqual(t, n, codeMax)
	}
}

func wrongCode(code string) string {
	if code == "123456" {
		return "654321"
	}
	return "123456"
}
