package verification

import (
	"context"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naggery/naggery/internal/logging"
	"github.com/naggery/naggery/internal/secerr"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newManager(t *testing.T) (*Manager, *clock) {
	t.Helper()
	c := &clock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	return NewManager(NewMemoryRepository(), WithClock(c.Now), WithLogger(logging.Discard())), c
}

const userID = "00000000-0000-0000-0000-000000000042"

func TestCreateEmailRequest(t *testing.T) {
	m, c := newManager(t)
	issued, err := m.CreateRequest(context.Background(), userID, EmailVerification)
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{64}$`), issued.Token)
	assert.Empty(t, issued.Code)
	assert.Equal(t, c.Now().Add(24*time.Hour), issued.Expires)
}

func TestCreateSMSRequest(t *testing.T) {
	m, c := newManager(t)
	issued, err := m.CreateRequest(context.Background(), userID, SMSVerification)
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^\d{6}$`), issued.Code)
	assert.Equal(t, c.Now().Add(10*time.Minute), issued.Expires)

	twofa, err := m.CreateRequest(context.Background(), userID, TwoFASetup)
	require.NoError(t, err)
	assert.Empty(t, twofa.Code)
	assert.Equal(t, c.Now().Add(10*time.Minute), twofa.Expires)
}

func TestCreateRejectsUnknownType(t *testing.T) {
	m, _ := newManager(t)
	_, err := m.CreateRequest(context.Background(), userID, Type("MAGIC"))
	assert.ErrorIs(t, err, secerr.ErrValidation)
}

func TestVerifyByCodeSucceedsOnce(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()
	issued, err := m.CreateRequest(ctx, userID, SMSVerification)
	require.NoError(t, err)

	ok, err := m.VerifyByCode(ctx, issued.Token, issued.Code)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.VerifyByCode(ctx, issued.Token, issued.Code)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = m.CheckCode(ctx, issued.Token, issued.Code)
	assert.ErrorIs(t, err, secerr.ErrAlreadyVerified)
}

func TestAttemptsExhaustedBeforeCorrectCode(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()
	issued, err := m.CreateRequest(ctx, userID, SMSVerification)
	require.NoError(t, err)

	wrong := "000000"
	if issued.Code == wrong {
		wrong = "111111"
	}
	for i := 0; i < MaxAttempts; i++ {
		_, err := m.CheckCode(ctx, issued.Token, wrong)
		assert.ErrorIs(t, err, secerr.ErrCodeMismatch)
	}

	_, err = m.CheckCode(ctx, issued.Token, issued.Code)
	assert.ErrorIs(t, err, secerr.ErrAttemptsExceeded)

	req, err := m.GetByToken(ctx, issued.Token)
	require.NoError(t, err)
	assert.False(t, req.Verified)
	assert.Equal(t, MaxAttempts, req.Attempts)
}

func TestExpiredRequestFailsWithCorrectCode(t *testing.T) {
	m, c := newManager(t)
	ctx := context.Background()
	issued, err := m.CreateRequest(ctx, userID, SMSVerification)
	require.NoError(t, err)

	c.Advance(10 * time.Minute)
	_, err = m.CheckCode(ctx, issued.Token, issued.Code)
	assert.ErrorIs(t, err, secerr.ErrExpired)

	req, err := m.GetByToken(ctx, issued.Token)
	require.NoError(t, err)
	assert.Equal(t, 0, req.Attempts)
}

func TestMissingToken(t *testing.T) {
	m, _ := newManager(t)
	ok, err := m.VerifyByCode(context.Background(), "nope", "123456")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = m.GetByToken(context.Background(), "nope")
	assert.ErrorIs(t, err, secerr.ErrNotFound)
}

func TestVerifyByTokenOnly(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()
	issued, err := m.CreateRequest(ctx, userID, EmailVerification)
	require.NoError(t, err)

	ok, err := m.VerifyByTokenOnly(ctx, issued.Token)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.VerifyByTokenOnly(ctx, issued.Token)
	require.NoError(t, err)
	assert.False(t, ok)

	for _, typ := range []Type{SMSVerification, PasswordReset, TwoFASetup} {
		other, err := m.CreateRequest(ctx, userID, typ)
		require.NoError(t, err)
		ok, err = m.VerifyByTokenOnly(ctx, other.Token)
		require.NoError(t, err)
		assert.False(t, ok, "%s must not verify by token alone", typ)

		current, err := m.GetByToken(ctx, other.Token)
		require.NoError(t, err)
		assert.False(t, current.Verified)
		assert.Zero(t, current.Attempts)
	}

	change, err := m.CreateRequest(ctx, userID, EmailChange)
	require.NoError(t, err)
	ok, err = m.VerifyByTokenOnly(ctx, change.Token)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCheckSetupCountsRejectedCodes(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()
	issued, err := m.CreateRequest(ctx, userID, TwoFASetup)
	require.NoError(t, err)

	_, err = m.CheckSetup(ctx, issued.Token, "someone-else", func() bool { return true })
	assert.ErrorIs(t, err, secerr.ErrNotFound)

	email, err := m.CreateRequest(ctx, userID, EmailVerification)
	require.NoError(t, err)
	_, err = m.CheckSetup(ctx, email.Token, userID, func() bool { return true })
	assert.ErrorIs(t, err, secerr.ErrNotFound)

	for i := 0; i < MaxAttempts; i++ {
		_, err = m.CheckSetup(ctx, issued.Token, userID, func() bool { return false })
		assert.ErrorIs(t, err, secerr.ErrCodeMismatch)
	}
	_, err = m.CheckSetup(ctx, issued.Token, userID, func() bool { return true })
	assert.ErrorIs(t, err, secerr.ErrAttemptsExceeded)
}

func TestCheckSetupSucceedsOnce(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()
	issued, err := m.CreateRequest(ctx, userID, TwoFASetup)
	require.NoError(t, err)

	req, err := m.CheckSetup(ctx, issued.Token, userID, func() bool { return true })
	require.NoError(t, err)
	assert.True(t, req.Verified)

	_, err = m.CheckSetup(ctx, issued.Token, userID, func() bool { return true })
	assert.Error(t, err)
}

func TestConcurrentCorrectCodesVerifyOnce(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()
	issued, err := m.CreateRequest(ctx, userID, SMSVerification)
	require.NoError(t, err)

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := m.VerifyByCode(ctx, issued.Token, issued.Code); ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins)

	req, err := m.GetByToken(ctx, issued.Token)
	require.NoError(t, err)
	assert.LessOrEqual(t, req.Attempts, MaxAttempts)
}

func TestCreatePurgesExpiredOfSameType(t *testing.T) {
	m, c := newManager(t)
	ctx := context.Background()
	old, err := m.CreateRequest(ctx, userID, SMSVerification)
	require.NoError(t, err)
	keep, err := m.CreateRequest(ctx, userID, EmailVerification)
	require.NoError(t, err)

	c.Advance(11 * time.Minute)
	_, err = m.CreateRequest(ctx, userID, SMSVerification)
	require.NoError(t, err)

	_, err = m.GetByToken(ctx, old.Token)
	assert.ErrorIs(t, err, secerr.ErrNotFound)
	_, err = m.GetByToken(ctx, keep.Token)
	assert.NoError(t, err)
}

func TestCleanupExpired(t *testing.T) {
	m, c := newManager(t)
	ctx := context.Background()
	_, err := m.CreateRequest(ctx, userID, SMSVerification)
	require.NoError(t, err)
	email, err := m.CreateRequest(ctx, userID, EmailVerification)
	require.NoError(t, err)

	c.Advance(time.Hour)
	n, err := m.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = m.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	_, err = m.GetByToken(ctx, email.Token)
	assert.NoError(t, err)
}

func TestRunSweeperStopsOnCancel(t *testing.T) {
	m, c := newManager(t)
	ctx, cancel := context.WithCancel(context.Background())
	issued, err := m.CreateRequest(ctx, userID, SMSVerification)
	require.NoError(t, err)
	c.Advance(time.Hour)

	done := make(chan struct{})
	go func() {
		m.RunSweeper(ctx, 5*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool {
		_, err := m.GetByToken(context.Background(), issued.Token)
		return err != nil
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
