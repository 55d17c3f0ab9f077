package usecase_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shandysiswandi/otpgate/internal/otp/entity"
	"github.com/shandysiswandi/otpgate/internal/otp/usecase"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const phone = "+919999999999"

// Lifecycle with cooldown 60s, five attempts and five minute expiry.
func TestVerify_Lifecycle(t *testing.T) {
	e := newEnv(t, "")
	ctx := context.Background()

	_, err := e.uc.Issue(ctx, usecase.IssueInput{Identity: phone})
	require.NoError(t, err)

	for _, remaining := range []int{4, 3, 2, 1} {
		_, err := e.uc.Verify(ctx, usecase.VerifyInput{Identity: phone, Code: "000000"})
		gerr := requireCode(t, err, goerror.CodeUnauthorized)
		assert.Equal(t, remaining, gerr.Details()["attemptsRemaining"])
	}

	_, err = e.uc.Verify(ctx, usecase.VerifyInput{Identity: phone, Code: "000000"})
	gerr := requireCode(t, err, goerror.CodeForbidden)
	assert.Equal(t, true, gerr.Details()["locked"])

	// locked: no further increments, even with the right code
	_, err = e.uc.Verify(ctx, usecase.VerifyInput{Identity: phone, Code: e.mq.lastCode(t)})
	requireCode(t, err, goerror.CodeForbidden)
	assert.Equal(t, 5, e.db.incCalls)
	assert.Equal(t, 5, e.db.records[0].Attempts)

	_, err = e.uc.Issue(ctx, usecase.IssueInput{Identity: phone})
	gerr = requireCode(t, err, goerror.CodeTooManyRequest)
	assert.Equal(t, 60, gerr.Details()["retryAfter"])

	e.clock.Advance(61 * time.Second)
	_, err = e.uc.Issue(ctx, usecase.IssueInput{Identity: phone})
	require.NoError(t, err)
	code := e.mq.lastCode(t)

	out, err := e.uc.Verify(ctx, usecase.VerifyInput{Identity: phone, Code: code})
	require.NoError(t, err)
	assert.Equal(t, e.clock.Now(), out.VerifiedAt)

	_, err = e.uc.Verify(ctx, usecase.VerifyInput{Identity: phone, Code: code})
	requireCode(t, err, goerror.CodeGone)

	stats, err := e.uc.Stats(ctx, usecase.StatsInput{Identity: phone})
	require.NoError(t, err)
	assert.True(t, stats.Consumed)
	require.NotNil(t, stats.ConsumedAt)
	assert.Equal(t, out.VerifiedAt, *stats.ConsumedAt)

	assert.Equal(t, []string{
		"ISSUE_SUCCESS:sent",
		"VERIFY_FAILED:incorrect",
		"VERIFY_FAILED:incorrect",
		"VERIFY_FAILED:incorrect",
		"VERIFY_FAILED:incorrect",
		"VERIFY_FAILED:locked",
		"VERIFY_FAILED:locked",
		"ISSUE_FAILED:rate_limited",
		"ISSUE_SUCCESS:sent",
		"VERIFY_SUCCESS:verified",
		"VERIFY_FAILED:consumed",
	}, e.flush(t))
}

func TestVerify_ExpiryDominatesCorrectCode(t *testing.T) {
	e := newEnv(t, "")
	ctx := context.Background()

	_, err := e.uc.Issue(ctx, usecase.IssueInput{Identity: phone})
	require.NoError(t, err)

	e.clock.Advance(5*time.Minute + time.Second)

	_, err = e.uc.Verify(ctx, usecase.VerifyInput{Identity: phone, Code: e.mq.lastCode(t)})
	gerr := requireCode(t, err, goerror.CodeGone)
	assert.Equal(t, "OTP has expired", gerr.Msg())
	assert.Zero(t, e.db.incCalls)
}

func TestVerify_ExactExpiryStillValid(t *testing.T) {
	e := newEnv(t, "")
	ctx := context.Background()

	_, err := e.uc.Issue(ctx, usecase.IssueInput{Identity: phone})
	require.NoError(t, err)

	e.clock.Advance(5 * time.Minute)

	_, err = e.uc.Verify(ctx, usecase.VerifyInput{Identity: phone, Code: e.mq.lastCode(t)})
	require.NoError(t, err)
}

func TestVerify_InvalidFormat(t *testing.T) {
	tests := []usecase.VerifyInput{
		{Identity: "12345", Code: "123456"},
		{Identity: phone, Code: "12345"},
		{Identity: phone, Code: "12345a"},
		{Identity: phone, Code: ""},
	}

	for _, in := range tests {
		t.Run(in.Identity+"/"+in.Code, func(t *testing.T) {
			e := newEnv(t, "")
			e.seed(entity.Record{ID: 1, Identity: phone, CreatedAt: e.clock.Now(), ExpiresAt: e.clock.Now().Add(time.Minute)})

			_, err := e.uc.Verify(context.Background(), usecase.VerifyInput{Identity: in.Identity, Code: in.Code})
			requireCode(t, err, goerror.CodeInvalidFormat)
			assert.Zero(t, e.db.incCalls)
			assert.Empty(t, e.flush(t))
		})
	}
}

func TestVerify_NotRequested(t *testing.T) {
	e := newEnv(t, "")

	_, err := e.uc.Verify(context.Background(), usecase.VerifyInput{Identity: phone, Code: "123456"})
	gerr := requireCode(t, err, goerror.CodeInvalidFormat)
	assert.Equal(t, "No OTP requested for this identity", gerr.Msg())
	assert.Equal(t, []string{"VERIFY_FAILED:not_found"}, e.flush(t))
}

func TestVerify_ConcurrentWinnerTakesIt(t *testing.T) {
	e := newEnv(t, "")
	ctx := context.Background()

	_, err := e.uc.Issue(ctx, usecase.IssueInput{Identity: phone})
	require.NoError(t, err)
	e.db.raceConsume = true

	_, err = e.uc.Verify(ctx, usecase.VerifyInput{Identity: phone, Code: e.mq.lastCode(t)})
	requireCode(t, err, goerror.CodeGone)
}

func TestVerify_IncrementLosesToConsume(t *testing.T) {
	e := newEnv(t, "")
	e.seed(entity.Record{ID: 9, Identity: phone, HashedSecret: "deadbeef", CreatedAt: e.clock.Now(), ExpiresAt: e.clock.Now().Add(time.Minute)})
	e.db.incErr = entity.ErrRecordConsumed

	_, err := e.uc.Verify(context.Background(), usecase.VerifyInput{Identity: phone, Code: "123456"})
	gerr := requireCode(t, err, goerror.CodeGone)
	assert.Equal(t, "OTP has already been used", gerr.Msg())
}

func TestVerify_RecordRemovedByCleanup(t *testing.T) {
	e := newEnv(t, "")
	e.seed(entity.Record{ID: 9, Identity: phone, HashedSecret: "deadbeef", CreatedAt: e.clock.Now(), ExpiresAt: e.clock.Now().Add(time.Minute)})
	e.db.incErr = goerror.ErrNotFound

	_, err := e.uc.Verify(context.Background(), usecase.VerifyInput{Identity: phone, Code: "123456"})
	gerr := requireCode(t, err, goerror.CodeGone)
	assert.Equal(t, "OTP has expired", gerr.Msg())
}

// lockstepDB releases every lookup only after all callers have read the
// record, so their writes race against one stale snapshot.
type lockstepDB struct {
	*fakeDB
	read sync.WaitGroup
}

func (l *lockstepDB) GetLatestRecord(ctx context.Context, identity string) (*entity.Record, error) {
	rec, err := l.fakeDB.GetLatestRecord(ctx, identity)
	l.read.Done()
	l.read.Wait()
	return rec, err
}

func TestVerify_ParallelGuessesStopAtLimit(t *testing.T) {
	const guesses = 20

	e := newEnv(t, "", func(dep *usecase.Dependency) {
		db := &lockstepDB{fakeDB: dep.RepoDB.(*fakeDB)}
		db.read.Add(guesses)
		dep.RepoDB = db
	})

	hashed, err := e.hmac.Hash("424242")
	require.NoError(t, err)
	e.seed(entity.Record{ID: 1, Identity: phone, HashedSecret: string(hashed), CreatedAt: e.clock.Now(), ExpiresAt: e.clock.Now().Add(time.Minute)})

	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		locked    atomic.Int32
	)
	for i := range guesses {
		code := "000000"
		if i == guesses-1 {
			code = "424242"
		}
		wg.Go(func() {
			_, err := e.uc.Verify(context.Background(), usecase.VerifyInput{Identity: phone, Code: code})
			if err == nil {
				successes.Add(1)
				return
			}
			var gerr *goerror.Error
			if errors.As(err, &gerr) && gerr.Code() == goerror.CodeForbidden {
				locked.Add(1)
			}
		})
	}
	wg.Wait()

	rec := e.db.records[0]
	assert.LessOrEqual(t, rec.Attempts, 5)
	assert.Equal(t, rec.Consumed, successes.Load() == 1)
	assert.LessOrEqual(t, successes.Load(), int32(1))
	if !rec.Consumed {
		// four answers of 401, then the fifth wrong guess and everyone after it see the lock
		assert.Equal(t, 5, rec.Attempts)
		assert.Equal(t, int32(guesses-4), locked.Load())
	}
}
