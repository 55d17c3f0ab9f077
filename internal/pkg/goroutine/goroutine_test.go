package goroutine_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/shandysiswandi/otpgate/internal/pkg/goroutine"
	"github.com/stretchr/testify/assert"
)

func TestManager_RunsAndCollectsErrors(t *testing.T) {
	m := goroutine.NewManager(4)
	var ran atomic.Int32

	for range 3 {
		assert.True(t, m.Go(context.Background(), func(context.Context) error {
			ran.Add(1)
			return nil
		}))
	}
	assert.True(t, m.Go(context.Background(), func(context.Context) error {
		return errors.New("audit insert failed")
	}))

	err := m.Wait()
	assert.EqualError(t, err, "audit insert failed")
	assert.Equal(t, int32(3), ran.Load())
}

func TestManager_DetachesCancellation(t *testing.T) {
	m := goroutine.NewManager(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var seen error
	m.Go(ctx, func(ctx context.Context) error {
		seen = ctx.Err()
		return nil
	})

	assert.NoError(t, m.Wait())
	assert.NoError(t, seen)
}

func TestManager_DropsWhenFull(t *testing.T) {
	m := goroutine.NewManager(1)
	release := make(chan struct{})

	assert.True(t, m.Go(context.Background(), func(context.Context) error {
		<-release
		return nil
	}))
	assert.False(t, m.Go(context.Background(), func(context.Context) error { return nil }))

	close(release)
	assert.NoError(t, m.Wait())
}

func TestManager_ClosedAndPanics(t *testing.T) {
	m := goroutine.NewManager(2)
	m.Go(context.Background(), func(context.Context) error { panic("boom") })
	assert.NoError(t, m.Wait())

	assert.False(t, m.Go(context.Background(), func(context.Context) error { return nil }))

	var nilManager *goroutine.Manager
	assert.False(t, nilManager.Go(context.Background(), nil))
	assert.NoError(t, nilManager.Wait())
}
