package lifecycle_test

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/panscan/pkg/lifecycle"
)

func TestNotReadyBeforeStartup(t *testing.T) {
	lc := lifecycle.New()
	assert.False(t, lc.Ready())
}

func TestReadyAfterStartup(t *testing.T) {
	lc := lifecycle.New()
	require.NoError(t, lc.WaitForStartup())
	assert.True(t, lc.Ready())
}

func TestStartupHooksExecute(t *testing.T) {
	lc := lifecycle.New()

	var count atomic.Int32
	for range 3 {
		lc.OnStartup(func() error {
			count.Add(1)
			return nil
		})
	}

	require.NoError(t, lc.WaitForStartup())
	assert.Equal(t, int32(3), count.Load())
}

func TestStartupHookFailureBlocksReady(t *testing.T) {
	lc := lifecycle.New()
	errStorage := errors.New("storage unavailable")

	lc.OnStartup(func() error { return nil })
	lc.OnStartup(func() error { return errStorage })

	err := lc.WaitForStartup()
	require.Error(t, err)
	assert.ErrorIs(t, err, errStorage)
	assert.False(t, lc.Ready())
}

func TestShutdownHooksExecute(t *testing.T) {
	lc := lifecycle.New()

	var cleaned atomic.Bool
	lc.OnShutdown(func() {
		<-lc.Context().Done()
		cleaned.Store(true)
	})

	require.NoError(t, lc.WaitForStartup())
	require.NoError(t, lc.Shutdown(5*time.Second))

	assert.True(t, cleaned.Load())
	assert.False(t, lc.Ready(), "not ready once shutdown begins")
}

func TestShutdownTimeout(t *testing.T) {
	lc := lifecycle.New()

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		time.Sleep(500 * time.Millisecond)
	})

	require.NoError(t, lc.WaitForStartup())
	assert.Error(t, lc.Shutdown(50*time.Millisecond))
}

func TestContextCancelledOnShutdown(t *testing.T) {
	lc := lifecycle.New()
	require.NoError(t, lc.WaitForStartup())
	require.NoError(t, lc.Shutdown(5*time.Second))

	select {
	case <-lc.Context().Done():
	default:
		t.Error("context should be cancelled after shutdown")
	}
}
