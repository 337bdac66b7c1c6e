package keymutex

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyMutex_MutualExclusionPerKey(t *testing.T) {
	m := New()

	var (
		mu      sync.Mutex
		inside  int
		maxSeen int
	)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, m.Lock(context.Background(), "k"))
			defer m.Unlock("k")

			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
}

func TestKeyMutex_KeysAreIndependent(t *testing.T) {
	m := New()
	require.NoError(t, m.Lock(context.Background(), "a"))
	defer m.Unlock("a")

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	require.NoError(t, m.Lock(ctx, "b"), "holding a must not block b")
	m.Unlock("b")
}

func TestKeyMutex_LockRespectsContext(t *testing.T) {
	m := New()
	require.NoError(t, m.Lock(context.Background(), "k"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := m.Lock(ctx, "k")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// The failed waiter must not have consumed the section: a later
	// attempt with room to wait still succeeds once the holder releases.
	done := make(chan error, 1)
	go func() {
		waitCtx, waitCancel := context.WithTimeout(context.Background(), time.Second)
		defer waitCancel()
		done <- m.Lock(waitCtx, "k")
	}()
	time.Sleep(10 * time.Millisecond)
	m.Unlock("k")
	require.NoError(t, <-done)
	m.Unlock("k")
}

func TestKeyMutex_UnlockUnheldPanics(t *testing.T) {
	m := New()
	assert.Panics(t, func() { m.Unlock("never-locked") })

	require.NoError(t, m.Lock(context.Background(), "k"))
	m.Unlock("k")
	assert.Panics(t, func() { m.Unlock("k") }, "double unlock")
}

func TestKeyMutex_EntriesAreReclaimed(t *testing.T) {
	m := New()
	require.NoError(t, m.Lock(context.Background(), "k"))
	m.Unlock("k")

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Empty(t, m.entries, "idle keys must not accumulate")
}
