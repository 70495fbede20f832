package spinlock

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLockExcludesConcurrentAccess(t *testing.T) {
	var f Flag
	var counter int
	var wg sync.WaitGroup

	const goroutines = 32
	const incrementsEach = 2000

	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range incrementsEach {
				f.Lock()
				counter++
				f.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, goroutines*incrementsEach, counter)
}

func TestTryLockFailsWhileHeld(t *testing.T) {
	var f Flag
	f.Lock()
	require.False(t, f.TryLock())
	f.Unlock()
	require.True(t, f.TryLock())
	f.Unlock()
}

func TestGuardReleasesOnReturn(t *testing.T) {
	var f Flag

	func() {
		defer f.Guard()()
	}()

	require.True(t, f.TryLock())
	f.Unlock()
}
