package orchestrator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeyedLocksIndependentKeys(t *testing.T) {
	k := newKeyedLocks()
	k.Lock("dishes/alice")
	defer k.Unlock("dishes/alice")

	// a different key is not blocked
	assert.True(t, k.TryLockWait("dishes/bob", 10*time.Millisecond))
	k.Unlock("dishes/bob")
}

func TestTryLockWaitTimesOut(t *testing.T) {
	k := newKeyedLocks()
	k.Lock("trash")

	start := time.Now()
	ok := k.TryLockWait("trash", 30*time.Millisecond)
	assert.False(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	k.Unlock("trash")
}

func TestTryLockWaitAcquiresOnRelease(t *testing.T) {
	k := newKeyedLocks()
	k.Lock("trash")
	go func() {
		time.Sleep(20 * time.Millisecond)
		k.Unlock("trash")
	}()
	assert.True(t, k.TryLockWait("trash", 500*time.Millisecond))
	k.Unlock("trash")
}
